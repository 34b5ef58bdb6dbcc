// Package retrieval ranks stored segment fingerprints against a query vector
// by cosine similarity. Corpora here are small enough (hundreds of segments
// per edition) that an exhaustive in-process scan over a SQL-filtered ordinal
// window beats carrying an approximate index, and it keeps retrieval fully
// deterministic.
package retrieval
