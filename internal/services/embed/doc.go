// Package embed wraps the embedding API used to backfill event fingerprints
// that are missing at alignment time. Vectors are L2-normalized so cosine
// similarity reduces to a dot product.
package embed
