// Package store manages Concord's SQLite persistence: editions, segments,
// fingerprint vectors, and segment mappings. Mapping upserts are keyed on
// (source segment, target edition) so recomputing an alignment overwrites the
// prior proposal for that pair.
package store
