// Package media defines the domain model shared across the alignment engine:
// editions, segments, semantic fingerprints, and the segment mappings the
// aligners produce. Ordinal numbers are carried as a fixed-point type so that
// half-chapters such as "12.5" order and compare exactly everywhere.
package media
