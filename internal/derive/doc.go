// Package derive composes existing mappings across a pivot edition: when A
// and B are both aligned against P, it intersects their pivot-space ranges
// and proposes A-to-B mappings without running any aligner, discounting
// confidence by the overlap between the two pivot ranges.
package derive
