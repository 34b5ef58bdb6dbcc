// Package vote implements the event-voting aligner: each source event
// fingerprint searches the target edition, candidate segments accumulate
// votes, and the winning vote cluster becomes the proposed target range.
package vote
