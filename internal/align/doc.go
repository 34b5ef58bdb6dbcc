// Package align holds the substrate shared by every aligner: the tuning
// policy, window and checkpoint math, vote clustering, the monotonic guard
// and confidence policy, typed evidence payloads, and per-run outcome
// accounting. The concrete aligners live in the vote, greedy, and llmalign
// subpackages.
package align
