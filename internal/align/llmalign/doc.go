// Package llmalign implements the LLM-backed aligners: a checkpoint walker
// that asks the model to place one source segment inside a narrow target
// window, and a full-range aligner that submits whole editions in a single
// batched request with a per-segment fallback.
package llmalign
