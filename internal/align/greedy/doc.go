// Package greedy implements the forward-only sequential aligner: each source
// segment searches a window just ahead of the last accepted mapping, keeps
// per-event best matches above a similarity floor, and accepts the densest
// weighted cluster. Suited to editions that track each other closely.
package greedy
