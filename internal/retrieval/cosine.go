package retrieval

import "math"

// Cosine returns the cosine similarity of two vectors, 0 when either is
// empty, zero-length, or of mismatched dimension.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Similarity clamps cosine similarity into [0,1] so downstream confidence
// arithmetic never sees negative scores.
func Similarity(a, b []float32) float64 {
	sim := Cosine(a, b)
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
