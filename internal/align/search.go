package align

import (
	"context"

	"concord/internal/media"
)

// Candidate is one ranked retrieval result: a target segment tagged with its
// ordinal and cosine-derived similarity in [0,1].
type Candidate struct {
	SegmentID   int64
	Number      media.Ordinal
	TimeContext media.TimeContext
	Similarity  float64
}

// Searcher is the candidate-retrieval contract consumed by the
// embedding-based aligners. Nil window bounds mean a full-edition search.
// Implementations must rank by descending similarity and break ties by
// ascending target ordinal so downstream clustering is reproducible.
type Searcher interface {
	Search(ctx context.Context, query []float32, targetEditionID int64, windowMin, windowMax *media.Ordinal, k int) ([]Candidate, error)
}
