package retrieval

import (
	"context"
	"fmt"
	"sort"

	"concord/internal/align"
	"concord/internal/media"
	"concord/internal/store"
)

// VectorSource is the slice of the store the index reads from.
type VectorSource interface {
	VectorsInWindow(ctx context.Context, editionID int64, channel media.FingerprintChannel, min, max *media.Ordinal) ([]store.SegmentVector, error)
}

// Index ranks one fingerprint channel of stored vectors against query
// embeddings. It satisfies the aligners' search contract.
type Index struct {
	source  VectorSource
	channel media.FingerprintChannel
}

// NewIndex builds an index over the given channel.
func NewIndex(source VectorSource, channel media.FingerprintChannel) *Index {
	return &Index{source: source, channel: channel}
}

var _ align.Searcher = (*Index)(nil)

// Search returns the top k candidates for the query vector within the target
// edition's ordinal window. When a segment carries several event vectors,
// only its best-scoring one is kept so a long segment cannot crowd out the
// rest of the window. Results are ordered by descending similarity, ties
// broken by ascending ordinal.
func (ix *Index) Search(ctx context.Context, query []float32, targetEditionID int64, windowMin, windowMax *media.Ordinal, k int) ([]align.Candidate, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("search: empty query vector")
	}
	if k <= 0 {
		return nil, nil
	}

	vectors, err := ix.source.VectorsInWindow(ctx, targetEditionID, ix.channel, windowMin, windowMax)
	if err != nil {
		return nil, fmt.Errorf("search window: %w", err)
	}

	bySegment := make(map[int64]align.Candidate, len(vectors))
	for _, v := range vectors {
		sim := Similarity(query, v.Vector)
		best, seen := bySegment[v.SegmentID]
		if !seen || sim > best.Similarity {
			bySegment[v.SegmentID] = align.Candidate{
				SegmentID:   v.SegmentID,
				Number:      v.Number,
				TimeContext: v.TimeContext,
				Similarity:  sim,
			}
		}
	}

	candidates := make([]align.Candidate, 0, len(bySegment))
	for _, c := range bySegment {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Number < candidates[j].Number
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}
