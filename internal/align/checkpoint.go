package align

import (
	"context"
	"fmt"

	"concord/internal/media"
)

// Checkpoint tracks alignment progress for one edition pair: the last source
// ordinal that was mapped and the end of its accepted target range. The zero
// value means no segment has been aligned yet.
type Checkpoint struct {
	SourceNumber media.Ordinal
	TargetEnd    media.Ordinal
}

// Set reports whether the checkpoint reflects at least one accepted mapping.
func (c Checkpoint) Set() bool {
	return c != Checkpoint{}
}

// Advance moves the checkpoint to reflect a newly accepted mapping. Mappings
// behind the current checkpoint leave it untouched so a tolerated backtrack
// never drags the whole run backwards.
func (c Checkpoint) Advance(sourceNumber, targetEnd media.Ordinal) Checkpoint {
	if c.Set() && sourceNumber <= c.SourceNumber {
		return c
	}
	return Checkpoint{SourceNumber: sourceNumber, TargetEnd: targetEnd}
}

// LatestMappinger is the slice of the store the checkpoint loader needs.
type LatestMappinger interface {
	LatestMapping(ctx context.Context, sourceEditionID, targetEditionID int64) (*media.SegmentMapping, error)
}

// LoadCheckpoint reconstructs the checkpoint for an edition pair from the
// most advanced persisted mapping. A pair with no mappings yields the zero
// checkpoint, which callers treat as "start from the beginning".
func LoadCheckpoint(ctx context.Context, s LatestMappinger, sourceEditionID, targetEditionID int64) (Checkpoint, error) {
	latest, err := s.LatestMapping(ctx, sourceEditionID, targetEditionID)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if latest == nil {
		return Checkpoint{}, nil
	}
	return Checkpoint{
		SourceNumber: latest.SourceNumber,
		TargetEnd:    latest.TargetEnd,
	}, nil
}
