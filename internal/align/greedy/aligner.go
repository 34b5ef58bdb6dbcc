package greedy

import (
	"context"
	"fmt"
	"log/slog"

	"concord/internal/align"
	"concord/internal/logging"
	"concord/internal/media"
	"concord/internal/services"
)

// Store is the persistence surface the greedy aligner needs.
type Store interface {
	SegmentsInRange(ctx context.Context, editionID int64, min, max *media.Ordinal) ([]media.Segment, error)
	EventFingerprints(ctx context.Context, segmentID int64) ([]media.Fingerprint, error)
	UpsertMapping(ctx context.Context, m *media.SegmentMapping) error
	LatestMapping(ctx context.Context, sourceEditionID, targetEditionID int64) (*media.SegmentMapping, error)
	EditionBounds(ctx context.Context, editionID int64) (min, max media.Ordinal, ok bool, err error)
}

// Options tunes one aligner run.
type Options struct {
	Recompute bool
}

// Aligner walks the source edition in order, never looking behind the last
// accepted target range.
type Aligner struct {
	store    Store
	searcher align.Searcher
	policy   align.Policy
	logger   *slog.Logger
}

// New constructs a greedy sequential aligner.
func New(st Store, searcher align.Searcher, policy align.Policy, logger *slog.Logger) *Aligner {
	return &Aligner{
		store:    st,
		searcher: searcher,
		policy:   policy.Normalized(),
		logger:   logging.NewComponentLogger(logger, "align.greedy"),
	}
}

// Run aligns the source edition against the target edition sequentially.
func (a *Aligner) Run(ctx context.Context, sourceEditionID, targetEditionID int64, opts Options) (align.Summary, error) {
	var summary align.Summary

	checkpoint, err := align.LoadCheckpoint(ctx, a.store, sourceEditionID, targetEditionID)
	if err != nil {
		return summary, err
	}
	if opts.Recompute {
		checkpoint = align.Checkpoint{}
	}

	boundsMin, boundsMax, ok, err := a.store.EditionBounds(ctx, targetEditionID)
	if err != nil {
		return summary, err
	}
	if !ok {
		return summary, services.Wrap(services.ErrNotFound, "align.greedy", "run",
			fmt.Sprintf("target edition %d has no segments", targetEditionID), nil)
	}
	bounds := align.Bounds{Min: boundsMin, Max: boundsMax}

	var from *media.Ordinal
	if checkpoint.Set() {
		next := checkpoint.SourceNumber + 1
		from = &next
	}
	segments, err := a.store.SegmentsInRange(ctx, sourceEditionID, from, nil)
	if err != nil {
		return summary, err
	}

	for _, segment := range segments {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		mapping, err := a.alignSegment(ctx, &segment, targetEditionID, checkpoint, bounds)
		switch {
		case err == nil:
			summary.Matched++
			checkpoint = checkpoint.Advance(mapping.SourceNumber, mapping.TargetEnd)
			a.logger.Info("segment aligned", logging.Args(
				logging.String(logging.FieldSourceUnit, segment.Number.String()),
				logging.String(logging.FieldTargetRange, fmt.Sprintf("[%s, %s]", mapping.TargetStart, mapping.TargetEnd)),
				logging.Float64("confidence", mapping.Confidence),
				logging.String(logging.FieldOutcome, "matched"),
			)...)
		case services.IsSkip(err):
			summary.Skipped++
			a.logger.Info("segment skipped", logging.Args(
				logging.String(logging.FieldSourceUnit, segment.Number.String()),
				logging.String(logging.FieldOutcome, "skipped"),
				logging.String("reason", err.Error()),
			)...)
		case services.IsFatal(err):
			return summary, err
		default:
			summary.Errored++
			a.logger.Warn("segment errored", logging.Args(
				logging.String(logging.FieldSourceUnit, segment.Number.String()),
				logging.String(logging.FieldOutcome, "errored"),
				logging.Error(err),
			)...)
		}
	}
	return summary, nil
}

func (a *Aligner) alignSegment(ctx context.Context, segment *media.Segment, targetEditionID int64, checkpoint align.Checkpoint, bounds align.Bounds) (*media.SegmentMapping, error) {
	fingerprints, err := a.store.EventFingerprints(ctx, segment.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "align.greedy", "fingerprints", "load event fingerprints", err)
	}
	if len(fingerprints) == 0 {
		return nil, services.Wrap(services.ErrInsufficient, "align.greedy", "fingerprints", "segment has no event fingerprints", nil)
	}

	// Forward-only window: from the last accepted target end (or the start of
	// the edition) ahead by the search width.
	windowStart := bounds.Min
	if checkpoint.Set() {
		windowStart = bounds.Clamp(checkpoint.TargetEnd)
	}
	windowEnd := bounds.Clamp(windowStart.AddUnits(a.policy.GreedySearchWindow))

	var points []align.WeightedPoint
	for _, fp := range fingerprints {
		candidates, err := a.searcher.Search(ctx, fp.Vector, targetEditionID, &windowStart, &windowEnd, 1)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "align.greedy", "search", "candidate retrieval failed", err)
		}
		if len(candidates) == 0 {
			continue
		}
		best := candidates[0]
		sim := align.AdjustForTimeContext(best.Similarity, segment.TimeContext, best.TimeContext, a.policy)
		if sim < a.policy.GreedySimilarityFloor {
			continue
		}
		points = append(points, align.WeightedPoint{Number: best.Number, Weight: sim})
	}
	if len(points) < a.policy.GreedyMinEvents {
		return nil, services.Wrap(services.ErrInsufficient, "align.greedy", "match",
			fmt.Sprintf("%d events matched, need %d", len(points), a.policy.GreedyMinEvents), nil)
	}

	start, end, meanSim, ok := align.ClusterWeighted(points, a.policy.GapTolerance, a.policy.GreedyMaxWidth)
	if !ok {
		return nil, services.Wrap(services.ErrInsufficient, "align.greedy", "cluster", "no weighted cluster", nil)
	}

	// Progression-rate guard: the target may not advance faster than the
	// per-unit limit times the source distance covered since the last accept.
	// Skipped and errored units grow the allowance, so a gap in the source
	// does not strand the walk.
	rateLimited := false
	if checkpoint.Set() {
		sourceDelta := media.UnitsBetween(checkpoint.SourceNumber, segment.Number)
		if sourceDelta < 1 {
			sourceDelta = 1
		}
		allowed := checkpoint.TargetEnd.AddUnits(sourceDelta * a.policy.MaxPerUnitJump)
		if start > allowed {
			return nil, services.Wrap(services.ErrInsufficient, "align.greedy", "guard",
				fmt.Sprintf("target start %s outruns progression limit %s", start, allowed), nil)
		}
		if end > allowed {
			end = allowed
			rateLimited = true
		}
	}

	guard := align.ApplyGuard(checkpoint, start, end, meanSim, a.policy)

	envelope := align.Envelope{
		Kind:  "greedy",
		Guard: guard,
		Greedy: &align.GreedyEvidence{
			MatchedEvents:  len(points),
			TotalEvents:    len(fingerprints),
			MeanSimilarity: meanSim,
			WindowStart:    windowStart.String(),
			WindowEnd:      windowEnd.String(),
			RateLimited:    rateLimited,
		},
	}
	evidenceJSON, err := envelope.Encode()
	if err != nil {
		return nil, services.Wrap(services.ErrSchema, "align.greedy", "evidence", "encode evidence", err)
	}

	mapping := &media.SegmentMapping{
		SourceSegmentID: segment.ID,
		SourceEditionID: segment.EditionID,
		SourceNumber:    segment.Number,
		TargetEditionID: targetEditionID,
		TargetStart:     start,
		TargetEnd:       end,
		Confidence:      guard.Confidence,
		Status:          align.DeriveStatus(guard),
		Algorithm:       align.AlgorithmGreedy,
		EvidenceJSON:    evidenceJSON,
	}
	if err := a.store.UpsertMapping(ctx, mapping); err != nil {
		return nil, services.Wrap(services.ErrTransient, "align.greedy", "persist", "upsert mapping", err)
	}
	return mapping, nil
}
