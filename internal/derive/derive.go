package derive

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"concord/internal/align"
	"concord/internal/logging"
	"concord/internal/media"
	"concord/internal/services"
)

// Store is the persistence surface derivation reads and writes.
type Store interface {
	MappingsForPair(ctx context.Context, sourceEditionID, targetEditionID int64) ([]media.SegmentMapping, error)
	UpsertMapping(ctx context.Context, m *media.SegmentMapping) error
}

// Deriver builds source-to-target mappings out of source-to-pivot and
// pivot-to-target mappings.
type Deriver struct {
	store  Store
	policy align.Policy
	logger *slog.Logger
}

// New constructs a deriver.
func New(st Store, policy align.Policy, logger *slog.Logger) *Deriver {
	return &Deriver{
		store:  st,
		policy: policy.Normalized(),
		logger: logging.NewComponentLogger(logger, "derive"),
	}
}

// pair is one (source→pivot, target→pivot) composition candidate.
type pair struct {
	target     media.SegmentMapping
	overlap    float64
	ratio      float64
	confidence float64
}

// Run derives mappings from sourceEditionID to targetEditionID through
// pivotEditionID. Both editions must already be aligned against the pivot:
// set A maps source segments into pivot ranges, set B maps target segments
// into pivot ranges, and every A mapping is composed with the B mappings
// whose pivot ranges intersect its own. Source segments with no intersecting
// B mapping are skipped; nothing errors short of storage failure.
func (d *Deriver) Run(ctx context.Context, sourceEditionID, pivotEditionID, targetEditionID int64) (align.Summary, error) {
	var summary align.Summary

	sourceMappings, err := d.store.MappingsForPair(ctx, sourceEditionID, pivotEditionID)
	if err != nil {
		return summary, err
	}
	if len(sourceMappings) == 0 {
		return summary, services.Wrap(services.ErrNotFound, "derive", "run",
			fmt.Sprintf("no mappings from edition %d to pivot %d", sourceEditionID, pivotEditionID), nil)
	}
	targetMappings, err := d.store.MappingsForPair(ctx, targetEditionID, pivotEditionID)
	if err != nil {
		return summary, err
	}
	if len(targetMappings) == 0 {
		return summary, services.Wrap(services.ErrNotFound, "derive", "run",
			fmt.Sprintf("no mappings from edition %d to pivot %d", targetEditionID, pivotEditionID), nil)
	}

	for _, sm := range sourceMappings {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		mapping, err := d.deriveOne(ctx, sm, targetMappings, targetEditionID)
		switch {
		case err == nil:
			summary.Matched++
			d.logger.Info("mapping derived", logging.Args(
				logging.String(logging.FieldSourceUnit, sm.SourceNumber.String()),
				logging.String(logging.FieldTargetRange, fmt.Sprintf("[%s, %s]", mapping.TargetStart, mapping.TargetEnd)),
				logging.Float64("confidence", mapping.Confidence),
				logging.String(logging.FieldOutcome, "matched"),
			)...)
		case services.IsSkip(err):
			summary.Skipped++
		default:
			summary.Errored++
			d.logger.Warn("derivation errored", logging.Args(
				logging.String(logging.FieldSourceUnit, sm.SourceNumber.String()),
				logging.String(logging.FieldOutcome, "errored"),
				logging.Error(err),
			)...)
		}
	}
	return summary, nil
}

func (d *Deriver) deriveOne(ctx context.Context, sm media.SegmentMapping, targetMappings []media.SegmentMapping, targetEditionID int64) (*media.SegmentMapping, error) {
	// Every target mapping whose pivot range intersects the source's pivot
	// range is a composition candidate, discounted by the overlap relative
	// to the shorter of the two pivot spans.
	var pairs []pair
	for _, tm := range targetMappings {
		overlap := media.OverlapLength(sm.TargetStart, sm.TargetEnd, tm.TargetStart, tm.TargetEnd)
		if overlap == 0 {
			continue
		}
		ratio := media.OverlapRatio(sm.TargetStart, sm.TargetEnd, tm.TargetStart, tm.TargetEnd)
		pairs = append(pairs, pair{
			target:     tm,
			overlap:    overlap,
			ratio:      ratio,
			confidence: align.ClampConfidence(sm.Confidence * tm.Confidence * ratio),
		})
	}
	if len(pairs) == 0 {
		return nil, services.Wrap(services.ErrInsufficient, "derive", "compose", "no target mappings intersect the pivot range", nil)
	}

	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.confidence > best.confidence {
			best = p
		}
	}

	// Keep the pairs within epsilon of the best and merge their target-side
	// ordinals from the lowest, stopping at the first gap wider than the
	// tolerance.
	kept := pairs[:0]
	for _, p := range pairs {
		if p.confidence >= best.confidence-d.policy.DeriveEpsilon {
			kept = append(kept, p)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		return kept[i].target.SourceNumber < kept[j].target.SourceNumber
	})

	start := kept[0].target.SourceNumber
	end := start
	merged := 1
	for _, p := range kept[1:] {
		if media.UnitsBetween(end, p.target.SourceNumber) > d.policy.DeriveGapTolerance {
			break
		}
		end = p.target.SourceNumber
		merged++
	}

	envelope := align.Envelope{
		Kind: "derive",
		Guard: align.GuardResult{
			Confidence:    best.confidence,
			MeetsApproval: best.confidence >= d.policy.ApprovalThreshold,
		},
		Derive: &align.DeriveEvidence{
			PivotEditionID:   sm.TargetEditionID,
			SourcePivotStart: sm.TargetStart.String(),
			SourcePivotEnd:   sm.TargetEnd.String(),
			TargetPivotStart: best.target.TargetStart.String(),
			TargetPivotEnd:   best.target.TargetEnd.String(),
			OverlapLength:    best.overlap,
			OverlapRatio:     best.ratio,
			SourceConfidence: sm.Confidence,
			TargetConfidence: best.target.Confidence,
			PairCount:        merged,
		},
	}
	evidenceJSON, err := envelope.Encode()
	if err != nil {
		return nil, services.Wrap(services.ErrSchema, "derive", "evidence", "encode evidence", err)
	}

	mapping := &media.SegmentMapping{
		SourceSegmentID: sm.SourceSegmentID,
		SourceEditionID: sm.SourceEditionID,
		SourceNumber:    sm.SourceNumber,
		TargetEditionID: targetEditionID,
		TargetStart:     start,
		TargetEnd:       end,
		Confidence:      best.confidence,
		Status:          media.StatusProposed,
		Algorithm:       align.AlgorithmDerived,
		EvidenceJSON:    evidenceJSON,
	}
	if err := d.store.UpsertMapping(ctx, mapping); err != nil {
		return nil, services.Wrap(services.ErrTransient, "derive", "persist", "upsert mapping", err)
	}
	return mapping, nil
}
