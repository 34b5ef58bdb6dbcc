package llmalign

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"concord/internal/align"
	"concord/internal/logging"
	"concord/internal/media"
	"concord/internal/services"
	"concord/internal/services/llm"
)

const rangeSystemPrompt = `You align narrative segments between two editions of the same story.
Given the full numbered segment lists of both editions, map every source
segment you can place to the contiguous target range covering the same story
content.

Reply with only a JSON object:
{"mappings": [{"from_number": <number>, "start": <number>, "end": <number>, "confidence": <0..1>}, ...], "confidence": <0..1>, "uncertain": [<numbers>]}

Rules:
- from_number is a source segment number; start and end are target numbers, start <= end.
- Prefer ranges of at most %.0f segments; never exceed %.0f.
- Omit source segments you cannot place rather than guessing.
- List in uncertain the source segment numbers whose placement you doubt; use
  an empty list when none.`

// RangeAligner submits both editions in one batched request. When persisting
// a batch-placed mapping fails, that segment is retried one at a time with
// the checkpoint placer at a confidence penalty, so a storage hiccup never
// loses the whole run.
type RangeAligner struct {
	store     Store
	completer Completer
	model     string
	policy    align.Policy
	logger    *slog.Logger
	fallback  *CheckpointAligner
}

// NewRangeAligner wraps an LLM client in a full-range aligner.
func NewRangeAligner(st Store, client *llm.Client, model string, policy align.Policy, logger *slog.Logger) *RangeAligner {
	return newRangeAligner(st, clientCompleter{client: client}, model, policy, logger)
}

func newRangeAligner(st Store, completer Completer, model string, policy align.Policy, logger *slog.Logger) *RangeAligner {
	return &RangeAligner{
		store:     st,
		completer: completer,
		model:     model,
		policy:    policy.Normalized(),
		logger:    logging.NewComponentLogger(logger, "align.llm.range"),
		fallback:  newCheckpointAligner(st, completer, model, policy, logger),
	}
}

// Run aligns the source edition against the target edition in one batch.
func (a *RangeAligner) Run(ctx context.Context, sourceEditionID, targetEditionID int64, opts Options) (align.Summary, error) {
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
		return summary, services.Wrap(services.ErrNotFound, "align.llm.range", "run",
			fmt.Sprintf("target edition %d has no segments", targetEditionID), nil)
	}
	bounds := align.Bounds{Min: boundsMin, Max: boundsMax}

	var from *media.Ordinal
	if checkpoint.Set() {
		next := checkpoint.SourceNumber + 1
		from = &next
	}
	sources, err := a.store.SegmentsInRange(ctx, sourceEditionID, from, nil)
	if err != nil {
		return summary, err
	}
	if len(sources) == 0 {
		return summary, nil
	}
	targets, err := a.store.SegmentsInRange(ctx, targetEditionID, nil, nil)
	if err != nil {
		return summary, err
	}

	resp, err := a.requestBatch(ctx, sources, targets)
	if err != nil {
		return summary, err
	}

	bySource := make(map[media.Ordinal]*media.Segment, len(sources))
	for i := range sources {
		bySource[sources[i].Number] = &sources[i]
	}

	sort.Slice(resp.Mappings, func(i, j int) bool {
		return resp.Mappings[i].FromNumber < resp.Mappings[j].FromNumber
	})

	// handled marks source segments that were placed or failed persistence;
	// the rest count as skipped. Entries for unknown source numbers are
	// errored without consuming a real segment.
	handled := make(map[media.Ordinal]bool, len(resp.Mappings))
	for _, rm := range resp.Mappings {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		fromNumber := media.OrdinalFromFloat(rm.FromNumber)
		segment, known := bySource[fromNumber]
		if !known {
			summary.Errored++
			a.logger.Warn("response maps unknown source segment", logging.Args(
				logging.String(logging.FieldSourceUnit, fromNumber.String()),
				logging.String(logging.FieldOutcome, "errored"),
			)...)
			continue
		}

		mapping, err := a.persistRangeMapping(ctx, segment, targetEditionID, checkpoint, bounds, rm, resp)
		if err != nil {
			handled[fromNumber] = true
			a.logger.Warn("batch placement failed to persist, retrying segment via fallback", logging.Args(
				logging.String(logging.FieldSourceUnit, segment.Number.String()),
				logging.Error(err),
			)...)
			fb, fbErr := a.fallbackOne(ctx, segment, targetEditionID, checkpoint, bounds)
			switch {
			case fbErr == nil:
				summary.Matched++
				checkpoint = checkpoint.Advance(fb.SourceNumber, fb.TargetEnd)
				a.logger.Info("segment aligned via fallback", logging.Args(
					logging.String(logging.FieldSourceUnit, segment.Number.String()),
					logging.String(logging.FieldTargetRange, fmt.Sprintf("[%s, %s]", fb.TargetStart, fb.TargetEnd)),
					logging.Float64("confidence", fb.Confidence),
					logging.String(logging.FieldOutcome, "matched"),
				)...)
			case services.IsSkip(fbErr):
				summary.Skipped++
			case services.IsFatal(fbErr):
				return summary, fbErr
			default:
				summary.Errored++
				a.logger.Warn("segment errored", logging.Args(
					logging.String(logging.FieldSourceUnit, segment.Number.String()),
					logging.String(logging.FieldOutcome, "errored"),
					logging.Error(fbErr),
				)...)
			}
			continue
		}
		handled[fromNumber] = true
		summary.Matched++
		checkpoint = checkpoint.Advance(mapping.SourceNumber, mapping.TargetEnd)
		a.logger.Info("segment aligned", logging.Args(
			logging.String(logging.FieldSourceUnit, segment.Number.String()),
			logging.String(logging.FieldTargetRange, fmt.Sprintf("[%s, %s]", mapping.TargetStart, mapping.TargetEnd)),
			logging.Float64("confidence", mapping.Confidence),
			logging.String(logging.FieldOutcome, "matched"),
		)...)
	}

	for i := range sources {
		if !handled[sources[i].Number] {
			summary.Skipped++
			a.logger.Info("segment skipped", logging.Args(
				logging.String(logging.FieldSourceUnit, sources[i].Number.String()),
				logging.String(logging.FieldOutcome, "skipped"),
				logging.String("reason", "not placed by batch response"),
			)...)
		}
	}
	return summary, nil
}

func (a *RangeAligner) requestBatch(ctx context.Context, sources, targets []media.Segment) (rangeResponse, error) {
	var resp rangeResponse
	system := fmt.Sprintf(rangeSystemPrompt, a.policy.SoftRangeCap, a.policy.HardRangeCap)
	user := fmt.Sprintf("Source segments:\n%s\n\nTarget segments:\n%s", DigestList(sources), DigestList(targets))

	content, err := completeValidated(ctx, a.completer, system, user, func(content string) error {
		var candidate rangeResponse
		if err := llm.DecodeJSON(content, &candidate); err != nil {
			return err
		}
		return candidate.validate()
	})
	if err != nil {
		return resp, err
	}
	if err := llm.DecodeJSON(content, &resp); err != nil {
		return resp, services.Wrap(services.ErrSchema, "align.llm.range", "decode", "decode validated response", err)
	}
	return resp, nil
}

func (a *RangeAligner) persistRangeMapping(ctx context.Context, segment *media.Segment, targetEditionID int64, checkpoint align.Checkpoint, bounds align.Bounds, rm rangeMapping, resp rangeResponse) (*media.SegmentMapping, error) {
	start := bounds.Clamp(media.OrdinalFromFloat(rm.Start))
	end := bounds.Clamp(media.OrdinalFromFloat(rm.End))
	if end < start {
		start, end = end, start
	}

	guard := align.ApplyGuard(checkpoint, start, end, rm.Confidence, a.policy)

	envelope := align.Envelope{
		Kind:  "llm-range",
		Guard: guard,
		Range: &align.RangeEvidence{
			Model:         a.model,
			BatchSize:     len(resp.Mappings),
			RunConfidence: resp.Confidence,
			Uncertain:     uncertainNumbers(resp),
		},
	}
	evidenceJSON, err := envelope.Encode()
	if err != nil {
		return nil, services.Wrap(services.ErrSchema, "align.llm.range", "evidence", "encode evidence", err)
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
		Algorithm:       align.AlgorithmLLMRange,
		EvidenceJSON:    evidenceJSON,
	}
	if err := a.store.UpsertMapping(ctx, mapping); err != nil {
		return nil, services.Wrap(services.ErrTransient, "align.llm.range", "persist", "upsert mapping", err)
	}
	return mapping, nil
}

// uncertainNumbers normalizes the response's doubtful source numbers for the
// evidence record.
func uncertainNumbers(resp rangeResponse) []string {
	if len(resp.Uncertain) == 0 {
		return nil
	}
	out := make([]string, 0, len(resp.Uncertain))
	for _, n := range resp.Uncertain {
		out = append(out, media.OrdinalFromFloat(n).String())
	}
	return out
}

// fallbackOne retries a single source segment with the checkpoint placer
// after its batch-placed mapping failed to persist.
func (a *RangeAligner) fallbackOne(ctx context.Context, segment *media.Segment, targetEditionID int64, checkpoint align.Checkpoint, bounds align.Bounds) (*media.SegmentMapping, error) {
	mapping, err := a.fallback.AlignSegment(ctx, segment, targetEditionID, checkpoint, bounds)
	if err != nil {
		return nil, err
	}
	if err := a.demoteToFallback(ctx, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

// demoteToFallback rewrites a checkpoint-placed mapping with the fallback
// penalty and algorithm tag.
func (a *RangeAligner) demoteToFallback(ctx context.Context, mapping *media.SegmentMapping) error {
	mapping.Confidence = align.ClampConfidence(mapping.Confidence * a.policy.FallbackPenalty)
	mapping.Algorithm = align.AlgorithmLLMRangeFallback

	envelope, err := align.DecodeEnvelope(mapping.EvidenceJSON)
	if err == nil {
		envelope.Kind = "llm-range-fallback"
		envelope.Range = &align.RangeEvidence{
			Model:    a.model,
			Fallback: true,
		}
		if encoded, encErr := envelope.Encode(); encErr == nil {
			mapping.EvidenceJSON = encoded
		}
	}
	if err := a.store.UpsertMapping(ctx, mapping); err != nil {
		return services.Wrap(services.ErrTransient, "align.llm.range", "persist", "demote to fallback", err)
	}
	return nil
}
