package llmalign

import (
	"context"
	"fmt"
	"log/slog"

	"concord/internal/align"
	"concord/internal/logging"
	"concord/internal/media"
	"concord/internal/services"
	"concord/internal/services/llm"
)

// Store is the persistence surface the LLM aligners need.
type Store interface {
	SegmentsInRange(ctx context.Context, editionID int64, min, max *media.Ordinal) ([]media.Segment, error)
	UpsertMapping(ctx context.Context, m *media.SegmentMapping) error
	LatestMapping(ctx context.Context, sourceEditionID, targetEditionID int64) (*media.SegmentMapping, error)
	EditionBounds(ctx context.Context, editionID int64) (min, max media.Ordinal, ok bool, err error)
}

// Options tunes one aligner run.
type Options struct {
	Recompute bool
}

const checkpointSystemPrompt = `You align narrative segments between two editions of the same story.
Given one source segment and a numbered window of target segments, decide which
contiguous target range covers the same story content as the source segment.

Reply with only a JSON object:
{"start": <number>, "end": <number>, "confidence": <0..1>, "needs_wider_window": <bool>, "anchors": [<=3 strings], "matched_phrases": [<=3 strings]}

Rules:
- start and end are target segment numbers from the window, start <= end.
- Prefer ranges of at most %.0f segments; never exceed %.0f.
- The story progresses in order. When an alignment checkpoint is given, never
  place the range more than %.0f segments behind the checkpoint's target end.
- anchors name the shared plot beats that justify the range.
- Set needs_wider_window to true only when the matching content clearly lies
  outside the window; leave start and end at your best guess.`

// CheckpointAligner places one source segment at a time inside a window
// around the running checkpoint.
type CheckpointAligner struct {
	store     Store
	completer Completer
	model     string
	policy    align.Policy
	logger    *slog.Logger
}

// NewCheckpointAligner wraps an LLM client in a checkpoint aligner. The
// model name is only recorded in evidence; the client decides what to call.
func NewCheckpointAligner(st Store, client *llm.Client, model string, policy align.Policy, logger *slog.Logger) *CheckpointAligner {
	return newCheckpointAligner(st, clientCompleter{client: client}, model, policy, logger)
}

func newCheckpointAligner(st Store, completer Completer, model string, policy align.Policy, logger *slog.Logger) *CheckpointAligner {
	return &CheckpointAligner{
		store:     st,
		completer: completer,
		model:     model,
		policy:    policy.Normalized(),
		logger:    logging.NewComponentLogger(logger, "align.llm.checkpoint"),
	}
}

// Run aligns the source edition against the target edition one segment at a
// time, advancing the checkpoint after each persisted mapping.
func (a *CheckpointAligner) Run(ctx context.Context, sourceEditionID, targetEditionID int64, opts Options) (align.Summary, error) {
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
		return summary, services.Wrap(services.ErrNotFound, "align.llm.checkpoint", "run",
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
		mapping, err := a.AlignSegment(ctx, &segment, targetEditionID, checkpoint, bounds)
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

// AlignSegment places a single source segment. Exposed so the full-range
// aligner can reuse it as a fallback.
func (a *CheckpointAligner) AlignSegment(ctx context.Context, segment *media.Segment, targetEditionID int64, checkpoint align.Checkpoint, bounds align.Bounds) (*media.SegmentMapping, error) {
	anchor := bounds.Min
	if checkpoint.Set() {
		anchor = bounds.Clamp(checkpoint.TargetEnd)
	}
	window := align.WindowAround(anchor, a.policy, bounds)

	resp, window, widened, corrected, err := a.placeInWindow(ctx, segment, targetEditionID, window, checkpoint, bounds)
	if err != nil {
		return nil, err
	}

	start := bounds.Clamp(resp.startOrdinal())
	end := bounds.Clamp(resp.endOrdinal())
	if end < start {
		start, end = end, start
	}

	guard := align.ApplyGuard(checkpoint, start, end, resp.Confidence, a.policy)

	envelope := align.Envelope{
		Kind:  "llm-checkpoint",
		Guard: guard,
		Checkpoint: &align.CheckpointEvidence{
			Model:          a.model,
			WindowStart:    window.Min.String(),
			WindowEnd:      window.Max.String(),
			Widened:        widened,
			Corrected:      corrected,
			Anchors:        resp.Anchors,
			MatchedPhrases: resp.MatchedPhrases,
		},
	}
	evidenceJSON, err := envelope.Encode()
	if err != nil {
		return nil, services.Wrap(services.ErrSchema, "align.llm.checkpoint", "evidence", "encode evidence", err)
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
		Algorithm:       align.AlgorithmLLMCheckpoint,
		EvidenceJSON:    evidenceJSON,
	}
	if err := a.store.UpsertMapping(ctx, mapping); err != nil {
		return nil, services.Wrap(services.ErrTransient, "align.llm.checkpoint", "persist", "upsert mapping", err)
	}
	return mapping, nil
}

// placeInWindow runs the checkpoint conversation, widening the window once
// when the model reports the content lies outside it.
func (a *CheckpointAligner) placeInWindow(ctx context.Context, segment *media.Segment, targetEditionID int64, window align.Window, checkpoint align.Checkpoint, bounds align.Bounds) (resp checkpointResponse, used align.Window, widened, corrected bool, err error) {
	for {
		targets, err := a.store.SegmentsInRange(ctx, targetEditionID, &window.Min, &window.Max)
		if err != nil {
			return resp, window, widened, corrected, services.Wrap(services.ErrTransient, "align.llm.checkpoint", "window", "load target window", err)
		}
		if len(targets) == 0 {
			return resp, window, widened, corrected, services.Wrap(services.ErrInsufficient, "align.llm.checkpoint", "window", "no target segments in window", nil)
		}

		system := fmt.Sprintf(checkpointSystemPrompt, a.policy.SoftRangeCap, a.policy.HardRangeCap, a.policy.BacktrackLimit)
		user := fmt.Sprintf("Source segment:\n%s\n\nTarget window:\n%s", Digest(segment), DigestList(targets))
		if checkpoint.Set() {
			user = fmt.Sprintf("Checkpoint: source segment %s was last aligned ending at target segment %s.\n\n%s",
				checkpoint.SourceNumber, checkpoint.TargetEnd, user)
		}

		attempt := 0
		content, err := completeValidated(ctx, a.completer, system, user, func(content string) error {
			attempt++
			var candidate checkpointResponse
			if err := llm.DecodeJSON(content, &candidate); err != nil {
				return err
			}
			return candidate.validate()
		})
		if err != nil {
			return resp, window, widened, corrected, err
		}
		if attempt > 1 {
			corrected = true
		}
		if err := llm.DecodeJSON(content, &resp); err != nil {
			return resp, window, widened, corrected, services.Wrap(services.ErrSchema, "align.llm.checkpoint", "decode", "decode validated response", err)
		}

		if !resp.NeedsWiderWindow {
			return resp, window, widened, corrected, nil
		}
		if widened {
			// Already widened once; take the model's best guess as-is.
			return resp, window, widened, corrected, nil
		}
		widened = true
		window = window.Expand(2*window.Width(), a.policy, bounds)
	}
}
