package vote

import (
	"context"
	"fmt"
	"log/slog"

	"concord/internal/align"
	"concord/internal/logging"
	"concord/internal/media"
	"concord/internal/services"
)

// Store is the persistence surface the voting aligner needs.
type Store interface {
	SegmentsInRange(ctx context.Context, editionID int64, min, max *media.Ordinal) ([]media.Segment, error)
	EventFingerprints(ctx context.Context, segmentID int64) ([]media.Fingerprint, error)
	PutFingerprint(ctx context.Context, fp *media.Fingerprint) error
	UpsertMapping(ctx context.Context, m *media.SegmentMapping) error
	LatestMapping(ctx context.Context, sourceEditionID, targetEditionID int64) (*media.SegmentMapping, error)
	EditionBounds(ctx context.Context, editionID int64) (min, max media.Ordinal, ok bool, err error)
}

// Embedder fills in missing event fingerprints during a run. Optional; when
// nil, segments without stored event fingerprints are skipped.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Options tunes one aligner run.
type Options struct {
	// Recompute realigns every source segment instead of resuming past the
	// checkpoint. Existing mappings are overwritten in place.
	Recompute bool
}

// Aligner proposes mappings by letting per-event searches vote on target
// segments.
type Aligner struct {
	store    Store
	searcher align.Searcher
	embedder Embedder
	policy   align.Policy
	logger   *slog.Logger
}

// New constructs a voting aligner. The embedder may be nil.
func New(st Store, searcher align.Searcher, embedder Embedder, policy align.Policy, logger *slog.Logger) *Aligner {
	return &Aligner{
		store:    st,
		searcher: searcher,
		embedder: embedder,
		policy:   policy.Normalized(),
		logger:   logging.NewComponentLogger(logger, "align.vote"),
	}
}

// Run aligns the source edition against the target edition and returns the
// per-unit outcome tally. Unit-level failures are counted and logged; only
// fatal errors abort the run.
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
		return summary, services.Wrap(services.ErrNotFound, "align.vote", "run",
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
	fingerprints, err := a.eventFingerprints(ctx, segment)
	if err != nil {
		return nil, err
	}
	if len(fingerprints) == 0 {
		return nil, services.Wrap(services.ErrInsufficient, "align.vote", "fingerprints", "segment has no event fingerprints", nil)
	}

	windowMin, windowMax := a.voteWindow(checkpoint, bounds)
	tally := align.NewTally()
	contextHits := 0
	for _, fp := range fingerprints {
		candidates, err := a.searcher.Search(ctx, fp.Vector, targetEditionID, windowMin, windowMax, a.policy.VoteCandidates)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "align.vote", "search", "candidate retrieval failed", err)
		}
		for _, c := range candidates {
			adjusted := align.AdjustForTimeContext(c.Similarity, segment.TimeContext, c.TimeContext, a.policy)
			if adjusted != c.Similarity {
				contextHits++
			}
			tally.Add(c.Number, adjusted)
		}
	}
	if tally.Empty() {
		return nil, services.Wrap(services.ErrInsufficient, "align.vote", "cluster", "no candidates in search window", nil)
	}

	cluster, ok := align.ClusterVotes(tally, a.policy)
	if !ok {
		return nil, services.Wrap(services.ErrInsufficient, "align.vote", "cluster", "empty vote tally", nil)
	}

	confidence := cluster.AvgSim
	jumpPenalty, reject := align.ForwardJumpPenalty(checkpoint, cluster.Start, a.policy)
	if reject {
		return nil, services.Wrap(services.ErrInsufficient, "align.vote", "guard",
			fmt.Sprintf("target start %s jumps too far past checkpoint %s", cluster.Start, checkpoint.TargetEnd), nil)
	}
	confidence -= jumpPenalty

	if confidence < a.policy.VoteMinConfidence {
		return nil, services.Wrap(services.ErrInsufficient, "align.vote", "confidence",
			fmt.Sprintf("confidence %.3f below minimum %.2f", confidence, a.policy.VoteMinConfidence), nil)
	}

	guard := align.ApplyGuard(checkpoint, cluster.Start, cluster.End, confidence, a.policy)

	numbers := make([]string, 0, len(cluster.Numbers))
	for _, n := range cluster.Numbers {
		numbers = append(numbers, n.String())
	}
	envelope := align.Envelope{
		Kind:  "vote",
		Guard: guard,
		Vote: &align.VoteEvidence{
			EventCount:      len(fingerprints),
			VoteCount:       cluster.VoteCount,
			Histogram:       voteHistogram(tally),
			ClusterNumbers:  numbers,
			ClusterAvgSim:   cluster.AvgSim,
			UncappedStart:   cluster.UncappedStart.String(),
			UncappedEnd:     cluster.UncappedEnd.String(),
			JumpPenalty:     jumpPenalty,
			TimeContextHits: contextHits,
		},
	}
	evidenceJSON, err := envelope.Encode()
	if err != nil {
		return nil, services.Wrap(services.ErrSchema, "align.vote", "evidence", "encode evidence", err)
	}

	mapping := &media.SegmentMapping{
		SourceSegmentID: segment.ID,
		SourceEditionID: segment.EditionID,
		SourceNumber:    segment.Number,
		TargetEditionID: targetEditionID,
		TargetStart:     cluster.Start,
		TargetEnd:       cluster.End,
		Confidence:      guard.Confidence,
		Status:          align.DeriveStatus(guard),
		Algorithm:       align.AlgorithmVote,
		EvidenceJSON:    evidenceJSON,
	}
	if err := a.store.UpsertMapping(ctx, mapping); err != nil {
		return nil, services.Wrap(services.ErrTransient, "align.vote", "persist", "upsert mapping", err)
	}
	return mapping, nil
}

// maxHistogramEntries bounds the vote histogram kept in evidence.
const maxHistogramEntries = 10

// voteHistogram snapshots the top-ranked target numbers with their vote
// support for the evidence record.
func voteHistogram(tally *align.Tally) []align.VoteStat {
	ranked := tally.Ranked()
	if len(ranked) > maxHistogramEntries {
		ranked = ranked[:maxHistogramEntries]
	}
	stats := make([]align.VoteStat, 0, len(ranked))
	for _, v := range ranked {
		stats = append(stats, align.VoteStat{
			Number: v.Number.String(),
			Count:  v.Count,
			AvgSim: v.AvgSim,
		})
	}
	return stats
}

// eventFingerprints loads the segment's stored per-event vectors, embedding
// any events that have no stored fingerprint yet when an embedder is wired.
func (a *Aligner) eventFingerprints(ctx context.Context, segment *media.Segment) ([]media.Fingerprint, error) {
	stored, err := a.store.EventFingerprints(ctx, segment.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "align.vote", "fingerprints", "load event fingerprints", err)
	}
	if a.embedder == nil || len(stored) >= len(segment.Events) {
		return stored, nil
	}

	have := make(map[int]bool, len(stored))
	for _, fp := range stored {
		have[fp.EventIndex] = true
	}
	for i, event := range segment.Events {
		if i >= media.MaxEventsPerSegment {
			break
		}
		if have[i] || event == "" {
			continue
		}
		vector, err := a.embedder.Embed(ctx, event)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "align.vote", "embed",
				fmt.Sprintf("embed event %d", i), err)
		}
		fp := media.Fingerprint{
			SegmentID:  segment.ID,
			Channel:    media.ChannelEvents,
			EventIndex: i,
			Model:      a.embedder.Model(),
			Vector:     vector,
		}
		if err := a.store.PutFingerprint(ctx, &fp); err != nil {
			return nil, services.Wrap(services.ErrTransient, "align.vote", "embed", "store fingerprint", err)
		}
		stored = append(stored, fp)
	}
	return stored, nil
}

// voteWindow bounds the candidate search around the checkpoint: a backtrack
// margin behind it and the full rejectable jump distance ahead. With no
// checkpoint the whole target edition is searched.
func (a *Aligner) voteWindow(checkpoint align.Checkpoint, bounds align.Bounds) (*media.Ordinal, *media.Ordinal) {
	if !checkpoint.Set() {
		return nil, nil
	}
	min := bounds.Clamp(checkpoint.TargetEnd.AddUnits(-a.policy.MaxForwardJump))
	max := bounds.Clamp(checkpoint.TargetEnd.AddUnits(2 * a.policy.MaxForwardJump))
	return &min, &max
}
