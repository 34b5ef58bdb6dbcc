package llmalign

import (
	"context"
	"errors"
	"math"
	"testing"

	"concord/internal/align"
	"concord/internal/logging"
	"concord/internal/media"
	"concord/internal/store"
	"concord/internal/testsupport"
)

func TestRangeAlignerMapsBatchResponse(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	source, target := buildEditions(t, st, 2)

	completer := &testsupport.ScriptedCompleter{Replies: []string{
		`{"mappings": [
            {"from_number": 1, "start": 10, "end": 10, "confidence": 0.9},
            {"from_number": 2, "start": 11, "end": 12, "confidence": 0.8}
        ], "confidence": 0.85, "uncertain": []}`,
	}}
	aligner := newRangeAligner(st, completer, "test-model", align.DefaultPolicy(), logging.NewNop())

	summary, err := aligner.Run(context.Background(), source.ID, target.ID, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Matched != 2 || summary.Skipped != 0 || summary.Errored != 0 {
		t.Fatalf("summary = %+v, want 2 matched", summary)
	}
	if len(completer.Requests) != 1 {
		t.Fatalf("completer called %d times, want a single batch", len(completer.Requests))
	}

	mappings, err := st.MappingsForPair(context.Background(), source.ID, target.ID)
	if err != nil {
		t.Fatalf("MappingsForPair: %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("got %d mappings", len(mappings))
	}
	for _, m := range mappings {
		if m.Algorithm != align.AlgorithmLLMRange {
			t.Fatalf("algorithm = %q", m.Algorithm)
		}
		envelope, err := align.DecodeEnvelope(m.EvidenceJSON)
		if err != nil {
			t.Fatalf("DecodeEnvelope: %v", err)
		}
		if envelope.Range == nil || envelope.Range.BatchSize != 2 {
			t.Fatalf("range evidence = %+v", envelope.Range)
		}
		if len(envelope.Range.Uncertain) != 0 {
			t.Fatalf("uncertain = %v, want none", envelope.Range.Uncertain)
		}
	}
}

func TestRangeAlignerRecordsUncertainSourceNumbers(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	source, target := buildEditions(t, st, 2)

	completer := &testsupport.ScriptedCompleter{Replies: []string{
		`{"mappings": [
            {"from_number": 1, "start": 10, "end": 10, "confidence": 0.9},
            {"from_number": 2, "start": 11, "end": 12, "confidence": 0.5}
        ], "confidence": 0.7, "uncertain": [2]}`,
	}}
	aligner := newRangeAligner(st, completer, "test-model", align.DefaultPolicy(), logging.NewNop())

	if _, err := aligner.Run(context.Background(), source.ID, target.ID, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mappings, err := st.MappingsForPair(context.Background(), source.ID, target.ID)
	if err != nil {
		t.Fatalf("MappingsForPair: %v", err)
	}
	for _, m := range mappings {
		envelope, err := align.DecodeEnvelope(m.EvidenceJSON)
		if err != nil {
			t.Fatalf("DecodeEnvelope: %v", err)
		}
		if len(envelope.Range.Uncertain) != 1 || envelope.Range.Uncertain[0] != "2" {
			t.Fatalf("uncertain = %v, want [2]", envelope.Range.Uncertain)
		}
	}
}

func TestRangeAlignerCountsUnknownSourceAndSkipsUnplaced(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	source, target := buildEditions(t, st, 2)

	completer := &testsupport.ScriptedCompleter{Replies: []string{
		`{"mappings": [
            {"from_number": 1, "start": 10, "end": 10, "confidence": 0.9},
            {"from_number": 99, "start": 11, "end": 11, "confidence": 0.5}
        ], "confidence": 0.6, "uncertain": [99]}`,
	}}
	aligner := newRangeAligner(st, completer, "test-model", align.DefaultPolicy(), logging.NewNop())

	summary, err := aligner.Run(context.Background(), source.ID, target.ID, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Matched != 1 {
		t.Fatalf("matched = %d, want 1", summary.Matched)
	}
	if summary.Errored != 1 {
		t.Fatalf("errored = %d, want 1 for the unknown source number", summary.Errored)
	}
	if summary.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1 for the unplaced segment", summary.Skipped)
	}
}

// brokenRangeStore refuses batch-placed upserts while letting everything else
// through, so fallback behavior is observable.
type brokenRangeStore struct {
	*store.Store
}

func (s *brokenRangeStore) UpsertMapping(ctx context.Context, m *media.SegmentMapping) error {
	if m.Algorithm == align.AlgorithmLLMRange {
		return errors.New("disk full")
	}
	return s.Store.UpsertMapping(ctx, m)
}

func TestRangeAlignerFallsBackWhenPersistFails(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	source, target := buildEditions(t, st, 1)

	// The batch reply places segment 1, but writing the batch mapping fails;
	// the segment is retried one at a time with the checkpoint placer.
	completer := &testsupport.ScriptedCompleter{Replies: []string{
		`{"mappings": [{"from_number": 1, "start": 10, "end": 11, "confidence": 0.9}], "confidence": 0.9, "uncertain": []}`,
		`{"start": 10, "end": 11, "confidence": 0.9, "needs_wider_window": false}`,
	}}
	aligner := newRangeAligner(&brokenRangeStore{Store: st}, completer, "test-model", align.DefaultPolicy(), logging.NewNop())

	summary, err := aligner.Run(context.Background(), source.ID, target.ID, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Matched != 1 || summary.Errored != 0 {
		t.Fatalf("summary = %+v, want 1 matched via fallback", summary)
	}
	if len(completer.Requests) != 2 {
		t.Fatalf("completer called %d times, want batch then per-segment retry", len(completer.Requests))
	}

	mappings, err := st.MappingsForPair(context.Background(), source.ID, target.ID)
	if err != nil {
		t.Fatalf("MappingsForPair: %v", err)
	}
	m := mappings[0]
	if m.Algorithm != align.AlgorithmLLMRangeFallback {
		t.Fatalf("algorithm = %q, want fallback tag", m.Algorithm)
	}
	// Placement confidence 0.9 discounted by the fallback penalty 0.6.
	if math.Abs(m.Confidence-0.54) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.54", m.Confidence)
	}

	envelope, err := align.DecodeEnvelope(m.EvidenceJSON)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if envelope.Range == nil || !envelope.Range.Fallback {
		t.Fatalf("fallback evidence = %+v", envelope.Range)
	}
}

func TestRangeAlignerBatchConversationFailureErrors(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	source, target := buildEditions(t, st, 1)

	// A batch reply that stays malformed through the corrective retry fails
	// the run; no mapping is invented.
	completer := &testsupport.ScriptedCompleter{Replies: []string{
		`nonsense`,
		`more nonsense`,
	}}
	aligner := newRangeAligner(st, completer, "test-model", align.DefaultPolicy(), logging.NewNop())

	if _, err := aligner.Run(context.Background(), source.ID, target.ID, Options{}); err == nil {
		t.Fatal("expected an error from a malformed batch conversation")
	}
	if mappings, _ := st.MappingsForPair(context.Background(), source.ID, target.ID); len(mappings) != 0 {
		t.Fatalf("persisted %d mappings from a failed batch", len(mappings))
	}
}

func TestRangeAlignerNoSourcesIsNoop(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	source := testsupport.MustCreateEdition(t, st, "Empty", media.TypeNovel)
	target := testsupport.MustCreateEdition(t, st, "Anime", media.TypeAnime)
	testsupport.MustInsertSegment(t, st, target, media.OrdinalFromInt(1), "t")

	completer := &testsupport.ScriptedCompleter{}
	aligner := newRangeAligner(st, completer, "test-model", align.DefaultPolicy(), logging.NewNop())

	summary, err := aligner.Run(context.Background(), source.ID, target.ID, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Total() != 0 {
		t.Fatalf("summary = %+v, want nothing considered", summary)
	}
	if len(completer.Requests) != 0 {
		t.Fatal("completer called for an empty source edition")
	}
}
