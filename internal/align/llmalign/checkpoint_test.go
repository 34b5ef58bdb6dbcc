package llmalign

import (
	"context"
	"math"
	"strings"
	"testing"

	"concord/internal/align"
	"concord/internal/logging"
	"concord/internal/media"
	"concord/internal/store"
	"concord/internal/testsupport"
)

func buildEditions(t *testing.T, st *store.Store, sourceCount int) (source, target *media.Edition) {
	t.Helper()

	source = testsupport.MustCreateEdition(t, st, "Novel", media.TypeNovel)
	target = testsupport.MustCreateEdition(t, st, "Anime", media.TypeAnime)
	for i := 0; i < sourceCount; i++ {
		testsupport.MustInsertSegment(t, st, source, media.OrdinalFromInt(int64(i+1)), "the hero travels", "a river crossing")
	}
	for n := int64(10); n <= 12; n++ {
		testsupport.MustInsertSegment(t, st, target, media.OrdinalFromInt(n), "the journey continues")
	}
	return source, target
}

func TestCheckpointAlignerPersistsPlacement(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	source, target := buildEditions(t, st, 1)

	completer := &testsupport.ScriptedCompleter{Replies: []string{
		`{"start": 10, "end": 11, "confidence": 0.9, "needs_wider_window": false, "anchors": ["river crossing"], "matched_phrases": ["the hero travels"]}`,
	}}
	aligner := newCheckpointAligner(st, completer, "test-model", align.DefaultPolicy(), logging.NewNop())

	summary, err := aligner.Run(context.Background(), source.ID, target.ID, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Matched != 1 {
		t.Fatalf("summary = %+v, want 1 matched", summary)
	}

	mappings, err := st.MappingsForPair(context.Background(), source.ID, target.ID)
	if err != nil {
		t.Fatalf("MappingsForPair: %v", err)
	}
	m := mappings[0]
	if m.TargetStart != media.OrdinalFromInt(10) || m.TargetEnd != media.OrdinalFromInt(11) {
		t.Fatalf("range = [%s, %s], want [10, 11]", m.TargetStart, m.TargetEnd)
	}
	if math.Abs(m.Confidence-0.9) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.9", m.Confidence)
	}
	if m.Algorithm != align.AlgorithmLLMCheckpoint {
		t.Fatalf("algorithm = %q", m.Algorithm)
	}

	envelope, err := align.DecodeEnvelope(m.EvidenceJSON)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if envelope.Checkpoint == nil || envelope.Checkpoint.Model != "test-model" {
		t.Fatalf("checkpoint evidence = %+v", envelope.Checkpoint)
	}
	if len(envelope.Checkpoint.Anchors) != 1 {
		t.Fatalf("anchors = %v", envelope.Checkpoint.Anchors)
	}

	// The prompt must carry both the source digest and the target window.
	if len(completer.Requests) != 1 {
		t.Fatalf("completer called %d times, want 1", len(completer.Requests))
	}
	user := completer.Requests[0][1].Content
	if !strings.Contains(user, "the hero travels") || !strings.Contains(user, "10:") {
		t.Fatalf("user prompt missing digests:\n%s", user)
	}
}

func TestCheckpointAlignerPromptCarriesCheckpoint(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	source, target := buildEditions(t, st, 2)

	completer := &testsupport.ScriptedCompleter{Replies: []string{
		`{"start": 10, "end": 11, "confidence": 0.9, "needs_wider_window": false}`,
		`{"start": 12, "end": 12, "confidence": 0.9, "needs_wider_window": false}`,
	}}
	aligner := newCheckpointAligner(st, completer, "test-model", align.DefaultPolicy(), logging.NewNop())

	summary, err := aligner.Run(context.Background(), source.ID, target.ID, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Matched != 2 {
		t.Fatalf("summary = %+v, want 2 matched", summary)
	}
	if len(completer.Requests) != 2 {
		t.Fatalf("completer called %d times, want 2", len(completer.Requests))
	}

	// Before any mapping exists the prompt has no checkpoint line.
	first := completer.Requests[0][1].Content
	if strings.Contains(first, "Checkpoint:") {
		t.Fatalf("first prompt carries a checkpoint before any mapping:\n%s", first)
	}

	// After segment 1 lands at [10, 11], the second prompt states both
	// checkpoint values and the system prompt bounds the regression.
	second := completer.Requests[1][1].Content
	if !strings.Contains(second, "Checkpoint: source segment 1") || !strings.Contains(second, "target segment 11") {
		t.Fatalf("second prompt missing checkpoint values:\n%s", second)
	}
	system := completer.Requests[1][0].Content
	if !strings.Contains(system, "behind the checkpoint") {
		t.Fatalf("system prompt missing the regression bound:\n%s", system)
	}
}

func TestCheckpointAlignerCorrectiveRetry(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	source, target := buildEditions(t, st, 1)

	completer := &testsupport.ScriptedCompleter{Replies: []string{
		`{"start": 11, "end": 10, "confidence": 0.9, "needs_wider_window": false}`,
		`{"start": 10, "end": 11, "confidence": 0.9, "needs_wider_window": false}`,
	}}
	aligner := newCheckpointAligner(st, completer, "test-model", align.DefaultPolicy(), logging.NewNop())

	summary, err := aligner.Run(context.Background(), source.ID, target.ID, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Matched != 1 {
		t.Fatalf("summary = %+v, want recovery via corrective retry", summary)
	}
	if len(completer.Requests) != 2 {
		t.Fatalf("completer called %d times, want 2", len(completer.Requests))
	}

	// The corrective turn must include the rejected reply and a correction.
	second := completer.Requests[1]
	if len(second) != 4 {
		t.Fatalf("corrective request has %d messages, want 4", len(second))
	}
	if second[2].Role != "assistant" || second[3].Role != "user" {
		t.Fatalf("corrective roles = %s, %s", second[2].Role, second[3].Role)
	}
	if !strings.Contains(second[3].Content, "invalid") {
		t.Fatalf("correction prompt = %q", second[3].Content)
	}

	mappings, _ := st.MappingsForPair(context.Background(), source.ID, target.ID)
	envelope, err := align.DecodeEnvelope(mappings[0].EvidenceJSON)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if !envelope.Checkpoint.Corrected {
		t.Fatal("corrective retry not recorded in evidence")
	}
}

func TestCheckpointAlignerGivesUpAfterCorrectiveRetry(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	source, target := buildEditions(t, st, 1)

	completer := &testsupport.ScriptedCompleter{Replies: []string{
		`not json at all`,
		`still not json`,
	}}
	aligner := newCheckpointAligner(st, completer, "test-model", align.DefaultPolicy(), logging.NewNop())

	summary, err := aligner.Run(context.Background(), source.ID, target.ID, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Errored != 1 || summary.Matched != 0 {
		t.Fatalf("summary = %+v, want 1 errored", summary)
	}
	if mappings, _ := st.MappingsForPair(context.Background(), source.ID, target.ID); len(mappings) != 0 {
		t.Fatalf("persisted %d mappings from invalid responses", len(mappings))
	}
}

func TestCheckpointAlignerWidensWindowOnce(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	source, target := buildEditions(t, st, 1)

	completer := &testsupport.ScriptedCompleter{Replies: []string{
		`{"start": 10, "end": 10, "confidence": 0.4, "needs_wider_window": true}`,
		`{"start": 12, "end": 12, "confidence": 0.8, "needs_wider_window": false}`,
	}}
	aligner := newCheckpointAligner(st, completer, "test-model", align.DefaultPolicy(), logging.NewNop())

	summary, err := aligner.Run(context.Background(), source.ID, target.ID, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Matched != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(completer.Requests) != 2 {
		t.Fatalf("completer called %d times, want a second pass after widening", len(completer.Requests))
	}

	mappings, _ := st.MappingsForPair(context.Background(), source.ID, target.ID)
	envelope, err := align.DecodeEnvelope(mappings[0].EvidenceJSON)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if !envelope.Checkpoint.Widened {
		t.Fatal("widening not recorded in evidence")
	}
	if mappings[0].TargetStart != media.OrdinalFromInt(12) {
		t.Fatalf("start = %s, want 12", mappings[0].TargetStart)
	}
}

func TestCheckpointAlignerClampsOutOfWindowResponse(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	source, target := buildEditions(t, st, 1)

	completer := &testsupport.ScriptedCompleter{Replies: []string{
		`{"start": 5, "end": 500, "confidence": 0.9, "needs_wider_window": false}`,
	}}
	aligner := newCheckpointAligner(st, completer, "test-model", align.DefaultPolicy(), logging.NewNop())

	if _, err := aligner.Run(context.Background(), source.ID, target.ID, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	mappings, _ := st.MappingsForPair(context.Background(), source.ID, target.ID)
	m := mappings[0]
	if m.TargetStart < media.OrdinalFromInt(10) || m.TargetEnd > media.OrdinalFromInt(12) {
		t.Fatalf("range [%s, %s] escapes edition bounds [10, 12]", m.TargetStart, m.TargetEnd)
	}
}
