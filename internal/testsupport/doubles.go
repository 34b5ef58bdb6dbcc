package testsupport

import (
	"context"
	"fmt"

	"concord/internal/align"
	"concord/internal/media"
	"concord/internal/services/llm"
)

// ScriptedSearcher replays canned candidate lists keyed by query identity.
// Keys are assigned by registration order: the first distinct query vector
// seen gets script 0, the next script 1, and so on.
type ScriptedSearcher struct {
	Scripts [][]align.Candidate
	Filter  bool // when set, drop candidates outside the requested window

	calls int
}

// Search returns the next scripted candidate list.
func (s *ScriptedSearcher) Search(_ context.Context, _ []float32, _ int64, windowMin, windowMax *media.Ordinal, k int) ([]align.Candidate, error) {
	if s.calls >= len(s.Scripts) {
		return nil, fmt.Errorf("scripted searcher: unexpected call %d", s.calls+1)
	}
	script := s.Scripts[s.calls]
	s.calls++

	out := make([]align.Candidate, 0, len(script))
	for _, c := range script {
		if s.Filter {
			if windowMin != nil && c.Number < *windowMin {
				continue
			}
			if windowMax != nil && c.Number > *windowMax {
				continue
			}
		}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Calls reports how many searches were issued.
func (s *ScriptedSearcher) Calls() int { return s.calls }

// ScriptedCompleter replays canned chat replies in order. A nil error with an
// empty string reply is allowed so malformed-response paths can be exercised.
type ScriptedCompleter struct {
	Replies []string
	Errs    []error

	Requests [][]llm.Message
}

// Complete records the request and returns the next scripted reply.
func (c *ScriptedCompleter) Complete(_ context.Context, messages []llm.Message) ([]string, error) {
	call := len(c.Requests)
	c.Requests = append(c.Requests, messages)

	if call < len(c.Errs) && c.Errs[call] != nil {
		return nil, c.Errs[call]
	}
	if call >= len(c.Replies) {
		return nil, fmt.Errorf("scripted completer: unexpected call %d", call+1)
	}
	return []string{c.Replies[call]}, nil
}

// ConstEmbedder returns the same vector for every text.
type ConstEmbedder struct {
	Vector []float32
}

func (e ConstEmbedder) Embed(context.Context, string) ([]float32, error) {
	return append([]float32(nil), e.Vector...), nil
}

func (e ConstEmbedder) Model() string { return "test-embedding" }
