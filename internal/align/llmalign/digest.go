package llmalign

import (
	"fmt"
	"strings"

	"concord/internal/media"
	"concord/internal/textutil"
)

const (
	maxDigestSummary = 280
	maxDigestEvents  = 4
	maxDigestNames   = 5
)

// Digest renders a segment as one prompt line: ordinal, truncated summary,
// leading events, and deduplicated entity names. Keeping each segment to a
// single line keeps batched prompts within model context at full-edition
// scale.
func Digest(s *media.Segment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", s.Number, truncateText(s.Summary, maxDigestSummary))

	if events := headOf(s.Events, maxDigestEvents); len(events) > 0 {
		b.WriteString(" | events: ")
		b.WriteString(strings.Join(events, "; "))
	}
	names := dedupeNames(s.Characters, s.Locations)
	if len(names) > 0 {
		b.WriteString(" | entities: ")
		b.WriteString(strings.Join(headOf(names, maxDigestNames), ", "))
	}
	if s.TimeContext != "" && s.TimeContext != media.TimeUnknown {
		b.WriteString(" | time: ")
		b.WriteString(string(s.TimeContext))
	}
	return b.String()
}

// DigestList renders one prompt line per segment.
func DigestList(segments []media.Segment) string {
	lines := make([]string, 0, len(segments))
	for i := range segments {
		lines = append(lines, Digest(&segments[i]))
	}
	return strings.Join(lines, "\n")
}

func truncateText(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func headOf(values []string, limit int) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}

func dedupeNames(lists ...[]string) []string {
	var set textutil.NameSet
	var out []string
	for _, list := range lists {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if !set.Add(name) {
				continue
			}
			out = append(out, name)
		}
	}
	return out
}
