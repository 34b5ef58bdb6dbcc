package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks structural configuration problems. API keys are not
// required here; commands that need the LLM or embedding services check for
// them at construction time so read-only commands work without credentials.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must not be empty")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of console, json", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	if c.LLM.TimeoutSeconds < 0 {
		problems = append(problems, "llm.timeout_seconds must not be negative")
	}

	for name, value := range map[string]float64{
		"align.cluster_epsilon":         c.Align.ClusterEpsilon,
		"align.vote_min_confidence":     c.Align.VoteMinConfidence,
		"align.greedy_similarity_floor": c.Align.GreedySimilarityFloor,
		"align.approval_threshold":      c.Align.ApprovalThreshold,
	} {
		if value < 0 || value > 1 {
			problems = append(problems, fmt.Sprintf("%s must be within [0,1]", name))
		}
	}
	for name, value := range map[string]float64{
		"align.gap_tolerance":        c.Align.GapTolerance,
		"align.vote_max_width":       c.Align.VoteMaxWidth,
		"align.max_forward_jump":     c.Align.MaxForwardJump,
		"align.greedy_search_window": c.Align.GreedySearchWindow,
		"align.greedy_max_width":     c.Align.GreedyMaxWidth,
		"align.max_per_unit_jump":    c.Align.MaxPerUnitJump,
		"align.backtrack_limit":      c.Align.BacktrackLimit,
		"align.window_before":        c.Align.WindowBefore,
		"align.window_after":         c.Align.WindowAfter,
		"align.window_min_width":     c.Align.WindowMinWidth,
		"align.window_max_width":     c.Align.WindowMaxWidth,
	} {
		if value < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative", name))
		}
	}
	if c.Align.VoteCandidates < 0 {
		problems = append(problems, "align.vote_candidates must not be negative")
	}
	if c.Align.GreedyMinEvents < 0 {
		problems = append(problems, "align.greedy_min_events must not be negative")
	}
	if c.Align.WindowMaxWidth > 0 && c.Align.WindowMinWidth > c.Align.WindowMaxWidth {
		problems = append(problems, "align.window_min_width must not exceed align.window_max_width")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
