package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"concord/internal/align"
	"concord/internal/config"
	"concord/internal/logging"
	"concord/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) openStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg)
}

// policyValue maps explicit [align] config overrides onto the default
// policy. Zero config fields keep the documented defaults.
func (c *commandContext) policyValue() align.Policy {
	policy := align.DefaultPolicy()
	cfg, err := c.ensureConfig()
	if err != nil {
		return policy
	}

	a := cfg.Align
	if a.VoteCandidates > 0 {
		policy.VoteCandidates = a.VoteCandidates
	}
	if a.ClusterEpsilon > 0 {
		policy.ClusterEpsilon = a.ClusterEpsilon
	}
	if a.GapTolerance > 0 {
		policy.GapTolerance = a.GapTolerance
	}
	if a.VoteMaxWidth > 0 {
		policy.VoteMaxWidth = a.VoteMaxWidth
	}
	if a.VoteMinConfidence > 0 {
		policy.VoteMinConfidence = a.VoteMinConfidence
	}
	if a.MaxForwardJump > 0 {
		policy.MaxForwardJump = a.MaxForwardJump
	}
	if a.GreedySearchWindow > 0 {
		policy.GreedySearchWindow = a.GreedySearchWindow
	}
	if a.GreedyMinEvents > 0 {
		policy.GreedyMinEvents = a.GreedyMinEvents
	}
	if a.GreedySimilarityFloor > 0 {
		policy.GreedySimilarityFloor = a.GreedySimilarityFloor
	}
	if a.GreedyMaxWidth > 0 {
		policy.GreedyMaxWidth = a.GreedyMaxWidth
	}
	if a.MaxPerUnitJump > 0 {
		policy.MaxPerUnitJump = a.MaxPerUnitJump
	}
	if a.BacktrackLimit > 0 {
		policy.BacktrackLimit = a.BacktrackLimit
	}
	if a.WindowBefore > 0 {
		policy.WindowBefore = a.WindowBefore
	}
	if a.WindowAfter > 0 {
		policy.WindowAfter = a.WindowAfter
	}
	if a.WindowMinWidth > 0 {
		policy.WindowMinWidth = a.WindowMinWidth
	}
	if a.WindowMaxWidth > 0 {
		policy.WindowMaxWidth = a.WindowMaxWidth
	}
	if a.ApprovalThreshold > 0 {
		policy.ApprovalThreshold = a.ApprovalThreshold
	}
	return policy.Normalized()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
