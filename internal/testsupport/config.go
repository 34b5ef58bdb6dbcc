// Package testsupport centralizes fixtures shared by package tests: temp-dir
// configs, throwaway stores, and scripted search/completion doubles.
package testsupport

import (
	"path/filepath"
	"testing"

	"concord/internal/config"
)

// NewConfig returns a validated config rooted in a per-test temp directory.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.LLM.APIKey = "test-key"
	cfg.Embedding.APIKey = "test-key"

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}
