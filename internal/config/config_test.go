package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"concord/internal/config"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONCORD_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.LLM.Model == "" || cfg.Embedding.Model == "" {
		t.Fatal("default models missing")
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "missing.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("reported a file that does not exist")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("logging defaults = %q/%q", cfg.Logging.Format, cfg.Logging.Level)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("data dir not expanded: %q", cfg.Paths.DataDir)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[llm]
api_key = " key-from-file "
model = "test/model"

[align]
vote_candidates = 5
cluster_epsilon = 0.1

[logging]
format = "JSON"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("existing file not detected")
	}
	if cfg.LLM.APIKey != "key-from-file" {
		t.Fatalf("api key = %q, want trimmed file value", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "test/model" {
		t.Fatalf("model = %q", cfg.LLM.Model)
	}
	if cfg.Align.VoteCandidates != 5 || cfg.Align.ClusterEpsilon != 0.1 {
		t.Fatalf("align overrides = %+v", cfg.Align)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format = %q, want lowercased json", cfg.Logging.Format)
	}
	if cfg.DatabasePath() != filepath.Join(dir, "data", "concord.db") {
		t.Fatalf("database path = %q", cfg.DatabasePath())
	}
	if cfg.LockPath() != filepath.Join(dir, "data", "concord.lock") {
		t.Fatalf("lock path = %q", cfg.LockPath())
	}
}

func TestLoadFillsAPIKeysFromEnvironment(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("CONCORD_LLM_API_KEY", "env-llm-key")
	t.Setenv("OPENAI_API_KEY", "env-embed-key")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "env-llm-key" {
		t.Fatalf("llm key = %q", cfg.LLM.APIKey)
	}
	if cfg.Embedding.APIKey != "env-embed-key" {
		t.Fatalf("embedding key = %q", cfg.Embedding.APIKey)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[align]
cluster_epsilon = 2.0

[logging]
level = "loud"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(err.Error(), "cluster_epsilon") || !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("error = %v, want both problems reported", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config does not load cleanly: exists=%v err=%v", exists, err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, d := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(d)
		if err != nil || !info.IsDir() {
			t.Fatalf("directory %q missing: %v", d, err)
		}
	}
}
