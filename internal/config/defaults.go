package config

const (
	defaultDataDir        = "~/.local/share/concord"
	defaultLogDir         = "~/.local/share/concord/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultLLMBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel       = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSecs = 120
	defaultEmbedModel     = "text-embedding-3-small"
)

// Default returns a Config populated with repository defaults. Alignment
// tuning values are left zero so align.DefaultPolicy supplies them; the
// [align] config section only records explicit overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSecs,
		},
		Embedding: Embedding{
			Model: defaultEmbedModel,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
