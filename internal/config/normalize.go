package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// normalize expands paths and fills API keys from the environment. A local
// .env file is honored when present so keys never have to live in the TOML.
func (c *Config) normalize() error {
	_ = godotenv.Load()

	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = strings.TrimSpace(os.Getenv("CONCORD_LLM_API_KEY"))
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)

	c.Embedding.APIKey = strings.TrimSpace(c.Embedding.APIKey)
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	c.Embedding.BaseURL = strings.TrimSpace(c.Embedding.BaseURL)
	c.Embedding.Model = strings.TrimSpace(c.Embedding.Model)
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultEmbedModel
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}
