package embed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBase     = 500 * time.Millisecond
)

// Config captures the runtime settings for the embedding service.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client produces fixed-length, L2-normalized embedding vectors.
type Client struct {
	api           *openai.Client
	model         string
	retryAttempts int
	retryBase     time.Duration
	sleeper       func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithRetryAttempts overrides the bounded retry count.
func WithRetryAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryAttempts = attempts
		}
	}
}

// WithSleeper overrides how backoff sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs an embedding client. The API key is required.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("embed client: api key required")
	}
	apiCfg := openai.DefaultConfig(key)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		apiCfg.BaseURL = base
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	client := &Client{
		api:           openai.NewClientWithConfig(apiCfg),
		model:         model,
		retryAttempts: defaultRetryAttempts,
		retryBase:     defaultRetryBase,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Model returns the embedding model identifier recorded on fingerprints.
func (c *Client) Model() string {
	return c.model
}

// Embed returns the normalized embedding vector for one text. Transient API
// failures are retried with exponential backoff up to the bounded attempt
// count; the unit-local caller treats exhaustion as an errored unit.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("embed: empty text")
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.model),
			Input: []string{text},
		})
		if err == nil {
			if len(resp.Data) == 0 {
				return nil, errors.New("embed: no embedding data returned")
			}
			vector := append([]float32(nil), resp.Data[0].Embedding...)
			Normalize(vector)
			return vector, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < c.retryAttempts {
			if err := c.sleep(ctx, c.retryBase<<(attempt-1)); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("embed: failed after %d attempts: %w", c.retryAttempts, lastErr)
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Normalize scales the vector to unit length in place.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
