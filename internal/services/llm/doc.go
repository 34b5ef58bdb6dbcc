// Package llm wraps an OpenRouter-compatible chat completion API in
// JSON-only mode. The client owns transport-level retry with bounded
// exponential backoff; schema validation and the single corrective retry on
// malformed payloads belong to the callers (see internal/align/llmalign).
package llm
