// Package services holds the shared error taxonomy for external
// collaborators (retrieval, LLM completion, embedding, persistence) and the
// wrapping helper that tags failures for per-unit outcome classification.
package services
