// Package logging builds the slog loggers used across Concord and provides
// the shared attribute helpers and standardized field names so log lines stay
// machine-filterable (component, event_type, decision_type, error_hint).
package logging
