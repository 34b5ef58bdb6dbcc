// Package config loads, normalizes, and validates Concord's TOML
// configuration. Load applies repository defaults first, then the config
// file, then normalization (path expansion, environment fallbacks), then
// validation, so every consumer sees a complete, checked configuration.
package config
