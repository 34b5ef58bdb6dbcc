package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classify unit-level failures. Transient and schema errors
// mark a unit errored; insufficient evidence marks it skipped; not-found is
// fatal to the whole run.
var (
	ErrTransient     = errors.New("transient failure")
	ErrSchema        = errors.New("schema validation failure")
	ErrInsufficient  = errors.New("insufficient evidence")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later outcome classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsSkip reports whether the error represents a deliberate skip rather than
// a failure (no candidates, too few matched events, below minimum confidence).
func IsSkip(err error) bool {
	return errors.Is(err, ErrInsufficient)
}

// IsFatal reports whether the error should abort the whole run instead of
// only the current unit.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
