package logging

// Standardized attribute keys. Keeping these as constants prevents drift
// between packages that emit the same kind of event.
const (
	FieldComponent    = "component"
	FieldEventType    = "event_type"
	FieldErrorHint    = "error_hint"
	FieldImpact       = "impact"
	FieldDecisionType = "decision_type"
	FieldRunID        = "run_id"
	FieldSourceUnit   = "source_unit"
	FieldTargetRange  = "target_range"
	FieldOutcome      = "outcome"
)
