package steps

import "strings"

// Severity is the presentation tier for a confidence value.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityNeutral Severity = "neutral"
)

// ConfidenceSeverity maps high/medium/low to success/warning/error.
// Anything else, including nil, is neutral.
func ConfidenceSeverity(confidence *string) Severity {
	if confidence == nil {
		return SeverityNeutral
	}
	switch strings.ToLower(strings.TrimSpace(*confidence)) {
	case "high":
		return SeveritySuccess
	case "medium":
		return SeverityWarning
	case "low":
		return SeverityError
	default:
		return SeverityNeutral
	}
}
