// Package render prints analysis progress, step tables and drafts for the
// command line.
package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/steps"
)

// Color palette
var (
	ColorPrimary   = lipgloss.Color("#7C3AED") // Purple
	ColorSecondary = lipgloss.Color("#06B6D4") // Cyan

	ColorSuccess = lipgloss.Color("#10B981") // Green
	ColorWarning = lipgloss.Color("#F59E0B") // Amber
	ColorError   = lipgloss.Color("#EF4444") // Red

	ColorTextMuted = lipgloss.Color("#9CA3AF") // Muted gray
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	sectionStyle = lipgloss.NewStyle().Foreground(ColorSecondary)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorTextMuted)
	errorStyle   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)

	severityStyles = map[steps.Severity]lipgloss.Style{
		steps.SeveritySuccess: lipgloss.NewStyle().Foreground(ColorSuccess),
		steps.SeverityWarning: lipgloss.NewStyle().Foreground(ColorWarning),
		steps.SeverityError:   lipgloss.NewStyle().Foreground(ColorError),
		steps.SeverityNeutral: mutedStyle,
	}

	statusStyles = map[core.StepStatus]lipgloss.Style{
		core.StepPending:    mutedStyle,
		core.StepInProgress: lipgloss.NewStyle().Foreground(ColorSecondary),
		core.StepCompleted:  lipgloss.NewStyle().Foreground(ColorSuccess),
		core.StepError:      lipgloss.NewStyle().Foreground(ColorError),
	}

	statusIcons = map[core.StepStatus]string{
		core.StepPending:    "○",
		core.StepInProgress: "●",
		core.StepCompleted:  "✓",
		core.StepError:      "✗",
	}
)

// SeverityStyle returns the style for a confidence value.
func SeverityStyle(confidence *string) lipgloss.Style {
	return severityStyles[steps.ConfidenceSeverity(confidence)]
}

// StatusIcon returns the glyph for a step status, colored when asked.
func StatusIcon(status core.StepStatus, color bool) string {
	icon, ok := statusIcons[status]
	if !ok {
		icon = "?"
	}
	if !color {
		return icon
	}
	return statusStyles[status].Render(icon)
}

// Confidence renders a confidence value, "-" when absent.
func Confidence(confidence *string, color bool) string {
	if confidence == nil || *confidence == "" {
		return "-"
	}
	if !color {
		return *confidence
	}
	return SeverityStyle(confidence).Render(*confidence)
}
