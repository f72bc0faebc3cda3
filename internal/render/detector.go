package render

import (
	"os"

	"golang.org/x/term"
)

// OutputMode represents the output mode.
type OutputMode int

const (
	// ModePlain prints human readable lines and tables.
	ModePlain OutputMode = iota

	// ModeJSON prints machine readable JSON.
	ModeJSON

	// ModeQuiet suppresses progress output.
	ModeQuiet
)

// String returns the string representation of the output mode.
func (m OutputMode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeJSON:
		return "json"
	case ModeQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ParseOutputMode parses an output mode from string. Unknown values
// fall back to plain.
func ParseOutputMode(s string) OutputMode {
	switch s {
	case "json":
		return ModeJSON
	case "quiet":
		return ModeQuiet
	default:
		return ModePlain
	}
}

// Detector determines the appropriate output mode.
type Detector struct {
	forceMode *OutputMode
	noColor   bool
	file      *os.File
}

// NewDetector creates a detector for stdout.
func NewDetector() *Detector {
	return &Detector{file: os.Stdout}
}

// ForceMode forces a specific output mode.
func (d *Detector) ForceMode(mode OutputMode) *Detector {
	d.forceMode = &mode
	return d
}

// NoColor disables color output.
func (d *Detector) NoColor(disable bool) *Detector {
	d.noColor = disable
	return d
}

// Detect determines the output mode.
func (d *Detector) Detect() OutputMode {
	if d.forceMode != nil {
		return *d.forceMode
	}
	if os.Getenv("CASEANALYZER_OUTPUT") == "json" {
		return ModeJSON
	}
	if os.Getenv("CASEANALYZER_QUIET") == "1" {
		return ModeQuiet
	}
	return ModePlain
}

// ShouldUseColor determines if color should be used.
func (d *Detector) ShouldUseColor() bool {
	if d.noColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return d.isTTY()
}

func (d *Detector) isTTY() bool {
	return d.file != nil && term.IsTerminal(int(d.file.Fd()))
}
