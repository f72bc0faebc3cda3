package core

import "fmt"

// StepStatus is the lifecycle state of one analysis step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepError      StepStatus = "error"
)

// HeartbeatStep is the sentinel step name of liveness frames.
const HeartbeatStep = "heartbeat"

// AllStepStatuses returns every status value in lifecycle order.
func AllStepStatuses() []StepStatus {
	return []StepStatus{StepPending, StepInProgress, StepCompleted, StepError}
}

// ValidStepStatus checks if a status string is one of the known values.
func ValidStepStatus(s StepStatus) bool {
	switch s {
	case StepPending, StepInProgress, StepCompleted, StepError:
		return true
	default:
		return false
	}
}

// ParseStepStatus converts a wire value to a StepStatus with validation.
func ParseStepStatus(s string) (StepStatus, error) {
	st := StepStatus(s)
	if !ValidStepStatus(st) {
		return "", fmt.Errorf("invalid step status: %q", s)
	}
	return st, nil
}

// String returns the string representation of the status.
func (s StepStatus) String() string {
	return string(s)
}

// UnmarshalText rejects unknown status values so a malformed frame is
// reported instead of silently becoming an unknown state.
func (s *StepStatus) UnmarshalText(text []byte) error {
	st, err := ParseStepStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// Step is one named, independently trackable unit of work.
type Step struct {
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Phase      StepPhase  `json:"phase"`
	Status     StepStatus `json:"status"`
	Confidence *string    `json:"confidence"`
	Reasoning  *string    `json:"reasoning"`
	Error      *string    `json:"error"`
}

// Reset returns the step to its initial state.
func (s *Step) Reset() {
	s.Status = StepPending
	s.Confidence = nil
	s.Reasoning = nil
	s.Error = nil
}

// StepPhase groups steps by their position in the dependency chain.
// Ordering is informational; no phase blocks another.
type StepPhase string

const (
	PhaseIngestion      StepPhase = "ingestion"
	PhaseJurisdiction   StepPhase = "jurisdiction"
	PhaseExtraction     StepPhase = "extraction"
	PhaseClassification StepPhase = "classification"
	PhaseContent        StepPhase = "content"
	PhaseCommonLaw      StepPhase = "common_law"
	PhaseSummary        StepPhase = "summary"
)

// StreamEvent is one decoded server-sent frame.
type StreamEvent struct {
	Step   string         `json:"step"`
	Status StepStatus     `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// IsHeartbeat reports whether the event is a liveness signal.
func (e StreamEvent) IsHeartbeat() bool {
	return e.Step == HeartbeatStep
}

// AnalysisResults maps a step name to the latest data payload seen for it.
type AnalysisResults map[string]map[string]any

// Clone returns a shallow copy of the map; payloads are shared.
func (r AnalysisResults) Clone() AnalysisResults {
	out := make(AnalysisResults, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SessionOutcome is the terminal value of one coordinator run.
type SessionOutcome struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Canceled bool   `json:"canceled,omitempty"`
}
