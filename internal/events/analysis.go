package events

import (
	"time"

	"github.com/legaldb/caseanalyzer/internal/core"
)

// Event type constants for analysis sessions.
const (
	TypeAnalysisStarted   = "analysis_started"
	TypeStepUpdated       = "step_updated"
	TypeHeartbeat         = "heartbeat"
	TypeAnalysisCompleted = "analysis_completed"
	TypeAnalysisFailed    = "analysis_failed"
	TypeAnalysisCanceled  = "analysis_canceled"
	TypeDraftRecovered    = "draft_recovered"
)

// AnalysisStartedEvent is emitted when a run opens its stream.
type AnalysisStartedEvent struct {
	BaseEvent
	Resume       bool   `json:"resume"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
}

// NewAnalysisStartedEvent creates a new analysis started event.
func NewAnalysisStartedEvent(sessionID string, draftID int64, jurisdiction string, resume bool) AnalysisStartedEvent {
	return AnalysisStartedEvent{
		BaseEvent:    NewBaseEvent(TypeAnalysisStarted, sessionID, draftID),
		Resume:       resume,
		Jurisdiction: jurisdiction,
	}
}

// StepUpdatedEvent carries one applied stream event.
type StepUpdatedEvent struct {
	BaseEvent
	Step            string          `json:"step"`
	Label           string          `json:"label,omitempty"`
	Status          core.StepStatus `json:"status"`
	Previous        core.StepStatus `json:"previous,omitempty"`
	Confidence      *string         `json:"confidence,omitempty"`
	Error           string          `json:"error,omitempty"`
	FreshCompletion bool            `json:"fresh_completion,omitempty"`
	Data            map[string]any  `json:"data,omitempty"`
}

// NewStepUpdatedEvent creates a new step updated event.
func NewStepUpdatedEvent(sessionID string, draftID int64, step core.Step, previous core.StepStatus, fresh bool, data map[string]any) StepUpdatedEvent {
	ev := StepUpdatedEvent{
		BaseEvent:       NewBaseEvent(TypeStepUpdated, sessionID, draftID),
		Step:            step.Name,
		Label:           step.Label,
		Status:          step.Status,
		Previous:        previous,
		Confidence:      step.Confidence,
		FreshCompletion: fresh,
		Data:            data,
	}
	if step.Error != nil {
		ev.Error = *step.Error
	}
	return ev
}

// HeartbeatEvent signals the engine is still working.
type HeartbeatEvent struct {
	BaseEvent
}

// NewHeartbeatEvent creates a new heartbeat event.
func NewHeartbeatEvent(sessionID string, draftID int64) HeartbeatEvent {
	return HeartbeatEvent{BaseEvent: NewBaseEvent(TypeHeartbeat, sessionID, draftID)}
}

// AnalysisFinishedEvent is emitted once per run with its outcome.
type AnalysisFinishedEvent struct {
	BaseEvent
	Outcome  core.SessionOutcome     `json:"outcome"`
	Counts   map[core.StepStatus]int `json:"counts"`
	Duration time.Duration           `json:"duration"`
}

// NewAnalysisFinishedEvent picks the event type from the outcome.
func NewAnalysisFinishedEvent(sessionID string, draftID int64, outcome core.SessionOutcome, counts map[core.StepStatus]int, duration time.Duration) AnalysisFinishedEvent {
	eventType := TypeAnalysisCompleted
	switch {
	case outcome.Canceled:
		eventType = TypeAnalysisCanceled
	case !outcome.Success:
		eventType = TypeAnalysisFailed
	}
	return AnalysisFinishedEvent{
		BaseEvent: NewBaseEvent(eventType, sessionID, draftID),
		Outcome:   outcome,
		Counts:    counts,
		Duration:  duration,
	}
}

// DraftRecoveredEvent is emitted after a draft or suggestion is applied.
type DraftRecoveredEvent struct {
	BaseEvent
	Source         string `json:"source"`
	FromSnapshot   bool   `json:"from_snapshot"`
	ResultsApplied int    `json:"results_applied"`
}

// NewDraftRecoveredEvent creates a new draft recovered event.
func NewDraftRecoveredEvent(sessionID string, draftID int64, source string, fromSnapshot bool, results int) DraftRecoveredEvent {
	return DraftRecoveredEvent{
		BaseEvent:      NewBaseEvent(TypeDraftRecovered, sessionID, draftID),
		Source:         source,
		FromSnapshot:   fromSnapshot,
		ResultsApplied: results,
	}
}
