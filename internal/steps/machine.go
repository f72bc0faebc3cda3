package steps

import (
	"fmt"
	"strings"

	"github.com/legaldb/caseanalyzer/internal/core"
)

// Transition reports what applying one event did.
type Transition struct {
	// Heartbeat is set for liveness frames; nothing changed.
	Heartbeat bool
	// Known is false when the event named a step outside the registry
	// or carried no valid status.
	Known bool
	// FreshCompletion is set the first time a step reports Completed
	// since the last reset.
	FreshCompletion bool
	// Terminal is set for Error events; the run must stop.
	Terminal bool
	// Previous is the step status before the event.
	Previous core.StepStatus
}

// Machine applies stream events to a Registry and collects result payloads.
type Machine struct {
	registry *Registry
	results  core.AnalysisResults
	notified map[string]bool
}

// NewMachine creates a machine over registry with an empty results map.
func NewMachine(registry *Registry) *Machine {
	return &Machine{
		registry: registry,
		results:  make(core.AnalysisResults),
		notified: make(map[string]bool),
	}
}

// Registry returns the registry the machine mutates.
func (m *Machine) Registry() *Registry {
	return m.registry
}

// Results returns a copy of the collected payloads.
func (m *Machine) Results() core.AnalysisResults {
	return m.results.Clone()
}

// Result returns the payload recorded for step.
func (m *Machine) Result(step string) (map[string]any, bool) {
	data, ok := m.results[step]
	return data, ok
}

// Apply applies one event in arrival order.
func (m *Machine) Apply(ev core.StreamEvent) Transition {
	if ev.IsHeartbeat() {
		return Transition{Heartbeat: true}
	}

	if !core.ValidStepStatus(ev.Status) {
		return Transition{}
	}
	step, ok := m.registry.Get(ev.Step)
	if !ok {
		return Transition{}
	}

	t := Transition{Known: true, Previous: step.Status}
	step.Status = ev.Status

	if ev.Data != nil {
		step.Confidence = optionalString(ev.Data["confidence"])
		step.Reasoning = optionalString(ev.Data["reasoning"])
		m.results[ev.Step] = ev.Data
	}
	if ev.Error != "" {
		msg := ev.Error
		step.Error = &msg
	}

	switch ev.Status {
	case core.StepCompleted:
		if !m.notified[ev.Step] {
			m.notified[ev.Step] = true
			t.FreshCompletion = true
		}
	case core.StepError:
		t.Terminal = true
	case core.StepPending, core.StepInProgress:
	}
	return t
}

// Reset clears step state and completion notifications for every step
// not in exclude. Results for excluded steps are kept.
func (m *Machine) Reset(exclude ...string) {
	m.registry.ResetAll(exclude...)
	keep := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		keep[name] = struct{}{}
	}
	for name := range m.notified {
		if _, ok := keep[name]; !ok {
			delete(m.notified, name)
		}
	}
	for name := range m.results {
		if _, ok := keep[name]; !ok {
			delete(m.results, name)
		}
	}
}

// Hydrate restores state from previously persisted results without
// re-running analysis. Steps with an entry become Completed; other steps
// are untouched. It reports whether any entry matched a known step.
func (m *Machine) Hydrate(results core.AnalysisResults) bool {
	matched := false
	for name, data := range results {
		if data == nil {
			continue
		}
		m.results[name] = data
		step, ok := m.registry.Get(name)
		if !ok {
			continue
		}
		matched = true
		step.Status = core.StepCompleted
		step.Confidence = stringOnly(data["confidence"])
		step.Reasoning = stringOnly(data["reasoning"])
		step.Error = nil
		m.notified[name] = true
	}
	return matched
}

// MarkAllCompletedIfNotError forwards to the registry and records the
// completions so later duplicate events are not treated as fresh.
func (m *Machine) MarkAllCompletedIfNotError() {
	m.registry.MarkAllCompletedIfNotError()
	for _, name := range m.registry.NamesWithStatus(core.StepCompleted) {
		m.notified[name] = true
	}
}

// optionalString keeps nil as nil and strings as-is;
// other scalars are rendered with fmt.
func optionalString(v any) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return &val
	default:
		s := strings.TrimSpace(fmt.Sprint(val))
		if s == "" {
			return nil
		}
		return &s
	}
}

func stringOnly(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}
