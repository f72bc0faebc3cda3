// Package steps holds the per-session step registry and the state machine
// that applies stream events to it.
package steps

import "github.com/legaldb/caseanalyzer/internal/core"

// Step names in dependency order.
const (
	DocumentUpload        = "document_upload"
	JurisdictionDetection = "jurisdiction_detection"
	ColExtraction         = "col_extraction"
	ThemeClassification   = "theme_classification"
	CaseCitation          = "case_citation"
	RelevantFacts         = "relevant_facts"
	PILProvisions         = "pil_provisions"
	ColIssue              = "col_issue"
	CourtsPosition        = "courts_position"
	ObiterDicta           = "obiter_dicta"
	DissentingOpinions    = "dissenting_opinions"
	Abstract              = "abstract"
)

// Definition describes a registry entry before any run touches it.
type Definition struct {
	Name  string
	Label string
	Phase core.StepPhase
}

var definitions = []Definition{
	{DocumentUpload, "Document Upload", core.PhaseIngestion},
	{JurisdictionDetection, "Jurisdiction Detection", core.PhaseJurisdiction},
	{ColExtraction, "Choice of Law Extraction", core.PhaseExtraction},
	{ThemeClassification, "Theme Classification", core.PhaseClassification},
	{CaseCitation, "Case Citation", core.PhaseContent},
	{RelevantFacts, "Relevant Facts", core.PhaseContent},
	{PILProvisions, "PIL Provisions", core.PhaseContent},
	{ColIssue, "Choice of Law Issue", core.PhaseContent},
	{CourtsPosition, "Court's Position", core.PhaseContent},
	{ObiterDicta, "Obiter Dicta", core.PhaseCommonLaw},
	{DissentingOpinions, "Dissenting Opinions", core.PhaseCommonLaw},
	{Abstract, "Abstract", core.PhaseSummary},
}

// Definitions returns the static step list in declared order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Names returns every step name in declared order.
func Names() []string {
	out := make([]string, len(definitions))
	for i, d := range definitions {
		out[i] = d.Name
	}
	return out
}

// Registry is the ordered, session-scoped set of steps.
// It is not safe for concurrent mutation; the owning session serializes access.
type Registry struct {
	steps []*core.Step
	index map[string]*core.Step
}

// NewRegistry creates a registry with every step Pending.
func NewRegistry() *Registry {
	r := &Registry{
		steps: make([]*core.Step, 0, len(definitions)),
		index: make(map[string]*core.Step, len(definitions)),
	}
	for _, d := range definitions {
		s := &core.Step{Name: d.Name, Label: d.Label, Phase: d.Phase, Status: core.StepPending}
		r.steps = append(r.steps, s)
		r.index[d.Name] = s
	}
	return r
}

// Get returns the live step for name.
func (r *Registry) Get(name string) (*core.Step, bool) {
	s, ok := r.index[name]
	return s, ok
}

// All returns copies of every step in declared order.
func (r *Registry) All() []core.Step {
	out := make([]core.Step, len(r.steps))
	for i, s := range r.steps {
		out[i] = *s
	}
	return out
}

// ResetAll returns every step not named in exclude to its initial state.
func (r *Registry) ResetAll(exclude ...string) {
	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}
	for _, s := range r.steps {
		if _, ok := skip[s.Name]; ok {
			continue
		}
		s.Reset()
	}
}

// MarkAllCompletedIfNotError completes every step not in Error with no
// confidence or reasoning.
func (r *Registry) MarkAllCompletedIfNotError() {
	for _, s := range r.steps {
		if s.Status == core.StepError {
			continue
		}
		s.Status = core.StepCompleted
		s.Confidence = nil
		s.Reasoning = nil
	}
}

// MarkInProgressAsError fails every InProgress step with msg and returns
// the names it touched. Pending and Completed steps are left alone.
func (r *Registry) MarkInProgressAsError(msg string) []string {
	var touched []string
	for _, s := range r.steps {
		if s.Status != core.StepInProgress {
			continue
		}
		m := msg
		s.Status = core.StepError
		s.Error = &m
		touched = append(touched, s.Name)
	}
	return touched
}

// NamesWithStatus returns the names of steps currently in status.
func (r *Registry) NamesWithStatus(status core.StepStatus) []string {
	var out []string
	for _, s := range r.steps {
		if s.Status == status {
			out = append(out, s.Name)
		}
	}
	return out
}

// Counts tallies steps per status. Every status has an entry.
func (r *Registry) Counts() map[core.StepStatus]int {
	statuses := core.AllStepStatuses()
	out := make(map[core.StepStatus]int, len(statuses))
	for _, st := range statuses {
		out[st] = 0
	}
	for _, s := range r.steps {
		out[s.Status]++
	}
	return out
}
