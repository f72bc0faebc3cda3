package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/legaldb/caseanalyzer/internal/adapters/draftstore"
	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/steps"
)

func strPtr(s string) *string { return &s }

func TestStatusIcon(t *testing.T) {
	assert.Equal(t, "✓", StatusIcon(core.StepCompleted, false))
	assert.Equal(t, "✗", StatusIcon(core.StepError, false))
	assert.Equal(t, "?", StatusIcon(core.StepStatus("weird"), false))
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, "-", Confidence(nil, false))
	assert.Equal(t, "-", Confidence(strPtr(""), true))
	assert.Equal(t, "high", Confidence(strPtr("high"), false))
	assert.Contains(t, Confidence(strPtr("low"), true), "low")
}

func TestSeverityStyle_MapsEveryTier(t *testing.T) {
	for _, c := range []*string{nil, strPtr("high"), strPtr("medium"), strPtr("low"), strPtr("n/a")} {
		_ = SeverityStyle(c).Render("x")
	}
	_, ok := severityStyles[steps.ConfidenceSeverity(strPtr("unknown"))]
	assert.True(t, ok)
}

func TestParseOutputMode(t *testing.T) {
	assert.Equal(t, ModeJSON, ParseOutputMode("json"))
	assert.Equal(t, ModeQuiet, ParseOutputMode("quiet"))
	assert.Equal(t, ModePlain, ParseOutputMode("fancy"))
	assert.Equal(t, "json", ModeJSON.String())
}

func TestDetector(t *testing.T) {
	t.Setenv("CASEANALYZER_OUTPUT", "")
	t.Setenv("CASEANALYZER_QUIET", "")
	assert.Equal(t, ModePlain, NewDetector().Detect())
	assert.Equal(t, ModeJSON, NewDetector().ForceMode(ModeJSON).Detect())

	t.Setenv("CASEANALYZER_OUTPUT", "json")
	assert.Equal(t, ModeJSON, NewDetector().Detect())

	t.Setenv("NO_COLOR", "1")
	assert.False(t, NewDetector().ShouldUseColor())
	assert.False(t, NewDetector().NoColor(true).ShouldUseColor())
}

func TestProgress_PrintsTransitions(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, false, false)

	p.Started(42, false)
	p.Event(core.StreamEvent{Step: steps.CaseCitation, Status: core.StepInProgress},
		steps.Transition{Known: true, Previous: core.StepPending})
	p.Event(core.StreamEvent{Step: steps.CaseCitation, Status: core.StepCompleted, Data: map[string]any{"confidence": "high"}},
		steps.Transition{Known: true, FreshCompletion: true, Previous: core.StepInProgress})
	p.Event(core.StreamEvent{Step: core.HeartbeatStep}, steps.Transition{Heartbeat: true})
	p.Event(core.StreamEvent{Step: "mystery", Status: core.StepCompleted}, steps.Transition{})
	p.Event(core.StreamEvent{Step: steps.Abstract, Status: core.StepError, Error: "LLM timeout"},
		steps.Transition{Known: true, Terminal: true, Previous: core.StepInProgress})
	p.Finished(core.SessionOutcome{Error: "LLM timeout"})

	out := buf.String()
	assert.Contains(t, out, ">>> Analyzing draft #42")
	assert.Contains(t, out, "● Case Citation")
	assert.Contains(t, out, "✓ Case Citation confidence: high")
	assert.Contains(t, out, "✗ Abstract: LLM timeout")
	assert.Contains(t, out, "!!! LLM timeout")
	assert.NotContains(t, out, "mystery")
	assert.NotContains(t, out, "still working")
}

func TestProgress_CommonLawNote(t *testing.T) {
	completed := steps.Transition{Known: true, FreshCompletion: true, Previous: core.StepInProgress}
	detection := func(system string) core.StreamEvent {
		return core.StreamEvent{
			Step:   steps.JurisdictionDetection,
			Status: core.StepCompleted,
			Data:   map[string]any{"legal_system_type": system},
		}
	}

	var civil bytes.Buffer
	NewProgress(&civil, false, false).Event(detection("Civil-law jurisdiction"), completed)
	assert.Contains(t, civil.String(),
		"Civil-law jurisdiction: Obiter Dicta and Dissenting Opinions apply to common-law jurisdictions only")

	var common bytes.Buffer
	NewProgress(&common, false, false).Event(detection("Common-law jurisdiction"), completed)
	assert.Contains(t, common.String(), "✓ Jurisdiction Detection")
	assert.NotContains(t, common.String(), "common-law jurisdictions only")
}

func TestProgress_SkipsRepeatsUnlessVerbose(t *testing.T) {
	ev := core.StreamEvent{Step: steps.Abstract, Status: core.StepCompleted}
	tr := steps.Transition{Known: true, Previous: core.StepCompleted}

	var quiet bytes.Buffer
	NewProgress(&quiet, false, false).Event(ev, tr)
	assert.Empty(t, quiet.String())

	var verbose bytes.Buffer
	v := NewProgress(&verbose, false, true)
	v.Event(ev, tr)
	v.Event(core.StreamEvent{Step: core.HeartbeatStep}, steps.Transition{Heartbeat: true})
	assert.Contains(t, verbose.String(), "✓ Abstract")
	assert.Contains(t, verbose.String(), "still working")
}

func TestProgress_Finished(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, false, false)
	p.Finished(core.SessionOutcome{Success: true})
	p.Finished(core.SessionOutcome{Error: "analysis cancelled", Canceled: true})

	assert.Contains(t, buf.String(), "--- Analysis completed in")
	assert.Contains(t, buf.String(), "--- Analysis cancelled")
}

func TestSteps_Table(t *testing.T) {
	reg := steps.NewRegistry()
	list := reg.All()
	list[0].Status = core.StepCompleted
	list[1].Status = core.StepError
	list[1].Error = strPtr("Analysis interrupted")

	var buf bytes.Buffer
	Steps(&buf, list, false)

	out := buf.String()
	assert.Contains(t, out, "Document Upload")
	assert.Contains(t, out, "Analysis interrupted")
	assert.Contains(t, out, "1/12 completed, 1 failed")
}

func TestDefinitions_Table(t *testing.T) {
	var buf bytes.Buffer
	Definitions(&buf)
	assert.Equal(t, len(steps.Definitions())+4, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "jurisdiction_detection")
}

func TestEdited_Table(t *testing.T) {
	var buf bytes.Buffer
	Edited(&buf, core.EditedAnalysisValues{CaseCitation: "BGE 132 III 285"})

	assert.Contains(t, buf.String(), "BGE 132 III 285")
	assert.Contains(t, buf.String(), "choice_of_law_issue")
}

func TestDrafts_Table(t *testing.T) {
	var buf bytes.Buffer
	Drafts(&buf, []*draftstore.Entry{
		{DraftID: 7, Jurisdiction: "Switzerland", ResultCount: 11, UpdatedAt: time.Now(), CorrelationID: "c-1"},
		{DraftID: 3, UpdatedAt: time.Now()},
	})

	out := buf.String()
	assert.Contains(t, out, "Switzerland")
	assert.Contains(t, out, "c-1")
}
