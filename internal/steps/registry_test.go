package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legaldb/caseanalyzer/internal/core"
)

func setStatus(t *testing.T, r *Registry, name string, st core.StepStatus) {
	t.Helper()
	s, ok := r.Get(name)
	require.True(t, ok, "step %s", name)
	s.Status = st
}

func statusOf(t *testing.T, r *Registry, name string) core.StepStatus {
	t.Helper()
	s, ok := r.Get(name)
	require.True(t, ok, "step %s", name)
	return s.Status
}

func TestNewRegistry_OrderAndLookup(t *testing.T) {
	r := NewRegistry()
	all := r.All()
	require.Len(t, all, 12)
	assert.Equal(t, DocumentUpload, all[0].Name)
	assert.Equal(t, Abstract, all[len(all)-1].Name)
	for _, s := range all {
		assert.Equal(t, core.StepPending, s.Status)
		got, ok := r.Get(s.Name)
		require.True(t, ok)
		assert.Equal(t, s.Label, got.Label)
	}

	_, ok := r.Get("nope")
	assert.False(t, ok)
	assert.Equal(t, Names(), func() []string {
		out := make([]string, 0, len(all))
		for _, s := range all {
			out = append(out, s.Name)
		}
		return out
	}())
}

func TestRegistry_PhasesFollowDeclaredOrder(t *testing.T) {
	order := make(map[core.StepPhase]int)
	phases := []core.StepPhase{
		core.PhaseIngestion, core.PhaseJurisdiction, core.PhaseExtraction,
		core.PhaseClassification, core.PhaseContent, core.PhaseCommonLaw, core.PhaseSummary,
	}
	for i, p := range phases {
		order[p] = i
	}
	last := -1
	for _, d := range Definitions() {
		idx, ok := order[d.Phase]
		require.True(t, ok, "unknown phase %s", d.Phase)
		assert.GreaterOrEqual(t, idx, last, "step %s out of phase order", d.Name)
		last = idx
	}
}

func TestRegistry_AllReturnsCopies(t *testing.T) {
	r := NewRegistry()
	all := r.All()
	all[0].Status = core.StepError
	assert.Equal(t, core.StepPending, statusOf(t, r, DocumentUpload))
}

func TestRegistry_MarkAllCompletedIfNotError(t *testing.T) {
	r := NewRegistry()
	conf := "high"
	setStatus(t, r, DocumentUpload, core.StepPending)
	setStatus(t, r, JurisdictionDetection, core.StepInProgress)
	s, _ := r.Get(JurisdictionDetection)
	s.Confidence = &conf
	setStatus(t, r, ColExtraction, core.StepError)

	r.MarkAllCompletedIfNotError()

	assert.Equal(t, core.StepCompleted, statusOf(t, r, DocumentUpload))
	assert.Equal(t, core.StepCompleted, statusOf(t, r, JurisdictionDetection))
	assert.Nil(t, s.Confidence)
	assert.Equal(t, core.StepError, statusOf(t, r, ColExtraction))
}

func TestRegistry_ResetAllWithExclusion(t *testing.T) {
	r := NewRegistry()
	setStatus(t, r, DocumentUpload, core.StepCompleted)
	setStatus(t, r, JurisdictionDetection, core.StepError)
	msg := "boom"
	s, _ := r.Get(JurisdictionDetection)
	s.Error = &msg

	r.ResetAll(DocumentUpload)

	assert.Equal(t, core.StepCompleted, statusOf(t, r, DocumentUpload))
	assert.Equal(t, core.StepPending, statusOf(t, r, JurisdictionDetection))
	assert.Nil(t, s.Error)
}

func TestRegistry_MarkInProgressAsError(t *testing.T) {
	r := NewRegistry()
	setStatus(t, r, DocumentUpload, core.StepCompleted)
	setStatus(t, r, ColExtraction, core.StepInProgress)

	touched := r.MarkInProgressAsError("Analysis interrupted")

	assert.Equal(t, []string{ColExtraction}, touched)
	s, _ := r.Get(ColExtraction)
	assert.Equal(t, core.StepError, s.Status)
	require.NotNil(t, s.Error)
	assert.Equal(t, "Analysis interrupted", *s.Error)
	assert.Equal(t, core.StepCompleted, statusOf(t, r, DocumentUpload))
	assert.Equal(t, core.StepPending, statusOf(t, r, Abstract))
}

func TestRegistry_Counts(t *testing.T) {
	r := NewRegistry()
	setStatus(t, r, DocumentUpload, core.StepCompleted)
	counts := r.Counts()
	assert.Equal(t, 1, counts[core.StepCompleted])
	assert.Equal(t, 11, counts[core.StepPending])
	assert.Len(t, counts, 4)
	assert.Contains(t, counts, core.StepError)
	assert.Zero(t, counts[core.StepError])
}
