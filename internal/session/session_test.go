package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legaldb/caseanalyzer/internal/backend"
	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/events"
	"github.com/legaldb/caseanalyzer/internal/steps"
)

type engineFunc func(ctx context.Context, req backend.AnalyzeRequest) (*http.Response, error)

func (f engineFunc) StartAnalysis(ctx context.Context, req backend.AnalyzeRequest) (*http.Response, error) {
	return f(ctx, req)
}

// streamOf serves body as a successful stream.
func streamOf(body string) engineFunc {
	return func(context.Context, backend.AnalyzeRequest) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(body))}, nil
	}
}

func frame(step string, status core.StepStatus, data map[string]any) string {
	b, _ := json.Marshal(core.StreamEvent{Step: step, Status: status, Data: data})
	return "data: " + string(b) + "\n\n"
}

type failingBody struct {
	r io.Reader
}

func (b *failingBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, errors.New("connection reset by peer")
	}
	return n, err
}

func (b *failingBody) Close() error { return nil }

type fakeStorage struct {
	mu        sync.Mutex
	saved     []backend.DraftUpdate
	submitted []backend.Submission
	err       error
}

func (f *fakeStorage) SaveDraft(_ context.Context, _ int64, u backend.DraftUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, u)
	return f.err
}

func (f *fakeStorage) SubmitSuggestion(_ context.Context, sub backend.Submission) (backend.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, sub)
	return backend.SubmitResult{DraftID: sub.DraftID}, f.err
}

type fakeCache struct {
	snaps []core.StoredAnalyzerSnapshot
}

func (f *fakeCache) Put(_ context.Context, snap core.StoredAnalyzerSnapshot) error {
	f.snaps = append(f.snaps, snap)
	return nil
}

var contentSteps = []string{
	steps.ColExtraction, steps.ThemeClassification, steps.CaseCitation,
	steps.RelevantFacts, steps.PILProvisions, steps.ColIssue,
	steps.CourtsPosition, steps.ObiterDicta, steps.DissentingOpinions,
	steps.Abstract,
}

func TestRun_FullAnalysis(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(frame(steps.DocumentUpload, core.StepCompleted, nil))
	sb.WriteString(frame(steps.JurisdictionDetection, core.StepCompleted, map[string]any{
		"confidence":           "high",
		"legal_system_type":    "Civil-law jurisdiction",
		"precise_jurisdiction": "Switzerland",
	}))
	for _, name := range contentSteps {
		sb.WriteString(frame(name, core.StepInProgress, nil))
		sb.WriteString(frame(name, core.StepCompleted, map[string]any{
			name:         "value for " + name,
			"confidence": "medium",
		}))
	}

	s := New(streamOf(sb.String()))
	var seen int
	outcome := s.Run(t.Context(), RunRequest{
		DraftID: 42,
		OnEvent: func(core.StreamEvent, steps.Transition) { seen++ },
	})

	assert.Equal(t, core.SessionOutcome{Success: true}, outcome)
	assert.False(t, s.IsAnalyzing())
	assert.Equal(t, 22, seen)

	results := s.Results()
	for _, name := range contentSteps {
		assert.Contains(t, results, name)
	}
	// jurisdiction_detection carried data too
	assert.Len(t, results, 11)

	for _, st := range s.Steps() {
		assert.NotEqual(t, core.StepPending, st.Status, st.Name)
	}

	edited := s.Edited()
	assert.Equal(t, "value for case_citation", edited.CaseCitation)
	assert.Equal(t, "Switzerland", edited.Jurisdiction)
	require.NotNil(t, s.Jurisdiction())
	assert.Equal(t, "Civil-law jurisdiction", s.Jurisdiction().LegalSystemType)
}

func TestRun_TransportFailureMidStream(t *testing.T) {
	body := frame(steps.DocumentUpload, core.StepCompleted, nil) +
		frame(steps.ColExtraction, core.StepInProgress, nil)
	engine := engineFunc(func(context.Context, backend.AnalyzeRequest) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: &failingBody{r: strings.NewReader(body)}}, nil
	})

	s := New(engine)
	outcome := s.Run(t.Context(), RunRequest{DraftID: 1})

	assert.False(t, outcome.Success)
	assert.NotEmpty(t, outcome.Error)

	col, _ := s.Step(steps.ColExtraction)
	assert.Equal(t, core.StepError, col.Status)
	require.NotNil(t, col.Error)
	assert.Equal(t, MsgInterrupted, *col.Error)

	upload, _ := s.Step(steps.DocumentUpload)
	assert.Equal(t, core.StepCompleted, upload.Status)

	abstract, _ := s.Step(steps.Abstract)
	assert.Equal(t, core.StepPending, abstract.Status)
	assert.False(t, s.IsAnalyzing())
}

func TestRun_StatuslessFrameThenTransportFailure(t *testing.T) {
	body := frame(steps.CaseCitation, core.StepInProgress, nil) +
		"data: {\"step\":\"case_citation\",\"data\":{\"case_citation\":\"X\"}}\n\n"
	engine := engineFunc(func(context.Context, backend.AnalyzeRequest) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: &failingBody{r: strings.NewReader(body)}}, nil
	})

	s := New(engine)
	outcome := s.Run(t.Context(), RunRequest{DraftID: 1})
	assert.False(t, outcome.Success)

	citation, _ := s.Step(steps.CaseCitation)
	assert.True(t, core.ValidStepStatus(citation.Status))
	assert.Equal(t, core.StepError, citation.Status)
	require.NotNil(t, citation.Error)
	assert.Equal(t, MsgInterrupted, *citation.Error)
	assert.NotContains(t, s.Results(), steps.CaseCitation)
}

func TestRun_NonSuccessStatus(t *testing.T) {
	engine := engineFunc(func(context.Context, backend.AnalyzeRequest) (*http.Response, error) {
		return &http.Response{
			StatusCode: 409,
			Body:       io.NopCloser(strings.NewReader(`{"detail":"Draft already analyzed"}`)),
		}, nil
	})

	s := New(engine)
	outcome := s.Run(t.Context(), RunRequest{DraftID: 1})

	assert.Equal(t, core.SessionOutcome{Error: "Draft already analyzed"}, outcome)
	for _, st := range s.Steps() {
		assert.Equal(t, core.StepPending, st.Status)
	}
}

func TestRun_RequestError(t *testing.T) {
	engine := engineFunc(func(context.Context, backend.AnalyzeRequest) (*http.Response, error) {
		return nil, core.ErrTransport(core.CodeRequestFailed, "analysis request failed")
	})

	outcome := New(engine).Run(t.Context(), RunRequest{DraftID: 1})
	assert.Equal(t, "analysis request failed", outcome.Error)
}

func TestRun_InBandErrorIsFatal(t *testing.T) {
	body := frame(steps.ColExtraction, core.StepInProgress, nil) +
		frame(steps.ThemeClassification, core.StepInProgress, nil) +
		"data: {\"step\":\"col_extraction\",\"status\":\"error\",\"error\":\"model timeout\"}\n\n" +
		frame(steps.ThemeClassification, core.StepCompleted, map[string]any{"themes": "x"})

	s := New(streamOf(body))
	outcome := s.Run(t.Context(), RunRequest{DraftID: 1})

	assert.Equal(t, core.SessionOutcome{Error: "model timeout"}, outcome)

	col, _ := s.Step(steps.ColExtraction)
	require.NotNil(t, col.Error)
	assert.Equal(t, "model timeout", *col.Error)

	theme, _ := s.Step(steps.ThemeClassification)
	assert.Equal(t, core.StepError, theme.Status)
	require.NotNil(t, theme.Error)
	assert.Equal(t, MsgInterrupted, *theme.Error)
	assert.NotContains(t, s.Results(), steps.ThemeClassification)
}

func TestRun_InBandErrorWithoutMessage(t *testing.T) {
	s := New(streamOf("data: {\"step\":\"abstract\",\"status\":\"error\"}\n"))
	outcome := s.Run(t.Context(), RunRequest{DraftID: 1})

	assert.False(t, outcome.Success)
	abstract, _ := s.Step(steps.Abstract)
	require.NotNil(t, abstract.Error)
	assert.Equal(t, MsgStepFailed, *abstract.Error)
}

func TestRun_RejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	engine := engineFunc(func(context.Context, backend.AnalyzeRequest) (*http.Response, error) {
		close(started)
		<-release
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(""))}, nil
	})
	s := New(engine)

	done := make(chan core.SessionOutcome, 1)
	go func() { done <- s.Run(context.Background(), RunRequest{DraftID: 1}) }()
	<-started

	assert.True(t, s.IsAnalyzing())
	second := s.Run(context.Background(), RunRequest{DraftID: 1})
	assert.Equal(t, core.SessionOutcome{Error: MsgAlreadyRunning}, second)

	_, err := s.Restore(Restored{})
	assert.True(t, core.IsCategory(err, core.ErrCatState))

	close(release)
	assert.True(t, (<-done).Success)
	assert.False(t, s.IsAnalyzing())
}

type blockingBody struct {
	first  io.Reader
	closed chan struct{}
	once   sync.Once
}

func (b *blockingBody) Read(p []byte) (int, error) {
	if n, _ := b.first.Read(p); n > 0 {
		return n, nil
	}
	<-b.closed
	return 0, errors.New("body closed")
}

func (b *blockingBody) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func TestRun_Cancellation(t *testing.T) {
	body := &blockingBody{
		first:  strings.NewReader(frame(steps.ColExtraction, core.StepInProgress, nil)),
		closed: make(chan struct{}),
	}
	engine := engineFunc(func(context.Context, backend.AnalyzeRequest) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: body}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := New(engine)
	outcome := s.Run(ctx, RunRequest{
		DraftID: 1,
		OnEvent: func(ev core.StreamEvent, _ steps.Transition) {
			if ev.Step == steps.ColExtraction {
				cancel()
			}
		},
	})

	assert.True(t, outcome.Canceled)
	assert.False(t, outcome.Success)
	assert.Equal(t, "analysis cancelled", outcome.Error)
	col, _ := s.Step(steps.ColExtraction)
	assert.Equal(t, core.StepError, col.Status)
	require.NotNil(t, col.Error)
	assert.Equal(t, MsgCancelled, *col.Error)
}

func TestRun_ResumeKeepsCompletedSteps(t *testing.T) {
	first := frame(steps.DocumentUpload, core.StepCompleted, nil) +
		frame(steps.CaseCitation, core.StepCompleted, map[string]any{"case_citation": "BGE 1"}) +
		"data: {\"step\":\"abstract\",\"status\":\"error\",\"error\":\"boom\"}\n"
	calls := 0
	var resumeFlags []bool
	engine := engineFunc(func(_ context.Context, req backend.AnalyzeRequest) (*http.Response, error) {
		calls++
		resumeFlags = append(resumeFlags, req.Resume)
		body := first
		if calls > 1 {
			body = frame(steps.Abstract, core.StepCompleted, map[string]any{"abstract": "A"})
		}
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(body))}, nil
	})

	s := New(engine)
	require.False(t, s.Run(t.Context(), RunRequest{DraftID: 3}).Success)
	outcome := s.Run(t.Context(), RunRequest{DraftID: 3, Resume: true})
	require.True(t, outcome.Success)

	assert.Equal(t, []bool{false, true}, resumeFlags)
	results := s.Results()
	assert.Equal(t, "BGE 1", results[steps.CaseCitation]["case_citation"])
	assert.Equal(t, "A", results[steps.Abstract]["abstract"])
}

func TestRun_FormKeepsUserEdits(t *testing.T) {
	body := frame(steps.CaseCitation, core.StepCompleted, map[string]any{"case_citation": "from engine"}) +
		frame(steps.Abstract, core.StepCompleted, map[string]any{"abstract": "engine abstract"})
	s := New(streamOf(body))
	s.SetEdited(core.FieldCaseCitation, "typed by user")

	require.True(t, s.Run(t.Context(), RunRequest{DraftID: 1}).Success)
	assert.Equal(t, "typed by user", s.Edited().CaseCitation)
	assert.Equal(t, "engine abstract", s.Edited().Abstract)
}

func TestRun_ResumeBackfillsEmptyFields(t *testing.T) {
	s := New(streamOf(frame(steps.Abstract, core.StepCompleted, map[string]any{"abstract": "A"})))
	_, err := s.Restore(Restored{
		DraftID: 5,
		Results: core.AnalysisResults{
			steps.CaseCitation: {"case_citation": "BGE 9"},
			steps.ColIssue:     {"col_issue": "engine issue"},
		},
		Edited: core.EditedAnalysisValues{ChoiceOfLawIssue: "user issue"},
	})
	require.NoError(t, err)

	require.True(t, s.Run(t.Context(), RunRequest{DraftID: 5, Resume: true}).Success)

	edited := s.Edited()
	assert.Equal(t, "BGE 9", edited.CaseCitation)
	assert.Equal(t, "user issue", edited.ChoiceOfLawIssue)
	assert.Equal(t, "A", edited.Abstract)
}

func TestRun_PublishesEvents(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()
	ch := bus.Subscribe()

	body := "data: {\"step\":\"heartbeat\"}\n" + frame(steps.Abstract, core.StepCompleted, nil)
	s := New(streamOf(body), WithEventBus(bus), WithID("s-1"))
	require.True(t, s.Run(t.Context(), RunRequest{DraftID: 1}).Success)

	var types []string
	for len(ch) > 0 {
		ev := <-ch
		assert.Equal(t, "s-1", ev.SessionID())
		types = append(types, ev.EventType())
	}
	assert.Equal(t, []string{
		events.TypeAnalysisStarted,
		events.TypeHeartbeat,
		events.TypeStepUpdated,
		events.TypeAnalysisCompleted,
	}, types)
}

func TestRun_IdleTimeout(t *testing.T) {
	body := &blockingBody{first: strings.NewReader(""), closed: make(chan struct{})}
	engine := engineFunc(func(context.Context, backend.AnalyzeRequest) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: body}, nil
	})

	s := New(engine, WithIdleTimeout(20*time.Millisecond))
	outcome := s.Run(t.Context(), RunRequest{DraftID: 1})
	assert.False(t, outcome.Success)
	assert.False(t, outcome.Canceled)
	assert.Contains(t, outcome.Error, "idle")
}

func TestRestore(t *testing.T) {
	s := New(streamOf(""))
	hydrated, err := s.Restore(Restored{
		DraftID: 9,
		Edited:  core.EditedAnalysisValues{Abstract: "A"},
		Results: core.AnalysisResults{
			steps.Abstract: {"abstract": "A", "confidence": "high", "reasoning": 3},
		},
	})
	require.NoError(t, err)
	assert.True(t, hydrated)
	assert.Equal(t, int64(9), s.DraftID())

	abstract, _ := s.Step(steps.Abstract)
	assert.Equal(t, core.StepCompleted, abstract.Status)
	require.NotNil(t, abstract.Confidence)
	assert.Equal(t, "high", *abstract.Confidence)
	assert.Nil(t, abstract.Reasoning)

	facts, _ := s.Step(steps.RelevantFacts)
	assert.Equal(t, core.StepPending, facts.Status)
}

func TestRestore_NoResultsCompletesAll(t *testing.T) {
	s := New(streamOf(""))
	hydrated, err := s.Restore(Restored{DraftID: 9, Results: core.AnalysisResults{}})
	require.NoError(t, err)
	assert.False(t, hydrated)
	for _, st := range s.Steps() {
		assert.Equal(t, core.StepCompleted, st.Status)
		assert.Nil(t, st.Confidence)
		assert.Nil(t, st.Reasoning)
	}
}

func TestSnapshot(t *testing.T) {
	s := New(streamOf(frame(steps.Abstract, core.StepCompleted, map[string]any{"abstract": "A"})))
	require.True(t, s.Run(t.Context(), RunRequest{
		DraftID:      5,
		Jurisdiction: &core.JurisdictionInfo{PreciseJurisdiction: "Germany"},
	}).Success)

	a, b := s.Snapshot(), s.Snapshot()
	assert.NotEqual(t, a.CorrelationID, b.CorrelationID)
	assert.Equal(t, int64(5), a.DraftID)
	assert.Equal(t, "Germany", a.Jurisdiction.PreciseJurisdiction)
	assert.Equal(t, "A", a.EditedFields.Abstract)
	assert.Contains(t, a.AnalysisResults, steps.Abstract)
}

func TestSaveDraft(t *testing.T) {
	storage := &fakeStorage{}
	cache := &fakeCache{}
	s := New(streamOf(""), WithStorage(storage), WithSnapshotCache(cache))

	_, err := s.SaveDraft(t.Context())
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))

	s.SetDraftID(8)
	snap, err := s.SaveDraft(t.Context())
	require.NoError(t, err)
	require.Len(t, storage.saved, 1)
	assert.Equal(t, DraftStatus, storage.saved[0].Status)
	assert.Equal(t, snap.CorrelationID, storage.saved[0].AnalyzerData.CorrelationID)
	require.Len(t, cache.snaps, 1)

	storage.err = errors.New("503")
	_, err = s.SaveDraft(t.Context())
	assert.True(t, core.IsCategory(err, core.ErrCatTransport))
}

func TestSubmit(t *testing.T) {
	storage := &fakeStorage{}
	s := New(streamOf(""), WithStorage(storage))
	s.SetDraftID(12)
	s.SetEdited(core.FieldCaseCitation, "BGE 1")

	res, err := s.Submit(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.DraftID)

	require.Len(t, storage.submitted, 1)
	sub := storage.submitted[0]
	assert.Equal(t, "BGE 1", sub.Fields["case_citation"])

	var raw core.StoredAnalyzerSnapshot
	require.NoError(t, json.Unmarshal([]byte(sub.RawData), &raw))
	assert.Equal(t, int64(12), raw.DraftID)
	assert.Equal(t, "BGE 1", raw.EditedFields.CaseCitation)
}

func TestSubmit_RequiresDraft(t *testing.T) {
	_, err := New(streamOf(""), WithStorage(&fakeStorage{})).Submit(t.Context())
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))

	_, err = New(streamOf("")).Submit(t.Context())
	assert.True(t, core.IsCategory(err, core.ErrCatState))
}

func TestSessionsAreIndependent(t *testing.T) {
	a := New(streamOf(frame(steps.Abstract, core.StepCompleted, nil)))
	b := New(streamOf(""))
	require.True(t, a.Run(t.Context(), RunRequest{DraftID: 1}).Success)

	abstract, _ := b.Step(steps.Abstract)
	assert.Equal(t, core.StepPending, abstract.Status)
	assert.NotEqual(t, a.ID(), b.ID())
}

func ExampleSession_Run() {
	s := New(streamOf(frame(steps.DocumentUpload, core.StepCompleted, nil)))
	outcome := s.Run(context.Background(), RunRequest{DraftID: 1})
	fmt.Println(outcome.Success)
	// Output: true
}
