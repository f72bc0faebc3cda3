// Package session coordinates one analysis session: it owns the step
// registry, collected results and the editable form values, and drives
// them from the analysis engine's event stream.
package session

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/legaldb/caseanalyzer/internal/backend"
	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/events"
	"github.com/legaldb/caseanalyzer/internal/logging"
	"github.com/legaldb/caseanalyzer/internal/steps"
)

// User-facing outcome messages.
const (
	MsgAlreadyRunning = "analysis already in progress"
	MsgInterrupted    = "Analysis interrupted"
	MsgCancelled      = "Analysis cancelled"
	MsgStepFailed     = "Analysis failed"
)

// AnalysisEngine opens analysis streams.
type AnalysisEngine interface {
	StartAnalysis(ctx context.Context, req backend.AnalyzeRequest) (*http.Response, error)
}

// Storage persists drafts and final suggestions.
type Storage interface {
	SaveDraft(ctx context.Context, id int64, update backend.DraftUpdate) error
	SubmitSuggestion(ctx context.Context, sub backend.Submission) (backend.SubmitResult, error)
}

// SnapshotCache keeps a local copy of saved snapshots.
type SnapshotCache interface {
	Put(ctx context.Context, snap core.StoredAnalyzerSnapshot) error
}

// Option configures a Session.
type Option func(*Session)

// WithStorage sets the draft and suggestion storage.
func WithStorage(st Storage) Option {
	return func(s *Session) { s.storage = st }
}

// WithSnapshotCache mirrors saved drafts into a local cache.
func WithSnapshotCache(c SnapshotCache) Option {
	return func(s *Session) { s.cache = c }
}

// WithEventBus publishes progress events on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(s *Session) { s.bus = bus }
}

// WithLogger sets the session logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIdleTimeout fails a run when its stream is silent for d.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Session) { s.idleTimeout = d }
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Session is the state of one analysis session. Sessions share nothing;
// each owns its registry.
type Session struct {
	id          string
	engine      AnalysisEngine
	storage     Storage
	cache       SnapshotCache
	bus         *events.EventBus
	logger      *logging.Logger
	idleTimeout time.Duration

	analyzing atomic.Bool

	mu           sync.RWMutex
	registry     *steps.Registry
	machine      *steps.Machine
	draftID      int64
	jurisdiction *core.JurisdictionInfo
	edited       core.EditedAnalysisValues
}

// New creates a session with a fresh registry.
func New(engine AnalysisEngine, opts ...Option) *Session {
	registry := steps.NewRegistry()
	s := &Session{
		id:       uuid.NewString(),
		engine:   engine,
		logger:   logging.NewNop(),
		registry: registry,
		machine:  steps.NewMachine(registry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithSession(s.id)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// IsAnalyzing reports whether a run is active.
func (s *Session) IsAnalyzing() bool { return s.analyzing.Load() }

// DraftID returns the draft the session works on.
func (s *Session) DraftID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draftID
}

// SetDraftID sets the draft the session works on.
func (s *Session) SetDraftID(id int64) {
	s.mu.Lock()
	s.draftID = id
	s.mu.Unlock()
}

// Steps returns copies of every step in declared order.
func (s *Session) Steps() []core.Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.All()
}

// Step returns a copy of one step.
func (s *Session) Step(name string) (core.Step, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.registry.Get(name)
	if !ok {
		return core.Step{}, false
	}
	return *st, true
}

// Results returns a copy of the collected analysis results.
func (s *Session) Results() core.AnalysisResults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.machine.Results()
}

// Jurisdiction returns a copy of the current jurisdiction, or nil.
func (s *Session) Jurisdiction() *core.JurisdictionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.jurisdiction == nil {
		return nil
	}
	j := *s.jurisdiction
	return &j
}

// SetJurisdiction replaces the jurisdiction.
func (s *Session) SetJurisdiction(j *core.JurisdictionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j == nil {
		s.jurisdiction = nil
		return
	}
	cp := *j
	s.jurisdiction = &cp
}

// Edited returns the editable form values.
func (s *Session) Edited() core.EditedAnalysisValues {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edited
}

// SetEdited records a user edit for one field.
func (s *Session) SetEdited(field core.EditedField, value string) {
	s.mu.Lock()
	s.edited.Set(field, value)
	s.mu.Unlock()
}

// Restored is recovered session state.
type Restored struct {
	DraftID      int64
	Jurisdiction *core.JurisdictionInfo
	Edited       core.EditedAnalysisValues
	// Results are hydrated into the steps. When empty, or when no entry
	// names a known step, every non-error step is marked completed.
	Results core.AnalysisResults
}

// Restore applies recovered state. Steps without a result entry keep
// their current state.
func (s *Session) Restore(r Restored) (hydrated bool, err error) {
	if s.IsAnalyzing() {
		return false, core.ErrState(core.CodeAnalysisRunning, MsgAlreadyRunning)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.DraftID != 0 {
		s.draftID = r.DraftID
	}
	if r.Jurisdiction != nil {
		j := *r.Jurisdiction
		s.jurisdiction = &j
	}
	s.edited = r.Edited

	if len(r.Results) > 0 {
		hydrated = s.machine.Hydrate(r.Results)
	}
	if !hydrated {
		s.machine.MarkAllCompletedIfNotError()
	}
	s.logger.Debug("session restored", "draft_id", s.draftID, "hydrated", hydrated, "results", len(r.Results))
	return hydrated, nil
}

func (s *Session) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

func (s *Session) publishPriority(ev events.Event) {
	if s.bus != nil {
		s.bus.PublishPriority(ev)
	}
}
