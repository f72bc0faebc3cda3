package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/legaldb/caseanalyzer/internal/backend"
	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/events"
	"github.com/legaldb/caseanalyzer/internal/extract"
	"github.com/legaldb/caseanalyzer/internal/steps"
	"github.com/legaldb/caseanalyzer/internal/stream"
)

// RunRequest starts one analysis run.
type RunRequest struct {
	DraftID      int64
	Jurisdiction *core.JurisdictionInfo
	// Resume keeps completed steps and their results.
	Resume bool
	// OnEvent is called after each event is applied, heartbeats included.
	OnEvent func(core.StreamEvent, steps.Transition)
}

// Run streams one analysis and applies every event in arrival order.
// Only one run may be active per session; an overlapping call returns a
// failed outcome without touching state. The analyzing flag is released
// on every exit path.
func (s *Session) Run(ctx context.Context, req RunRequest) core.SessionOutcome {
	if !s.analyzing.CompareAndSwap(false, true) {
		s.logger.Warn("rejected overlapping analysis run", "draft_id", req.DraftID)
		return core.SessionOutcome{Error: MsgAlreadyRunning}
	}
	defer s.analyzing.Store(false)

	start := time.Now()
	logger := s.logger.WithDraft(req.DraftID)
	outcome := s.run(ctx, req)

	s.mu.RLock()
	counts := s.registry.Counts()
	s.mu.RUnlock()
	s.publishPriority(events.NewAnalysisFinishedEvent(s.id, req.DraftID, outcome, counts, time.Since(start)))

	switch {
	case outcome.Success:
		logger.Info("analysis completed", "duration", time.Since(start), "completed", counts[core.StepCompleted])
	case outcome.Canceled:
		logger.Warn("analysis cancelled", "duration", time.Since(start))
	default:
		logger.Error("analysis failed", "error", outcome.Error, "duration", time.Since(start))
	}
	return outcome
}

func (s *Session) run(ctx context.Context, req RunRequest) core.SessionOutcome {
	jurisdiction := s.prepare(req)

	label := ""
	if jurisdiction != nil {
		label = jurisdiction.PreciseJurisdiction
	}
	s.publish(events.NewAnalysisStartedEvent(s.id, req.DraftID, label, req.Resume))

	resp, err := s.engine.StartAnalysis(ctx, backend.AnalyzeRequest{
		DraftID:      req.DraftID,
		Jurisdiction: jurisdiction,
		Resume:       req.Resume,
	})
	if err != nil {
		return s.fail(ctx, err)
	}

	reader, err := stream.Open(resp,
		stream.WithLogger(s.logger.Logger),
		stream.WithIdleTimeout(s.idleTimeout))
	if err != nil {
		return s.fail(ctx, err)
	}
	defer reader.Close()

	stop := context.AfterFunc(ctx, func() { _ = reader.Close() })
	defer stop()

	for {
		if ctx.Err() != nil {
			return s.fail(ctx, ctx.Err())
		}
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.fail(ctx, err)
		}
		tr := s.apply(req.DraftID, ev)
		if req.OnEvent != nil {
			req.OnEvent(ev, tr)
		}
	}
	if ctx.Err() != nil {
		return s.fail(ctx, ctx.Err())
	}
	s.logger.Debug("stream finished", "frames", reader.Frames(), "skipped", reader.Skipped())

	s.mu.Lock()
	s.machine.MarkAllCompletedIfNotError()
	s.backfillForm()
	s.mu.Unlock()
	return core.SessionOutcome{Success: true}
}

// prepare resets step state for a new run. A resumed run keeps the
// steps that already completed.
func (s *Session) prepare(req RunRequest) *core.JurisdictionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draftID = req.DraftID
	if req.Jurisdiction != nil {
		j := *req.Jurisdiction
		s.jurisdiction = &j
	}

	var keep []string
	if req.Resume {
		keep = s.registry.NamesWithStatus(core.StepCompleted)
	}
	s.machine.Reset(keep...)

	if s.jurisdiction == nil {
		return nil
	}
	j := *s.jurisdiction
	return &j
}

func (s *Session) apply(draftID int64, ev core.StreamEvent) steps.Transition {
	s.mu.Lock()
	tr := s.machine.Apply(ev)
	if tr.Heartbeat || !tr.Known {
		s.mu.Unlock()
		if tr.Heartbeat {
			s.publish(events.NewHeartbeatEvent(s.id, draftID))
		} else {
			s.logger.Debug("ignoring event", "step", ev.Step, "status", ev.Status)
		}
		return tr
	}

	step, _ := s.registry.Get(ev.Step)
	if tr.Terminal && step.Error == nil {
		msg := MsgStepFailed
		step.Error = &msg
	}
	if tr.FreshCompletion {
		s.fillForm(ev.Step, ev.Data)
	}
	snapshot := *step
	s.mu.Unlock()

	s.logger.WithStep(ev.Step).Debug("step updated",
		"status", ev.Status, "previous", tr.Previous, "fresh", tr.FreshCompletion)
	s.publish(events.NewStepUpdatedEvent(s.id, draftID, snapshot, tr.Previous, tr.FreshCompletion, ev.Data))
	return tr
}

// fillForm copies a completed step's values into empty form fields so
// user edits are never overwritten. Caller holds s.mu.
func (s *Session) fillForm(step string, data map[string]any) {
	if step == steps.JurisdictionDetection && s.jurisdiction == nil {
		s.jurisdiction = jurisdictionFromData(data)
	}
	for _, f := range extract.FieldsForStep(step) {
		if strings.TrimSpace(s.edited.Get(f.Name)) != "" {
			continue
		}
		if v, ok := f.FromResult(data); ok {
			s.edited.Set(f.Name, v)
		}
	}
}

// backfillForm fills form fields still empty after a run from every
// result collected so far, including steps kept by a resumed run with no
// fresh completion. Caller holds s.mu.
func (s *Session) backfillForm() {
	from := extract.EditedFromResults(s.machine.Results(), s.jurisdiction)
	for _, f := range extract.Fields {
		if strings.TrimSpace(s.edited.Get(f.Name)) != "" {
			continue
		}
		if v := from.Get(f.Name); v != "" {
			s.edited.Set(f.Name, v)
		}
	}
}

// fail marks in-flight steps as errored and converts err to an outcome.
func (s *Session) fail(ctx context.Context, err error) core.SessionOutcome {
	canceled := ctx.Err() != nil || errors.Is(err, context.Canceled)
	msg := MsgInterrupted
	if canceled {
		msg = MsgCancelled
	}

	s.mu.Lock()
	touched := s.registry.MarkInProgressAsError(msg)
	s.mu.Unlock()
	s.logger.Debug("run stopped", "error", err, "interrupted_steps", touched)

	if canceled {
		err = core.ErrCanceled(strings.ToLower(MsgCancelled)).WithCause(err)
	}
	return core.SessionOutcome{
		Error:    core.UserMessage(err),
		Canceled: core.IsCategory(err, core.ErrCatCanceled),
	}
}

func jurisdictionFromData(data map[string]any) *core.JurisdictionInfo {
	str := func(key string) string {
		v, _ := data[key].(string)
		return strings.TrimSpace(v)
	}
	j := &core.JurisdictionInfo{
		LegalSystemType:     str("legal_system_type"),
		PreciseJurisdiction: str("precise_jurisdiction"),
		JurisdictionCode:    str("jurisdiction_code"),
		Confidence:          str("confidence"),
		Reasoning:           str("reasoning"),
	}
	if j.LegalSystemType == "" && j.PreciseJurisdiction == "" {
		return nil
	}
	return j
}
