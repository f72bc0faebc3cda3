package session

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/legaldb/caseanalyzer/internal/backend"
	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/extract"
)

// DraftStatus is the status written when analyzer state is saved.
const DraftStatus = "draft"

// Snapshot captures the session in its persisted shape. Each call gets
// a fresh correlation id.
func (s *Session) Snapshot() core.StoredAnalyzerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edited := s.edited
	snap := core.StoredAnalyzerSnapshot{
		CorrelationID:   uuid.NewString(),
		DraftID:         s.draftID,
		AnalysisResults: s.machine.Results(),
		EditedFields:    &edited,
	}
	if s.jurisdiction != nil {
		j := *s.jurisdiction
		snap.Jurisdiction = &j
	}
	return snap
}

// SaveDraft stores the current snapshot on the draft and mirrors it into
// the local cache when one is configured.
func (s *Session) SaveDraft(ctx context.Context) (core.StoredAnalyzerSnapshot, error) {
	snap := s.Snapshot()
	if snap.DraftID == 0 {
		return snap, core.ErrValidation(core.CodeMissingDraftID, "no draft to save")
	}
	if s.storage != nil {
		err := s.storage.SaveDraft(ctx, snap.DraftID, backend.DraftUpdate{
			JurisdictionInfo: snap.Jurisdiction,
			AnalyzerData:     &snap,
			Status:           DraftStatus,
		})
		if err != nil {
			return snap, core.ErrTransport(core.CodeRequestFailed, "failed to save draft").WithCause(err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, snap); err != nil {
			s.logger.Warn("failed to cache draft snapshot", "draft_id", snap.DraftID, "error", err)
		}
	}
	s.logger.Info("draft saved", "draft_id", snap.DraftID, "correlation_id", snap.CorrelationID)
	return snap, nil
}

// Submit sends the edited values as the final suggestion, with the
// serialized snapshot attached as raw data.
func (s *Session) Submit(ctx context.Context) (backend.SubmitResult, error) {
	if s.IsAnalyzing() {
		return backend.SubmitResult{}, core.ErrState(core.CodeAnalysisRunning, MsgAlreadyRunning)
	}
	if s.storage == nil {
		return backend.SubmitResult{}, core.ErrState(core.CodeRequestFailed, "no storage configured")
	}
	snap := s.Snapshot()
	if snap.DraftID == 0 {
		return backend.SubmitResult{}, core.ErrValidation(core.CodeMissingDraftID, "no draft to submit")
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return backend.SubmitResult{}, core.ErrParse("failed to serialize snapshot").WithCause(err)
	}
	res, err := s.storage.SubmitSuggestion(ctx, backend.Submission{
		DraftID: snap.DraftID,
		Fields:  extract.BackendFields(*snap.EditedFields),
		RawData: string(raw),
	})
	if err != nil {
		return backend.SubmitResult{}, core.ErrTransport(core.CodeRequestFailed, "failed to submit suggestion").WithCause(err)
	}
	s.logger.Info("suggestion submitted", "draft_id", res.DraftID, "correlation_id", snap.CorrelationID)
	return res, nil
}
