package recovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/legaldb/caseanalyzer/internal/backend"
	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/events"
	"github.com/legaldb/caseanalyzer/internal/logging"
)

// User-facing recovery messages.
const (
	MsgAlreadySubmitted = "This draft has already been submitted."
	MsgForbidden        = "You can only access your own drafts."
	MsgNotFound         = "Draft not found."
	MsgRecoveryFailed   = "Failed to recover draft. Please try again."
)

// Source loads saved drafts and suggestions.
type Source interface {
	GetDraft(ctx context.Context, id int64) (backend.Draft, error)
	GetSuggestion(ctx context.Context, id int64) (backend.Suggestion, error)
}

// Recoverer fetches saved state and applies it through a Reconciler.
type Recoverer struct {
	source     Source
	reconciler *Reconciler
	bus        *events.EventBus
	sessionID  string
	logger     *logging.Logger

	recovering atomic.Bool
}

// NewRecoverer creates a recoverer. bus may be nil.
func NewRecoverer(source Source, reconciler *Reconciler, bus *events.EventBus, sessionID string, logger *logging.Logger) *Recoverer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recoverer{
		source:     source,
		reconciler: reconciler,
		bus:        bus,
		sessionID:  sessionID,
		logger:     logger,
	}
}

// IsRecovering reports whether a fetch is in flight.
func (r *Recoverer) IsRecovering() bool {
	return r.recovering.Load()
}

// RecoverDraft loads draft id and applies it. Failures carry one of the
// recovery messages; IsRecovering is false again on return.
func (r *Recoverer) RecoverDraft(ctx context.Context, id int64) (Applied, error) {
	if id <= 0 {
		return Applied{}, core.ErrValidation(core.CodeInvalidDraftID, fmt.Sprintf("invalid draft id %d", id))
	}
	r.recovering.Store(true)
	defer r.recovering.Store(false)

	logger := r.logger.WithDraft(id)
	draft, err := r.source.GetDraft(ctx, id)
	if err != nil {
		recErr := draftError(err)
		logger.Warn("draft recovery failed", "error", err)
		return Applied{}, recErr
	}

	payload := draft.Payload()
	if draft.DraftID == 0 {
		payload["draft_id"] = id
	}
	applied, err := r.reconciler.ApplySnapshot(payload)
	if err != nil {
		return applied, err
	}
	r.publish(id, "draft", applied)
	logger.Info("draft recovered", "status", draft.Status, "file_name", draft.FileName)
	return applied, nil
}

// LoadSuggestion loads a persisted suggestion and applies its payload.
func (r *Recoverer) LoadSuggestion(ctx context.Context, id int64) (Applied, error) {
	r.recovering.Store(true)
	defer r.recovering.Store(false)

	failure := core.ErrRecovery(core.CodeSuggestionFailed, fmt.Sprintf("Unable to load suggestion #%d", id)).
		WithDetail("suggestion_id", id)

	sug, err := r.source.GetSuggestion(ctx, id)
	if err != nil {
		r.logger.Warn("suggestion load failed", "suggestion_id", id, "error", err)
		return Applied{}, failure.WithCause(err)
	}
	if len(sug.Payload) == 0 {
		r.logger.Warn("suggestion has no payload", "suggestion_id", id)
		return Applied{}, failure
	}

	applied, err := r.reconciler.ApplySnapshot(sug.Payload)
	if err != nil {
		return applied, err
	}
	r.publish(applied.DraftID, "suggestion", applied)
	return applied, nil
}

func (r *Recoverer) publish(draftID int64, source string, a Applied) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.NewDraftRecoveredEvent(r.sessionID, draftID, source, a.FromSnapshot, len(a.Results)))
}

// draftError maps a fetch failure to its user-facing recovery error.
func draftError(err error) *core.DomainError {
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		return core.ErrRecovery(core.CodeRecoveryFailed, MsgRecoveryFailed).WithCause(err)
	}
	var recErr *core.DomainError
	switch apiErr.StatusCode {
	case http.StatusBadRequest:
		recErr = core.ErrRecovery(core.CodeAlreadySubmitted, MsgAlreadySubmitted)
	case http.StatusForbidden:
		recErr = core.ErrRecovery(core.CodeForbidden, MsgForbidden)
	case http.StatusNotFound:
		recErr = core.ErrRecovery(core.CodeDraftNotFound, MsgNotFound)
	default:
		recErr = core.ErrRecovery(core.CodeRecoveryFailed, MsgRecoveryFailed)
	}
	return recErr.WithCause(err).WithDetail("status", apiErr.StatusCode)
}
