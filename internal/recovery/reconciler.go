// Package recovery restores an analysis session from a saved draft or
// suggestion, tolerating every payload shape the backends have produced.
package recovery

import (
	"encoding/json"
	"strings"

	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/extract"
	"github.com/legaldb/caseanalyzer/internal/logging"
	"github.com/legaldb/caseanalyzer/internal/session"
	"github.com/legaldb/caseanalyzer/internal/steps"
)

// Values used when a jurisdiction is rebuilt from a bare label.
const (
	SynthesizedLegalSystem = "Unknown"
	SynthesizedConfidence  = "low"
	SynthesizedReasoning   = "Loaded from saved suggestion"
)

// snapshotKeys are checked in order for an embedded snapshot. The payload
// itself is tried last.
var snapshotKeys = []string{"raw_data", "analyzer_data"}

// Target receives recovered state.
type Target interface {
	Restore(session.Restored) (bool, error)
}

// EditedSource names where edited values came from.
type EditedSource string

const (
	EditedFromSnapshot  EditedSource = "snapshot"
	EditedFromLegacy    EditedSource = "legacy_edited"
	EditedFromCanonical EditedSource = "canonical"
)

// Applied summarizes one reconciliation.
type Applied struct {
	DraftID                 int64
	FromSnapshot            bool
	EditedSource            EditedSource
	Edited                  core.EditedAnalysisValues
	Jurisdiction            *core.JurisdictionInfo
	JurisdictionSynthesized bool
	Results                 core.AnalysisResults
	// Hydrated is false when the no-results fallback completed every
	// non-error step.
	Hydrated bool
}

// Reconciler applies raw saved payloads to a session.
type Reconciler struct {
	target Target
	logger *logging.Logger
}

// NewReconciler creates a reconciler writing into target.
func NewReconciler(target Target, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{target: target, logger: logger}
}

// ApplySnapshot restores edited values, jurisdiction and results from
// payload, each through its own fallback chain, then hydrates the
// session steps.
func (r *Reconciler) ApplySnapshot(payload map[string]any) (Applied, error) {
	applied := r.Resolve(payload)
	hydrated, err := r.target.Restore(session.Restored{
		DraftID:      applied.DraftID,
		Jurisdiction: applied.Jurisdiction,
		Edited:       applied.Edited,
		Results:      applied.Results,
	})
	if err != nil {
		return applied, err
	}
	applied.Hydrated = hydrated
	r.logger.Info("snapshot applied",
		"draft_id", applied.DraftID,
		"from_snapshot", applied.FromSnapshot,
		"edited_source", applied.EditedSource,
		"results", len(applied.Results),
		"hydrated", hydrated)
	return applied, nil
}

// Resolve computes what ApplySnapshot would restore without touching
// the session.
func (r *Reconciler) Resolve(payload map[string]any) Applied {
	snap, raw := r.locateSnapshot(payload)
	a := Applied{FromSnapshot: snap != nil}

	// Edited fields.
	switch {
	case snap != nil && snap.EditedFields != nil:
		a.Edited = *snap.EditedFields
		a.EditedSource = EditedFromSnapshot
	case extract.HasEditedKeys(payload):
		a.Edited = extract.LegacyEditedFields(payload)
		a.EditedSource = EditedFromLegacy
	default:
		a.Edited = extract.LegacyEditedFields(payload)
		a.EditedSource = EditedFromCanonical
	}

	// Jurisdiction.
	switch {
	case snap != nil && snap.Jurisdiction != nil:
		a.Jurisdiction = snap.Jurisdiction
	default:
		if j := structuredJurisdiction(payload["jurisdiction_info"]); j != nil {
			a.Jurisdiction = j
		} else if label := jurisdictionLabel(payload); label != "" {
			a.Jurisdiction = &core.JurisdictionInfo{
				LegalSystemType:     SynthesizedLegalSystem,
				PreciseJurisdiction: label,
				Confidence:          SynthesizedConfidence,
				Reasoning:           SynthesizedReasoning,
			}
			a.JurisdictionSynthesized = true
		}
	}

	// Analysis results. An empty snapshot map counts as absent.
	if snap != nil && len(snap.AnalysisResults) > 0 {
		a.Results = snap.AnalysisResults
	} else {
		a.Results = scanResults(payload, raw)
	}

	switch {
	case snap != nil && snap.DraftID != 0:
		a.DraftID = snap.DraftID
	default:
		a.DraftID = int64Of(payload["draft_id"])
	}
	return a
}

// locateSnapshot returns the first candidate that decodes and validates
// as a snapshot, with its raw map.
func (r *Reconciler) locateSnapshot(payload map[string]any) (*core.StoredAnalyzerSnapshot, map[string]any) {
	candidates := make([]any, 0, len(snapshotKeys)+1)
	for _, key := range snapshotKeys {
		if v, ok := payload[key]; ok {
			candidates = append(candidates, v)
		}
	}
	candidates = append(candidates, payload)

	for _, c := range candidates {
		m := asObject(c)
		if m == nil || !looksLikeSnapshot(m) {
			continue
		}
		if err := ValidateSnapshot(m); err != nil {
			r.logger.Warn("ignoring invalid analyzer snapshot", "error", err)
			continue
		}
		var snap core.StoredAnalyzerSnapshot
		if err := roundTrip(m, &snap); err != nil {
			r.logger.Warn("ignoring undecodable analyzer snapshot", "error", err)
			continue
		}
		return &snap, m
	}
	return nil, nil
}

// looksLikeSnapshot checks for the camelCase keys only snapshots use; a
// bare "jurisdiction" label is common on legacy payloads.
func looksLikeSnapshot(m map[string]any) bool {
	for _, key := range []string{"editedFields", "analysisResults", "correlationId", "draftId"} {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}

// scanResults collects step-keyed objects from the payload and from an
// embedded snapshot map that failed to carry results.
func scanResults(payload, raw map[string]any) core.AnalysisResults {
	out := make(core.AnalysisResults)
	for _, src := range []map[string]any{raw, payload} {
		for _, name := range steps.Names() {
			if _, seen := out[name]; seen {
				continue
			}
			if obj, ok := src[name].(map[string]any); ok {
				out[name] = obj
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func structuredJurisdiction(v any) *core.JurisdictionInfo {
	switch j := v.(type) {
	case *core.JurisdictionInfo:
		return j
	case core.JurisdictionInfo:
		return &j
	case map[string]any, string:
		m := asObject(j)
		if m == nil {
			return nil
		}
		var out core.JurisdictionInfo
		if err := roundTrip(m, &out); err != nil {
			return nil
		}
		if out.LegalSystemType == "" && out.PreciseJurisdiction == "" {
			return nil
		}
		return &out
	}
	return nil
}

func jurisdictionLabel(payload map[string]any) string {
	for _, key := range []string{"jurisdiction", "precise_jurisdiction"} {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// asObject accepts a decoded object or a JSON string holding one.
func asObject(v any) map[string]any {
	switch val := v.(type) {
	case map[string]any:
		return val
	case string:
		s := strings.TrimSpace(val)
		if !strings.HasPrefix(s, "{") {
			return nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil
		}
		return m
	}
	return nil
}

func roundTrip(in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func int64Of(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}
