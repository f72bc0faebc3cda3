package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/recovery"
	"github.com/legaldb/caseanalyzer/internal/render"
)

var recoverCmd = &cobra.Command{
	Use:   "recover <draft-id>",
	Short: "Recover a saved draft and show its analysis state",
	Long: `Fetch a saved draft from the backend and restore its edited fields,
jurisdiction and step results. Drafts saved before snapshots existed are
read through their legacy field layout.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecover,
}

var suggestionCmd = &cobra.Command{
	Use:   "suggestion <suggestion-id>",
	Short: "Load a persisted suggestion and show its analysis state",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuggestion,
}

func init() {
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(suggestionCmd)
}

func runRecover(cmd *cobra.Command, args []string) error {
	draftID, err := parseID("draft", args[0])
	if err != nil {
		return err
	}
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	applied, err := a.recoverer.RecoverDraft(cmd.Context(), draftID)
	if err != nil {
		return err
	}
	return a.printApplied(applied)
}

func runSuggestion(cmd *cobra.Command, args []string) error {
	id, err := parseID("suggestion", args[0])
	if err != nil {
		return err
	}
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	applied, err := a.recoverer.LoadSuggestion(cmd.Context(), id)
	if err != nil {
		return err
	}
	return a.printApplied(applied)
}

// appliedView is the JSON form of a recovery.
type appliedView struct {
	DraftID                 int64                     `json:"draft_id,omitempty"`
	FromSnapshot            bool                      `json:"from_snapshot"`
	EditedSource            recovery.EditedSource     `json:"edited_source"`
	Jurisdiction            *core.JurisdictionInfo    `json:"jurisdiction,omitempty"`
	JurisdictionSynthesized bool                      `json:"jurisdiction_synthesized,omitempty"`
	Hydrated                bool                      `json:"hydrated"`
	Edited                  core.EditedAnalysisValues `json:"edited_fields"`
	Steps                   []core.Step               `json:"steps"`
}

func (a *app) printApplied(applied recovery.Applied) error {
	switch a.mode {
	case render.ModeJSON:
		return a.printJSON(appliedView{
			DraftID:                 applied.DraftID,
			FromSnapshot:            applied.FromSnapshot,
			EditedSource:            applied.EditedSource,
			Jurisdiction:            applied.Jurisdiction,
			JurisdictionSynthesized: applied.JurisdictionSynthesized,
			Hydrated:                applied.Hydrated,
			Edited:                  applied.Edited,
			Steps:                   a.session.Steps(),
		})
	case render.ModeQuiet:
		return nil
	}

	if applied.DraftID != 0 {
		fmt.Fprintf(a.out, "Draft #%d", applied.DraftID)
	} else {
		fmt.Fprint(a.out, "Draft")
	}
	source := "legacy fields"
	if applied.FromSnapshot {
		source = "snapshot"
	}
	fmt.Fprintf(a.out, " restored from %s (%d results)\n", source, len(applied.Results))
	if j := applied.Jurisdiction; j != nil {
		fmt.Fprintf(a.out, "Jurisdiction: %s (%s, confidence %s)\n",
			j.PreciseJurisdiction, j.LegalSystemType, j.Confidence)
	}
	render.Edited(a.out, applied.Edited)
	render.Steps(a.out, a.session.Steps(), a.color)
	return nil
}
