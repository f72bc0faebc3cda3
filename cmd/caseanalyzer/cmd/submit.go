package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/extract"
	"github.com/legaldb/caseanalyzer/internal/render"
)

var submitCmd = &cobra.Command{
	Use:   "submit <draft-id>",
	Short: "Submit a recovered draft as a final suggestion",
	Long: `Recover a draft, apply any --set edits and submit the result as a
case-analyzer suggestion. The full snapshot travels as raw_data.

Examples:
  caseanalyzer submit 42
  caseanalyzer submit 42 --set abstract="Revised abstract" --set themes="Party autonomy"`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var submitSets []string

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringArrayVar(&submitSets, "set", nil,
		"override a field before submitting (field=value, field is the submission key)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	draftID, err := parseID("draft", args[0])
	if err != nil {
		return err
	}
	edits, err := parseEdits(submitSets)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.recoverer.RecoverDraft(cmd.Context(), draftID); err != nil {
		return err
	}
	for field, value := range edits {
		a.session.SetEdited(field, value)
	}

	res, err := a.session.Submit(cmd.Context())
	if err != nil {
		return err
	}
	if a.mode == render.ModeJSON {
		return a.printJSON(res)
	}
	if a.mode != render.ModeQuiet {
		fmt.Fprintf(a.out, "Submitted draft #%d\n", res.DraftID)
	}
	return nil
}

// parseEdits maps field=value pairs onto form fields by submission key.
func parseEdits(pairs []string) (map[core.EditedField]string, error) {
	byKey := make(map[string]core.EditedField, len(extract.Fields))
	for _, f := range extract.Fields {
		byKey[f.BackendKey] = f.Name
	}
	out := make(map[core.EditedField]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q: want field=value", p)
		}
		field, known := byKey[strings.TrimSpace(key)]
		if !known {
			return nil, fmt.Errorf("unknown field %q", key)
		}
		out[field] = value
	}
	return out, nil
}
