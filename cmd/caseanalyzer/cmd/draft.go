package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/legaldb/caseanalyzer/internal/render"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Save drafts and manage the local draft cache",
}

var draftSaveCmd = &cobra.Command{
	Use:   "save <draft-id>",
	Short: "Recover a draft and save it back with a fresh snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftSave,
}

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached drafts, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDraftList,
}

var draftShowCmd = &cobra.Command{
	Use:   "show <draft-id>",
	Short: "Show a cached draft snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftShow,
}

var draftExportCmd = &cobra.Command{
	Use:   "export <draft-id> <path>",
	Short: "Write a cached draft snapshot to a JSON file",
	Args:  cobra.ExactArgs(2),
	RunE:  runDraftExport,
}

var draftDeleteCmd = &cobra.Command{
	Use:   "delete <draft-id>",
	Short: "Remove a draft and its history from the cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftDelete,
}

var draftShowFormat string

func init() {
	rootCmd.AddCommand(draftCmd)
	draftCmd.AddCommand(draftSaveCmd, draftListCmd, draftShowCmd, draftExportCmd, draftDeleteCmd)

	draftShowCmd.Flags().StringVar(&draftShowFormat, "format", "table",
		"output format (table, json, yaml)")
}

func runDraftSave(cmd *cobra.Command, args []string) error {
	draftID, err := parseID("draft", args[0])
	if err != nil {
		return err
	}
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.recoverer.RecoverDraft(cmd.Context(), draftID); err != nil {
		return err
	}
	snap, err := a.session.SaveDraft(cmd.Context())
	if err != nil {
		return err
	}
	if a.mode == render.ModeJSON {
		return a.printJSON(snap)
	}
	if a.mode != render.ModeQuiet {
		fmt.Fprintf(a.out, "Saved draft #%d (correlation %s)\n", snap.DraftID, snap.CorrelationID)
	}
	return nil
}

func runDraftList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireStore(); err != nil {
		return err
	}

	entries, err := a.store.List(cmd.Context())
	if err != nil {
		return err
	}
	if a.mode == render.ModeJSON {
		return a.printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No cached drafts.")
		return nil
	}
	render.Drafts(a.out, entries)
	return nil
}

func runDraftShow(cmd *cobra.Command, args []string) error {
	draftID, err := parseID("draft", args[0])
	if err != nil {
		return err
	}
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireStore(); err != nil {
		return err
	}

	entry, err := a.store.Get(cmd.Context(), draftID)
	if err != nil {
		return err
	}

	format := draftShowFormat
	if a.mode == render.ModeJSON {
		format = "json"
	}
	switch format {
	case "json":
		return a.printJSON(entry)
	case "yaml":
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(entry)
	case "table":
		history, err := a.store.History(cmd.Context(), draftID)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Draft #%d  saved %d time(s), last %s\n",
			entry.DraftID, history, entry.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		if entry.Snapshot.EditedFields != nil {
			render.Edited(a.out, *entry.Snapshot.EditedFields)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func runDraftExport(cmd *cobra.Command, args []string) error {
	draftID, err := parseID("draft", args[0])
	if err != nil {
		return err
	}
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireStore(); err != nil {
		return err
	}

	if err := a.store.Export(cmd.Context(), draftID, args[1]); err != nil {
		return err
	}
	if a.mode != render.ModeQuiet {
		fmt.Fprintf(a.out, "Exported draft #%d to %s\n", draftID, args[1])
	}
	return nil
}

func runDraftDelete(cmd *cobra.Command, args []string) error {
	draftID, err := parseID("draft", args[0])
	if err != nil {
		return err
	}
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireStore(); err != nil {
		return err
	}

	if err := a.store.Delete(cmd.Context(), draftID); err != nil {
		return err
	}
	if a.mode != render.ModeQuiet {
		fmt.Fprintf(a.out, "Deleted draft #%d from the cache\n", draftID)
	}
	return nil
}
