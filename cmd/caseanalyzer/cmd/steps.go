package cmd

import (
	"github.com/spf13/cobra"

	"github.com/legaldb/caseanalyzer/internal/render"
	"github.com/legaldb/caseanalyzer/internal/steps"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the analysis steps in dependency order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if output == "json" {
			a := &app{out: cmd.OutOrStdout()}
			return a.printJSON(steps.Definitions())
		}
		render.Definitions(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stepsCmd)
}
