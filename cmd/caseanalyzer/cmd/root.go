package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	noColor   bool
	quiet     bool
	output    string

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "caseanalyzer",
	Short: "Run and recover court decision analyses against the legal database",
	Long: `caseanalyzer drives the case-analyzer backend from the command line.

It streams the step-by-step analysis of an uploaded decision, recovers
saved drafts and suggestions, keeps a local cache of saved snapshots and
submits the final suggestion.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion injects build information.
func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// GetVersion returns the application version string.
func GetVersion() string {
	return appVersion
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .caseanalyzer.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress progress output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "",
		"output mode (plain, json)")
	rootCmd.PersistentFlags().String("base-url", "",
		"case-analyzer API base URL")
	rootCmd.PersistentFlags().String("token", "",
		"bearer token for the API (prefer CASEANALYZER_BACKEND_TOKEN)")

	// Bind flags to viper (errors are nil when flag exists)
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("backend.base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("backend.token", rootCmd.PersistentFlags().Lookup("token"))
}
