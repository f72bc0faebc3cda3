package main

import (
	"fmt"
	"os"

	"github.com/legaldb/caseanalyzer/cmd/caseanalyzer/cmd"
	"github.com/legaldb/caseanalyzer/internal/core"
)

// Version information - set by goreleaser at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersion(version, commit, date)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", core.UserMessage(err))
		os.Exit(1)
	}
}
