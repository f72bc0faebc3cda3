package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/legaldb/caseanalyzer/internal/config"
	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/render"
	"github.com/legaldb/caseanalyzer/internal/session"
	"github.com/legaldb/caseanalyzer/internal/web"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <draft-id>",
	Short: "Stream the analysis of an uploaded decision",
	Long: `Start the case analysis of a draft and follow its steps as they
stream in. Each completed step fills the matching form field unless it
already holds a value.

Examples:
  # Analyze draft 42
  caseanalyzer analyze 42

  # Pin the jurisdiction instead of detecting it
  caseanalyzer analyze 42 --jurisdiction Switzerland --legal-system "Civil-law jurisdiction"

  # Continue an interrupted run, keeping completed steps
  caseanalyzer analyze 42 --resume

  # Mirror progress to browser tabs at http://127.0.0.1:8090/api/v1/sse/events
  caseanalyzer analyze 42 --relay`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeResume       bool
	analyzeJurisdiction string
	analyzeLegalSystem  string
	analyzeRelay        bool
	analyzeSave         bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolVar(&analyzeResume, "resume", false,
		"recover the saved draft first and keep its completed steps")
	analyzeCmd.Flags().StringVar(&analyzeJurisdiction, "jurisdiction", "",
		"precise jurisdiction to analyze under")
	analyzeCmd.Flags().StringVar(&analyzeLegalSystem, "legal-system", "",
		"legal system type for --jurisdiction")
	analyzeCmd.Flags().BoolVar(&analyzeRelay, "relay", false,
		"serve progress over SSE while the analysis runs")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false,
		"save the draft when the analysis succeeds")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	draftID, err := parseID("draft", args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd, analyzeSave)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if analyzeResume {
		if _, err := a.recoverer.RecoverDraft(ctx, draftID); err != nil {
			return err
		}
	}

	req := session.RunRequest{
		DraftID:      draftID,
		Jurisdiction: jurisdictionFlag(),
		Resume:       analyzeResume,
	}

	var progress *render.Progress
	if a.mode == render.ModePlain {
		progress = render.NewProgress(a.out, a.color, a.cfg.Log.Level == "debug")
		req.OnEvent = progress.Event
		progress.Started(draftID, analyzeResume)
	}

	var outcome core.SessionOutcome
	if analyzeRelay {
		outcome, err = runWithRelay(ctx, a, req)
		if err != nil {
			return err
		}
	} else {
		outcome = a.session.Run(ctx, req)
	}

	if progress != nil {
		progress.Finished(outcome)
	}
	if err := a.report(outcome); err != nil {
		return err
	}
	if !outcome.Success {
		return errors.New(outcome.Error)
	}

	if analyzeSave {
		snap, err := a.session.SaveDraft(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("draft saved", "draft_id", snap.DraftID, "correlation_id", snap.CorrelationID)
	}
	return nil
}

func jurisdictionFlag() *core.JurisdictionInfo {
	if analyzeJurisdiction == "" && analyzeLegalSystem == "" {
		return nil
	}
	return &core.JurisdictionInfo{
		PreciseJurisdiction: analyzeJurisdiction,
		LegalSystemType:     analyzeLegalSystem,
	}
}

// runWithRelay runs the analysis while the progress relay serves the
// session's events. The relay stays up until the run ends.
func runWithRelay(ctx context.Context, a *app, req session.RunRequest) (core.SessionOutcome, error) {
	srvCfg := web.DefaultConfig()
	srvCfg.Host = a.cfg.Relay.Host
	srvCfg.Port = a.cfg.Relay.Port
	srvCfg.CORSOrigins = a.cfg.Relay.CORSOrigins
	srvCfg.Heartbeat = config.MustDuration(a.cfg.Relay.Heartbeat)

	server := web.New(srvCfg, a.logger.Logger,
		web.WithEventBus(a.bus),
		web.WithStatus(a.session))
	if err := server.Start(); err != nil {
		return core.SessionOutcome{}, err
	}

	var outcome core.SessionOutcome
	runDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(runDone)
		outcome = a.session.Run(gctx, req)
		return nil
	})
	g.Go(func() error {
		select {
		case <-runDone:
		case <-gctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("stopping relay: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		a.logger.Warn("progress relay", "error", err)
	}
	return outcome, nil
}

// report prints the final step table or JSON summary.
func (a *app) report(outcome core.SessionOutcome) error {
	switch a.mode {
	case render.ModeJSON:
		return a.printJSON(struct {
			Outcome core.SessionOutcome       `json:"outcome"`
			DraftID int64                     `json:"draft_id"`
			Steps   []core.Step               `json:"steps"`
			Edited  core.EditedAnalysisValues `json:"edited_fields"`
		}{outcome, a.session.DraftID(), a.session.Steps(), a.session.Edited()})
	case render.ModeQuiet:
		return nil
	default:
		render.Steps(a.out, a.session.Steps(), a.color)
		return nil
	}
}

