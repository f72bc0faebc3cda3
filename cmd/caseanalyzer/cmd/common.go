package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/legaldb/caseanalyzer/internal/adapters/draftstore"
	"github.com/legaldb/caseanalyzer/internal/backend"
	"github.com/legaldb/caseanalyzer/internal/config"
	"github.com/legaldb/caseanalyzer/internal/events"
	"github.com/legaldb/caseanalyzer/internal/logging"
	"github.com/legaldb/caseanalyzer/internal/recovery"
	"github.com/legaldb/caseanalyzer/internal/render"
	"github.com/legaldb/caseanalyzer/internal/session"
)

// app holds the wiring shared by every command that talks to the backend.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	client    *backend.Client
	store     *draftstore.SQLiteStore
	bus       *events.EventBus
	session   *session.Session
	recoverer *recovery.Recoverer
	mode      render.OutputMode
	color     bool
	out       io.Writer
	logFile   *os.File
}

// loadConfig loads and validates configuration using the global viper
// instance, which carries the flag bindings.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// newApp builds the backend client, event bus, optional draft cache and
// a fresh session.
func newApp(cmd *cobra.Command, withStore bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, out: cmd.OutOrStdout()}

	logOut := io.Writer(cmd.ErrOrStderr())
	if cfg.Log.File != "" {
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, err
		}
		a.logFile = f
		logOut = f
	}
	a.logger = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: logOut,
	})

	detector := render.NewDetector().NoColor(noColor)
	if output != "" {
		detector.ForceMode(render.ParseOutputMode(output))
	}
	if quiet {
		detector.ForceMode(render.ModeQuiet)
	}
	a.mode = detector.Detect()
	a.color = detector.ShouldUseColor()

	a.client = backend.New(cfg.Backend.BaseURL, config.MustDuration(cfg.Backend.RequestTimeout))
	a.client.BearerToken = cfg.Backend.Token
	a.client.Logger = a.logger.Logger

	a.bus = events.New(cfg.Analysis.EventBuffer)

	opts := []session.Option{
		session.WithStorage(a.client),
		session.WithEventBus(a.bus),
		session.WithLogger(a.logger),
		session.WithIdleTimeout(config.MustDuration(cfg.Analysis.IdleTimeout)),
	}
	if withStore && cfg.Store.Enabled {
		store, err := draftstore.NewSQLiteStore(cfg.Store.Path,
			draftstore.WithRetry(cfg.Store.BusyRetries, config.MustDuration(cfg.Store.RetryWait)))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening draft cache: %w", err)
		}
		a.store = store
		opts = append(opts, session.WithSnapshotCache(store))
	}

	a.session = session.New(a.client, opts...)
	a.recoverer = recovery.NewRecoverer(a.client,
		recovery.NewReconciler(a.session, a.logger), a.bus, a.session.ID(), a.logger)
	return a, nil
}

// Close releases the cache, the bus and the log file.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing draft cache", "error", err)
		}
	}
	if a.bus != nil {
		a.bus.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// requireStore fails when the local cache is disabled.
func (a *app) requireStore() error {
	if a.store == nil {
		return errors.New("draft cache is disabled (store.enabled=false)")
	}
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// parseID parses a positive numeric id argument.
func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, arg)
	}
	return id, nil
}
