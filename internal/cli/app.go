package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bankrecon/bankrecon/internal/application/reconcile"
	"github.com/bankrecon/bankrecon/internal/infrastructure/config"
	"github.com/bankrecon/bankrecon/internal/infrastructure/logging"
	"github.com/bankrecon/bankrecon/internal/infrastructure/storage"
)

// rootOptions are the persistent flags every command shares.
type rootOptions struct {
	configFile string
	dbPath     string
	verbose    bool
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if o.configFile != "" {
		loaded, err := config.Load(o.configFile)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", o.configFile, err)
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrEnv()
	}

	if o.dbPath != "" {
		cfg.Storage.DatabasePath = o.dbPath
	}
	if o.verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	return cfg, nil
}

// app is an open store with the engine over it.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *storage.Storage
	engine *reconcile.Engine
}

// open loads configuration, opens the database (running pending
// migrations) and registers the configured bank accounts. Logs go to the
// command's stderr so stdout carries only command output.
func (o *rootOptions) open(cmd *cobra.Command) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLoggerTo(cmd.ErrOrStderr(), cfg.Observability.Logging)

	store, err := storage.Open(cmd.Context(), cfg.Storage.DatabasePath, logger.With("system", "storage"))
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Storage.DatabasePath, err)
	}

	engine, err := reconcile.New(store, reconcile.Options{
		Matcher:         cfg.Matching,
		Rules:           cfg.Adjustments.Rules,
		DefaultAccounts: cfg.Adjustments.DefaultAccounts,
		Accounts:        cfg.Adjustments.Accounts,
		Logger:          logger.With("system", "engine"),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	for i := range cfg.BankAccounts {
		if err := engine.RegisterAccount(cmd.Context(), &cfg.BankAccounts[i]); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	return &app{cfg: cfg, logger: logger, store: store, engine: engine}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
}
