package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bankrecon/bankrecon/internal/api"
	"github.com/bankrecon/bankrecon/internal/application/service"
)

const jobCleanupInterval = 5 * time.Minute

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default from config)")

	return cmd
}

// runServe runs the API server until SIGINT or SIGTERM.
func runServe(cmd *cobra.Command, opts *rootOptions, port int) error {
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger.With("system", "api")

	apiCfg := api.Config{
		Port:           a.cfg.Server.Port,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	}
	if port > 0 {
		apiCfg.Port = port
	}
	if len(apiCfg.AllowedOrigins) == 0 {
		apiCfg.AllowedOrigins = api.DefaultConfig().AllowedOrigins
	}

	jobs := service.NewMatchService(a.engine, a.logger.With("system", "auto"))
	jobs.StartBackgroundCleanup(jobCleanupInterval)
	defer jobs.StopBackgroundCleanup()

	server := api.NewServer(apiCfg, a.engine, jobs, logger)

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		// Running jobs write to the store, which closes once serve returns
		if err := jobs.Shutdown(ctx); err != nil {
			logger.Error("matching jobs did not stop", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
