package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bankrecon/bankrecon/internal/api/handlers"
	"github.com/bankrecon/bankrecon/internal/api/middleware"
	"github.com/bankrecon/bankrecon/internal/application/reconcile"
	"github.com/bankrecon/bankrecon/internal/application/service"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config       Config
	router       chi.Router
	httpServer   *http.Server
	logger       *slog.Logger
	engine       *reconcile.Engine
	matchService *service.MatchService
}

// NewServer creates a new API server.
// If matchService is nil, background jobs (auto-match?async=true and /api/jobs)
// are not available.
func NewServer(cfg Config, engine *reconcile.Engine, matchService *service.MatchService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:       cfg,
		router:       chi.NewRouter(),
		logger:       logger,
		engine:       engine,
		matchService: matchService,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	// CORS
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", handlers.UserHeader},
	}
	s.router.Use(middleware.CORS(corsConfig))

	// Request logging
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Accounts and ingestion
		accounts := handlers.NewAccountsHandler(s.engine, s.logger)
		r.Get("/accounts", accounts.List)
		r.Post("/accounts", accounts.Register)
		r.Post("/accounts/{accountID}/bank-movements", accounts.ImportBankMovements)
		r.Post("/accounting-movements", accounts.ImportAccountingMovements)

		// Matching
		matches := handlers.NewMatchesHandler(s.engine, s.logger)
		r.Get("/accounts/{accountID}/unmatched", matches.Unmatched)
		r.Get("/bank-movements/{id}/suggestions", matches.Suggestions)
		r.Post("/matches/preview", matches.Preview)
		r.Post("/matches", matches.Apply)
		r.Post("/reconciliations/{id}/reverse", matches.Reverse)

		autoMatch := handlers.NewAutoMatchHandler(s.engine, s.matchService, s.logger)
		r.Post("/accounts/{accountID}/auto-match", autoMatch.Run)

		// Adjustments
		adjustments := handlers.NewAdjustmentsHandler(s.engine, s.logger)
		r.Get("/accounts/{accountID}/adjustments", adjustments.Detect)
		r.Post("/accounts/{accountID}/adjustments/apply", adjustments.Apply)

		// Reconciliation ledger
		recs := handlers.NewReconciliationsHandler(s.engine, s.logger)
		r.Get("/accounts/{accountID}/reconciliations", recs.List)
		r.Get("/accounts/{accountID}/summary", recs.Summary)
		r.Get("/reconciliations/{id}", recs.Get)

		// Matching runs (historical)
		runs := handlers.NewRunsHandler(s.engine, s.logger)
		r.Get("/runs", runs.List)
		r.Get("/runs/{id}", runs.Get)

		// Background jobs (live)
		if s.matchService != nil {
			jobs := handlers.NewJobsHandler(s.matchService, s.logger)
			r.Get("/jobs", jobs.List)
			r.Get("/jobs/{jobID}", jobs.Get)
			r.Delete("/jobs/{jobID}", jobs.Cancel)
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
