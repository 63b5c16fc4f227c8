package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bankrecon/bankrecon/internal/api/dto"
	"github.com/bankrecon/bankrecon/internal/application/reconcile"
)

// RunsHandler handles matching run-related HTTP requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(engine *reconcile.Engine, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{Base: NewBase(engine, logger)}
}

// List handles GET /api/runs - returns recent matching runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", dto.DefaultRunListLimit)

	runs, err := h.engine.Runs(r.Context(), limit)
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	response := dto.MatchingRunListResponse{
		Runs:  make([]dto.MatchingRunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toMatchingRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a single matching run.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.engine.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toMatchingRunResponse(run))
}
