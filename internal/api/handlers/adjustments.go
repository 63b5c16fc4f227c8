package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bankrecon/bankrecon/internal/api/dto"
	"github.com/bankrecon/bankrecon/internal/application/reconcile"
)

// AdjustmentsHandler handles detection and posting of bank-only items.
type AdjustmentsHandler struct {
	*Base
}

// NewAdjustmentsHandler creates a new adjustments handler.
func NewAdjustmentsHandler(engine *reconcile.Engine, logger *slog.Logger) *AdjustmentsHandler {
	return &AdjustmentsHandler{Base: NewBase(engine, logger)}
}

// Detect handles GET /api/accounts/{accountID}/adjustments?from&to.
func (h *AdjustmentsHandler) Detect(w http.ResponseWriter, r *http.Request) {
	period, err := ParseRangeQuery(r)
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	proposals, err := h.engine.Detect(r.Context(), chi.URLParam(r, "accountID"), period)
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	response := dto.AdjustmentListResponse{
		Proposals: make([]dto.AdjustmentProposalResponse, 0, len(proposals)),
		Count:     len(proposals),
	}
	for _, p := range proposals {
		response.Proposals = append(response.Proposals, toProposalResponse(p))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Apply handles POST /api/accounts/{accountID}/adjustments/apply. Each
// movement succeeds or fails on its own; the response lists both.
func (h *AdjustmentsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplyAdjustmentsRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	result, err := h.engine.ApplyAdjustmentsFor(r.Context(), chi.URLParam(r, "accountID"), req.BankMovementIDs, req.Notes, ActingUser(r, req.User))
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toApplyAdjustmentsResponse(result))
}
