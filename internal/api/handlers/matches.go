package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bankrecon/bankrecon/internal/api/dto"
	"github.com/bankrecon/bankrecon/internal/application/reconcile"
	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// MatchesHandler handles the matching workflow: open work, suggestions,
// preview, apply and reverse.
type MatchesHandler struct {
	*Base
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(engine *reconcile.Engine, logger *slog.Logger) *MatchesHandler {
	return &MatchesHandler{Base: NewBase(engine, logger)}
}

// Unmatched handles GET /api/accounts/{accountID}/unmatched?from&to.
func (h *MatchesHandler) Unmatched(w http.ResponseWriter, r *http.Request) {
	period, err := ParseRangeQuery(r)
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	open, err := h.engine.ListUnmatched(r.Context(), chi.URLParam(r, "accountID"), period)
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.UnmatchedResponse{
		BankMovements:       toBankMovementResponses(open.BankMovements),
		AccountingMovements: toAccountingMovementResponses(open.AccountingMovements),
		BankCount:           len(open.BankMovements),
		AccountingCount:     len(open.AccountingMovements),
	})
}

// Suggestions handles GET /api/bank-movements/{id}/suggestions?limit.
func (h *MatchesHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	candidates, err := h.engine.Suggest(r.Context(), id, ParseIntParam(r, "limit", 0))
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	response := dto.SuggestionListResponse{
		BankMovementID: id,
		Suggestions:    make([]dto.SuggestionResponse, 0, len(candidates)),
		Count:          len(candidates),
	}
	for _, c := range candidates {
		response.Suggestions = append(response.Suggestions, toSuggestionResponse(c))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Preview handles POST /api/matches/preview.
func (h *MatchesHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req dto.PreviewRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	preview, err := h.engine.Preview(r.Context(), req.BankMovementID, req.AccountingMovementIDs)
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toPreviewResponse(preview))
}

// Apply handles POST /api/matches - commits a manual match.
func (h *MatchesHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplyMatchRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	rec, err := h.engine.Apply(r.Context(), reconcile.ApplyRequest{
		BankMovementID:  req.BankMovementID,
		AccountingIDs:   req.AccountingMovementIDs,
		Type:            model.TypeManual,
		Notes:           req.Notes,
		ActingUser:      ActingUser(r, req.User),
		AllowUnbalanced: req.AllowUnbalanced,
	})
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, toReconciliationResponse(rec))
}

// Reverse handles POST /api/reconciliations/{id}/reverse.
func (h *MatchesHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	var req dto.ReverseRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.engine.Reverse(r.Context(), id, req.Reason, ActingUser(r, req.User)); err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	detail, err := h.engine.Detail(r.Context(), id)
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toReconciliationResponse(detail.Reconciliation))
}
