package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bankrecon/bankrecon/internal/api/dto"
	"github.com/bankrecon/bankrecon/internal/application/reconcile"
	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// ReconciliationsHandler serves the reconciliation ledger.
type ReconciliationsHandler struct {
	*Base
}

// NewReconciliationsHandler creates a new reconciliations handler.
func NewReconciliationsHandler(engine *reconcile.Engine, logger *slog.Logger) *ReconciliationsHandler {
	return &ReconciliationsHandler{Base: NewBase(engine, logger)}
}

// List handles GET /api/accounts/{accountID}/reconciliations
// ?from&to&type&status&limit&offset.
func (h *ReconciliationsHandler) List(w http.ResponseWriter, r *http.Request) {
	period, err := ParseRangeQuery(r)
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}
	q := r.URL.Query()

	page, err := h.engine.History(r.Context(), chi.URLParam(r, "accountID"), reconcile.HistoryFilter{
		Period: period,
		Type:   model.ReconciliationType(q.Get("type")),
		Status: model.ReconciliationStatus(q.Get("status")),
		Limit:  ParseIntParam(r, "limit", dto.DefaultHistoryLimit),
		Offset: ParseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	response := dto.ReconciliationListResponse{
		Reconciliations: make([]dto.ReconciliationResponse, 0, len(page.Items)),
		TotalCount:      page.TotalCount,
		Limit:           page.Limit,
		Offset:          page.Offset,
	}
	for _, rec := range page.Items {
		response.Reconciliations = append(response.Reconciliations, toReconciliationResponse(rec))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/reconciliations/{id} - returns the record with its movements.
func (h *ReconciliationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.engine.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ReconciliationDetailResponse{
		Reconciliation:      toReconciliationResponse(detail.Reconciliation),
		BankMovement:        toBankMovementResponse(detail.BankMovement),
		AccountingMovements: toAccountingMovementResponses(detail.AccountingMovements),
	})
}

// Summary handles GET /api/accounts/{accountID}/summary?from&to.
func (h *ReconciliationsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	period, err := ParseRangeQuery(r)
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	summary, err := h.engine.Summary(r.Context(), chi.URLParam(r, "accountID"), period)
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toSummaryResponse(summary))
}
