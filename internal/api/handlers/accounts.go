package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bankrecon/bankrecon/internal/api/dto"
	"github.com/bankrecon/bankrecon/internal/application/reconcile"
	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// AccountsHandler handles bank accounts and movement ingestion.
type AccountsHandler struct {
	*Base
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(engine *reconcile.Engine, logger *slog.Logger) *AccountsHandler {
	return &AccountsHandler{Base: NewBase(engine, logger)}
}

// List handles GET /api/accounts - returns registered bank accounts.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.engine.Accounts(r.Context())
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	response := dto.AccountListResponse{
		Accounts: make([]dto.AccountResponse, 0, len(accounts)),
		Count:    len(accounts),
	}
	for _, a := range accounts {
		response.Accounts = append(response.Accounts, toAccountResponse(a))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Register handles POST /api/accounts - creates or updates a bank account.
func (h *AccountsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterAccountRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.ID == "" || req.LedgerAccount == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("id and ledger_account are required"))
		return
	}

	account := &model.BankAccount{ID: req.ID, Name: req.Name, LedgerAccount: req.LedgerAccount}
	if err := h.engine.RegisterAccount(r.Context(), account); err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

// ImportBankMovements handles POST /api/accounts/{accountID}/bank-movements.
func (h *AccountsHandler) ImportBankMovements(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req dto.ImportBankMovementsRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	movements := make([]*model.BankMovement, 0, len(req.Movements))
	for _, in := range req.Movements {
		date, err := ParseDate(in.Date)
		if err != nil {
			h.WriteEngineError(w, r, err)
			return
		}
		m := &model.BankMovement{
			BankAccountID:  accountID,
			Date:           date,
			Amount:         in.Amount,
			Description:    in.Description,
			Reference:      in.Reference,
			RunningBalance: in.RunningBalance,
		}
		if err := m.Validate(); err != nil {
			h.WriteEngineError(w, r, err)
			return
		}
		movements = append(movements, m)
	}

	if err := h.engine.ImportBankMovements(r.Context(), accountID, movements); err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	response := dto.ImportResponse{IDs: make([]int64, 0, len(movements)), Count: len(movements)}
	for _, m := range movements {
		response.IDs = append(response.IDs, m.ID)
	}
	h.WriteJSON(w, http.StatusCreated, response)
}

// ImportAccountingMovements handles POST /api/accounting-movements.
func (h *AccountsHandler) ImportAccountingMovements(w http.ResponseWriter, r *http.Request) {
	var req dto.ImportAccountingMovementsRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	movements := make([]*model.AccountingMovement, 0, len(req.Movements))
	for _, in := range req.Movements {
		date, err := ParseDate(in.Date)
		if err != nil {
			h.WriteEngineError(w, r, err)
			return
		}
		if date.IsZero() {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError("accounting movement date is required"))
			return
		}
		m := &model.AccountingMovement{
			LedgerAccount: in.LedgerAccount,
			Document:      in.Document,
			Date:          date,
			Debit:         in.Debit,
			Credit:        in.Credit,
			Concept:       in.Concept,
		}
		if err := m.Validate(); err != nil {
			h.WriteEngineError(w, r, err)
			return
		}
		movements = append(movements, m)
	}

	if err := h.engine.ImportAccountingMovements(r.Context(), movements); err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	response := dto.ImportResponse{IDs: make([]int64, 0, len(movements)), Count: len(movements)}
	for _, m := range movements {
		response.IDs = append(response.IDs, m.ID)
	}
	h.WriteJSON(w, http.StatusCreated, response)
}
