package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bankrecon/bankrecon/internal/api/dto"
	"github.com/bankrecon/bankrecon/internal/application/reconcile"
	"github.com/bankrecon/bankrecon/internal/application/service"
)

// AutoMatchHandler runs automatic matching, inline or as a background job.
type AutoMatchHandler struct {
	*Base
	jobs *service.MatchService
}

// NewAutoMatchHandler creates a new auto-match handler. jobs may be nil, in
// which case only synchronous runs are available.
func NewAutoMatchHandler(engine *reconcile.Engine, jobs *service.MatchService, logger *slog.Logger) *AutoMatchHandler {
	return &AutoMatchHandler{Base: NewBase(engine, logger), jobs: jobs}
}

// Run handles POST /api/accounts/{accountID}/auto-match[?async=true].
func (h *AutoMatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req dto.AutoMatchRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	period, err := ParseRange(req.From, req.To)
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}
	accountID := chi.URLParam(r, "accountID")
	user := ActingUser(r, req.User)

	if ParseBoolParam(r, "async", false) {
		h.start(w, r, service.JobRequest{BankAccountID: accountID, Period: period, ActingUser: user})
		return
	}

	result, err := h.engine.RunAutomatic(r.Context(), reconcile.AutoRequest{
		BankAccountID: accountID,
		Period:        period,
		ActingUser:    user,
	})
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toAutoMatchResponse(result))
}

func (h *AutoMatchHandler) start(w http.ResponseWriter, r *http.Request, req service.JobRequest) {
	if h.jobs == nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("background matching is not enabled"))
		return
	}

	job, err := h.jobs.StartAutoMatch(r.Context(), req)
	if errors.Is(err, service.ErrJobRunning) {
		h.WriteError(w, http.StatusConflict, dto.NewAPIError(dto.ErrCodeJobRunning, err.Error()))
		return
	}
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusAccepted, dto.StartJobResponse{
		JobID:         job.ID,
		BankAccountID: job.BankAccountID,
		Status:        string(job.Status),
	})
}

// JobsHandler reports on background matching jobs.
type JobsHandler struct {
	*Base
	jobs *service.MatchService
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(jobs *service.MatchService, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{Base: NewBase(nil, logger), jobs: jobs}
}

// List handles GET /api/jobs[?active=true].
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.ListJobs(ParseBoolParam(r, "active", false))

	response := dto.JobListResponse{
		Jobs:  make([]dto.JobResponse, 0, len(jobs)),
		Count: len(jobs),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toJobResponse(job))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/jobs/{jobID}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		h.WriteEngineError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

// Cancel handles DELETE /api/jobs/{jobID}.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.CancelJob(chi.URLParam(r, "jobID")); err != nil {
		status := StatusFor(err)
		if status == http.StatusBadRequest {
			status = http.StatusConflict
		}
		h.WriteError(w, status, dto.FromError(err))
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "matching job cancelled"})
}

func toJobResponse(job *service.Job) dto.JobResponse {
	response := dto.JobResponse{
		JobID:         job.ID,
		BankAccountID: job.BankAccountID,
		Status:        string(job.Status),
		StartedAt:     job.StartedAt.UTC().Format(time.RFC3339),
		CompletedAt:   formatTimePtr(job.CompletedAt),
		Progress: dto.JobProgressResponse{
			CurrentPhase: job.Progress.CurrentPhase,
			Total:        job.Progress.Total,
			Processed:    job.Progress.Processed,
			Applied:      job.Progress.Applied,
			Skipped:      job.Progress.Skipped,
			LastUpdate:   job.Progress.LastUpdate.UTC().Format(time.RFC3339),
		},
	}
	if job.Result != nil {
		result := toAutoMatchResponse(job.Result)
		response.Result = &result
	}
	if job.Error != nil {
		msg := job.Error.Error()
		response.Error = &msg
	}
	return response
}
