// Package service runs automatic matching as background jobs for the HTTP
// API. At most one job runs per bank account at a time.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bankrecon/bankrecon/internal/application/reconcile"
	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// JobStatus represents the current state of a matching job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job staleness thresholds
const (
	// DefaultJobStaleThreshold is how long a job can go without progress
	// updates before it is considered hung.
	DefaultJobStaleThreshold = 30 * time.Minute

	// DefaultJobMaxDuration is the longest a job may run before it is
	// forcefully marked as failed.
	DefaultJobMaxDuration = 2 * time.Hour

	// DefaultJobRetention is how long finished jobs stay queryable.
	DefaultJobRetention = 24 * time.Hour
)

// ErrJobRunning is returned when the bank account already has an active job.
var ErrJobRunning = errors.New("automatic matching already running")

// AutoMatcher is the part of the engine the service drives.
type AutoMatcher interface {
	Account(ctx context.Context, id string) (*model.BankAccount, error)
	RunAutomatic(ctx context.Context, req reconcile.AutoRequest) (*reconcile.AutoResult, error)
}

// JobRequest holds parameters for starting a matching job.
type JobRequest struct {
	BankAccountID string
	Period        model.DateRange
	ActingUser    string
}

// JobProgress holds real-time progress information.
type JobProgress struct {
	CurrentPhase string    `json:"current_phase"` // "pending", "matching", "completed", "failed", "cancelled"
	Total        int       `json:"total"`
	Processed    int       `json:"processed"`
	Applied      int       `json:"applied"`
	Skipped      int       `json:"skipped"`
	LastUpdate   time.Time `json:"last_update"`
}

// Job represents a running or finished automatic matching job.
type Job struct {
	ID            string
	BankAccountID string
	Status        JobStatus
	Request       JobRequest
	StartedAt     time.Time
	CompletedAt   *time.Time
	Progress      JobProgress
	Result        *reconcile.AutoResult
	Error         error
	cancelFunc    context.CancelFunc
}

// MatchService manages background automatic matching jobs.
type MatchService struct {
	engine AutoMatcher
	logger *slog.Logger

	jobs      map[string]*Job
	jobsMutex sync.RWMutex

	// active maps a bank account to the ID of its running job
	active      map[string]string
	activeMutex sync.Mutex

	// running counts runJob goroutines that have not returned
	running sync.WaitGroup

	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewMatchService creates a new match service.
func NewMatchService(engine AutoMatcher, logger *slog.Logger) *MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchService{
		engine: engine,
		logger: logger,
		jobs:   make(map[string]*Job),
		active: make(map[string]string),
	}
}

// StartAutoMatch starts a new automatic matching job.
// The passed context is only used to look up the account. The job itself
// runs on a background context so it outlives the HTTP request; use
// CancelJob to stop it.
func (s *MatchService) StartAutoMatch(ctx context.Context, req JobRequest) (*Job, error) {
	if req.BankAccountID == "" {
		return nil, model.Invalidf("bank account is required")
	}
	if _, err := s.engine.Account(ctx, req.BankAccountID); err != nil {
		return nil, err
	}

	jobID := s.generateJobID(req.BankAccountID)
	if !s.tryLockAccount(req.BankAccountID, jobID) {
		return nil, fmt.Errorf("%w for bank account %s", ErrJobRunning, req.BankAccountID)
	}

	jobCtx, cancel := context.WithCancel(context.Background())

	now := time.Now()
	job := &Job{
		ID:            jobID,
		BankAccountID: req.BankAccountID,
		Status:        StatusPending,
		Request:       req,
		StartedAt:     now,
		cancelFunc:    cancel,
		Progress:      JobProgress{CurrentPhase: "pending", LastUpdate: now},
	}

	s.jobsMutex.Lock()
	s.jobs[jobID] = job
	started := s.snapshot(job)
	s.jobsMutex.Unlock()

	s.running.Add(1)
	go s.runJob(jobCtx, job)

	s.logger.Info("matching job started",
		"job_id", jobID,
		"bank_account_id", req.BankAccountID,
	)

	return started, nil
}

// GetJob retrieves a copy of a job by ID.
func (s *MatchService) GetJob(jobID string) (*Job, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, model.NotFoundf("job %s", jobID)
	}
	return s.snapshot(job), nil
}

// ListJobs returns copies of all jobs, newest first. With activeOnly set
// only pending and running jobs are returned.
func (s *MatchService) ListJobs(activeOnly bool) []*Job {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if activeOnly && !job.isActive() {
			continue
		}
		jobs = append(jobs, s.snapshot(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].StartedAt.Equal(jobs[j].StartedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	return jobs
}

// CancelJob cancels a pending or running job. Matches already applied by
// the job stay applied.
func (s *MatchService) CancelJob(jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return model.NotFoundf("job %s", jobID)
	}
	if !job.isActive() {
		return model.Invalidf("job cannot be cancelled: status=%s", job.Status)
	}

	job.cancelFunc()
	now := time.Now()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	job.Progress.CurrentPhase = "cancelled"
	job.Progress.LastUpdate = now

	s.logger.Info("matching job cancelled", "job_id", jobID)
	return nil
}

// Wait blocks until the job is no longer active or ctx is done.
func (s *MatchService) Wait(ctx context.Context, jobID string) (*Job, error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		job, err := s.GetJob(jobID)
		if err != nil {
			return nil, err
		}
		if !job.isActive() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Shutdown cancels every active job and waits until their goroutines have
// returned, so the store can be closed afterwards. Matches already applied
// stay applied.
func (s *MatchService) Shutdown(ctx context.Context) error {
	for _, job := range s.ListJobs(true) {
		if err := s.CancelJob(job.ID); err != nil && !errors.Is(err, model.ErrInvalidRequest) && !errors.Is(err, model.ErrNotFound) {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for matching jobs: %w", ctx.Err())
	}
}

func (s *MatchService) runJob(ctx context.Context, job *Job) {
	defer s.running.Done()
	s.updateJobStatus(job.ID, StatusRunning, "matching")

	result, err := s.engine.RunAutomatic(ctx, reconcile.AutoRequest{
		BankAccountID: job.Request.BankAccountID,
		Period:        job.Request.Period,
		ActingUser:    job.Request.ActingUser,
		Progress: func(p reconcile.AutoProgress) {
			s.updateJobProgress(job.ID, p)
		},
	})
	// Released before the outcome is recorded so a caller that sees the
	// job finish can start the next one.
	s.unlockAccount(job.BankAccountID, job.ID)

	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			// Already marked as cancelled; keep what was applied.
			s.recordResult(job.ID, result)
			return
		}
		s.failJob(job.ID, result, err)
		return
	}

	s.completeJob(job.ID, result)
}

func (s *MatchService) updateJobStatus(jobID string, status JobStatus, phase string) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && job.isActive() {
		job.Status = status
		job.Progress.CurrentPhase = phase
		job.Progress.LastUpdate = time.Now()
	}
}

func (s *MatchService) updateJobProgress(jobID string, p reconcile.AutoProgress) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && job.isActive() {
		job.Progress.Total = p.Total
		job.Progress.Processed = p.Processed
		job.Progress.Applied = p.Applied
		job.Progress.Skipped = p.Skipped
		job.Progress.LastUpdate = time.Now()
	}
}

func (s *MatchService) recordResult(jobID string, result *reconcile.AutoResult) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && result != nil {
		job.Result = result
		job.Progress.Applied = result.Applied
		job.Progress.Skipped = result.Skipped
	}
}

func (s *MatchService) completeJob(jobID string, result *reconcile.AutoResult) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || !job.isActive() {
		return
	}
	now := time.Now()
	job.Status = StatusCompleted
	job.CompletedAt = &now
	job.Result = result
	job.Progress.CurrentPhase = "completed"
	job.Progress.Applied = result.Applied
	job.Progress.Skipped = result.Skipped
	job.Progress.LastUpdate = now
	s.logger.Info("matching job completed",
		"job_id", jobID,
		"run_id", result.RunID,
		"applied", result.Applied,
		"skipped", result.Skipped,
	)
}

func (s *MatchService) failJob(jobID string, result *reconcile.AutoResult, err error) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || !job.isActive() {
		return
	}
	now := time.Now()
	job.Status = StatusFailed
	job.CompletedAt = &now
	job.Result = result
	job.Error = err
	job.Progress.CurrentPhase = "failed"
	job.Progress.LastUpdate = now
	s.logger.Error("matching job failed", "job_id", jobID, "error", err)
}

// tryLockAccount claims the bank account for jobID.
func (s *MatchService) tryLockAccount(accountID, jobID string) bool {
	s.activeMutex.Lock()
	defer s.activeMutex.Unlock()

	if _, busy := s.active[accountID]; busy {
		return false
	}
	s.active[accountID] = jobID
	return true
}

// unlockAccount releases the claim if jobID still holds it. A job marked
// stale may have lost its claim to a newer job already.
func (s *MatchService) unlockAccount(accountID, jobID string) {
	s.activeMutex.Lock()
	defer s.activeMutex.Unlock()

	if s.active[accountID] == jobID {
		delete(s.active, accountID)
	}
}

func (s *MatchService) generateJobID(accountID string) string {
	return fmt.Sprintf("auto-%s-%d", accountID, time.Now().UnixNano())
}

func (s *MatchService) snapshot(job *Job) *Job {
	cp := *job
	cp.cancelFunc = nil
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func (j *Job) isActive() bool {
	return j.Status == StatusPending || j.Status == StatusRunning
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (s *MatchService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, job := range s.jobs {
		if job.isActive() {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old matching jobs", "removed", removed)
	}
	return removed
}

// MarkStaleJobsAsFailed marks active jobs as failed when they have run
// longer than maxDuration or reported no progress for staleThreshold.
// The account claim is released so a new job can start.
func (s *MatchService) MarkStaleJobsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0

	for id, job := range s.jobs {
		if !job.isActive() {
			continue
		}

		reason := ""
		switch {
		case now.Sub(job.StartedAt) > maxDuration:
			reason = fmt.Sprintf("exceeded max duration of %v (started %v ago)", maxDuration, now.Sub(job.StartedAt).Round(time.Second))
		case now.Sub(job.Progress.LastUpdate) > staleThreshold:
			reason = fmt.Sprintf("no progress update for %v (threshold: %v)", now.Sub(job.Progress.LastUpdate).Round(time.Second), staleThreshold)
		default:
			continue
		}

		if job.cancelFunc != nil {
			job.cancelFunc()
		}
		lastUpdate := job.Progress.LastUpdate
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = fmt.Errorf("job marked as stale: %s", reason)
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now

		s.unlockAccount(job.BankAccountID, id)

		s.logger.Warn("marked stale job as failed",
			"job_id", id,
			"bank_account_id", job.BankAccountID,
			"reason", reason,
			"started_at", job.StartedAt,
			"last_update", lastUpdate,
		)
		marked++
	}

	return marked
}

// IsJobStale checks if a specific job is considered stale.
func (s *MatchService) IsJobStale(jobID string, staleThreshold, maxDuration time.Duration) bool {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists || !job.isActive() {
		return false
	}

	now := time.Now()
	return now.Sub(job.StartedAt) > maxDuration || now.Sub(job.Progress.LastUpdate) > staleThreshold
}

// StartBackgroundCleanup periodically marks stale jobs as failed and drops
// finished jobs past DefaultJobRetention. Call StopBackgroundCleanup to stop it.
func (s *MatchService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		s.logger.Info("background job cleanup started",
			"check_interval", checkInterval,
			"stale_threshold", DefaultJobStaleThreshold,
			"max_duration", DefaultJobMaxDuration,
		)

		for {
			select {
			case <-s.cleanupStop:
				s.logger.Info("background job cleanup stopped")
				return
			case <-ticker.C:
				if n := s.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration); n > 0 {
					s.logger.Info("marked stale jobs as failed", "count", n)
				}
				s.CleanupOldJobs(DefaultJobRetention)
			}
		}
	}()
}

// StopBackgroundCleanup stops the cleanup goroutine and waits for it to exit.
func (s *MatchService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}
	close(s.cleanupStop)
	<-s.cleanupDone
	s.cleanupStop = nil
}
