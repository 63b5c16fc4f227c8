package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankrecon/bankrecon/internal/application/reconcile"
	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// fakeEngine runs automatic matching until released or cancelled.
type fakeEngine struct {
	mu       sync.Mutex
	accounts map[string]bool
	release  chan struct{}
	err      error
	calls    []reconcile.AutoRequest
	finished int
}

func newFakeEngine(accounts ...string) *fakeEngine {
	f := &fakeEngine{accounts: make(map[string]bool), release: make(chan struct{})}
	for _, a := range accounts {
		f.accounts[a] = true
	}
	return f
}

func (f *fakeEngine) Account(_ context.Context, id string) (*model.BankAccount, error) {
	if !f.accounts[id] {
		return nil, model.NotFoundf("bank account %s", id)
	}
	return &model.BankAccount{ID: id, LedgerAccount: "111005"}, nil
}

func (f *fakeEngine) RunAutomatic(ctx context.Context, req reconcile.AutoRequest) (*reconcile.AutoResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.finished++
		f.mu.Unlock()
	}()

	result := &reconcile.AutoResult{RunID: "run-1", ReconciliationIDs: []string{}}
	req.Progress(reconcile.AutoProgress{Total: 3, Processed: 1, Applied: 1})
	result.Applied = 1

	select {
	case <-ctx.Done():
		return result, ctx.Err()
	case <-f.release:
	}
	if f.err != nil {
		return result, f.err
	}
	result.Skipped = 2
	result.ReconciliationIDs = []string{"rec-1"}
	return result, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitFor(t *testing.T, svc *MatchService, jobID string) *Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := svc.Wait(ctx, jobID)
	require.NoError(t, err)
	return job
}

func TestMatchService_StartAutoMatch_Completes(t *testing.T) {
	engine := newFakeEngine("acc-1")
	svc := NewMatchService(engine, testLogger())

	job, err := svc.StartAutoMatch(context.Background(), JobRequest{BankAccountID: "acc-1", ActingUser: "ana"})
	require.NoError(t, err)
	assert.Equal(t, "acc-1", job.BankAccountID)
	assert.Contains(t, []JobStatus{StatusPending, StatusRunning}, job.Status)

	close(engine.release)
	done := waitFor(t, svc, job.ID)

	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, 1, done.Result.Applied)
	assert.Equal(t, 2, done.Result.Skipped)
	assert.Equal(t, "completed", done.Progress.CurrentPhase)
	assert.Equal(t, 3, done.Progress.Total)
	assert.NotNil(t, done.CompletedAt)

	require.Len(t, engine.calls, 1)
	assert.Equal(t, "ana", engine.calls[0].ActingUser)
}

func TestMatchService_StartAutoMatch_UnknownAccount(t *testing.T) {
	svc := NewMatchService(newFakeEngine(), testLogger())

	_, err := svc.StartAutoMatch(context.Background(), JobRequest{BankAccountID: "nope"})

	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, svc.ListJobs(false))
}

func TestMatchService_StartAutoMatch_MissingAccount(t *testing.T) {
	svc := NewMatchService(newFakeEngine(), testLogger())

	_, err := svc.StartAutoMatch(context.Background(), JobRequest{})

	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestMatchService_OneJobPerAccount(t *testing.T) {
	engine := newFakeEngine("acc-1", "acc-2")
	svc := NewMatchService(engine, testLogger())

	first, err := svc.StartAutoMatch(context.Background(), JobRequest{BankAccountID: "acc-1"})
	require.NoError(t, err)

	_, err = svc.StartAutoMatch(context.Background(), JobRequest{BankAccountID: "acc-1"})
	assert.ErrorIs(t, err, ErrJobRunning)

	other, err := svc.StartAutoMatch(context.Background(), JobRequest{BankAccountID: "acc-2"})
	require.NoError(t, err, "other accounts are not blocked")

	close(engine.release)
	waitFor(t, svc, first.ID)
	waitFor(t, svc, other.ID)

	again, err := svc.StartAutoMatch(context.Background(), JobRequest{BankAccountID: "acc-1"})
	require.NoError(t, err, "account is free once the job finishes")
	waitFor(t, svc, again.ID)
}

func TestMatchService_JobFailure(t *testing.T) {
	engine := newFakeEngine("acc-1")
	engine.err = errors.New("database is locked")
	svc := NewMatchService(engine, testLogger())

	job, err := svc.StartAutoMatch(context.Background(), JobRequest{BankAccountID: "acc-1"})
	require.NoError(t, err)
	close(engine.release)

	done := waitFor(t, svc, job.ID)
	assert.Equal(t, StatusFailed, done.Status)
	require.Error(t, done.Error)
	assert.Contains(t, done.Error.Error(), "database is locked")
	require.NotNil(t, done.Result, "partial result is kept")
	assert.Equal(t, 1, done.Result.Applied)
}

func TestMatchService_CancelJob(t *testing.T) {
	engine := newFakeEngine("acc-1")
	svc := NewMatchService(engine, testLogger())

	job, err := svc.StartAutoMatch(context.Background(), JobRequest{BankAccountID: "acc-1"})
	require.NoError(t, err)

	require.NoError(t, svc.CancelJob(job.ID))

	done := waitFor(t, svc, job.ID)
	assert.Equal(t, StatusCancelled, done.Status)

	assert.Eventually(t, func() bool {
		j, err := svc.GetJob(job.ID)
		return err == nil && j.Result != nil && j.Result.Applied == 1
	}, 5*time.Second, 10*time.Millisecond, "applied matches stay recorded")

	err = svc.CancelJob(job.ID)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestMatchService_StartAutoMatch_ReturnsPendingCopy(t *testing.T) {
	engine := newFakeEngine("acc-1")
	svc := NewMatchService(engine, testLogger())

	job, err := svc.StartAutoMatch(context.Background(), JobRequest{BankAccountID: "acc-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, "pending", job.Progress.CurrentPhase)

	job.Status = StatusFailed
	stored, err := svc.GetJob(job.ID)
	require.NoError(t, err)
	assert.NotEqual(t, StatusFailed, stored.Status, "returned job is a copy")

	close(engine.release)
	assert.Equal(t, StatusCompleted, waitFor(t, svc, job.ID).Status)
}

func TestMatchService_Shutdown(t *testing.T) {
	engine := newFakeEngine("acc-1", "acc-2")
	svc := NewMatchService(engine, testLogger())

	first, err := svc.StartAutoMatch(context.Background(), JobRequest{BankAccountID: "acc-1"})
	require.NoError(t, err)
	second, err := svc.StartAutoMatch(context.Background(), JobRequest{BankAccountID: "acc-2"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	engine.mu.Lock()
	assert.Equal(t, 2, engine.finished, "runs have returned before Shutdown does")
	engine.mu.Unlock()

	for _, id := range []string{first.ID, second.ID} {
		job, err := svc.GetJob(id)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, job.Status)
	}
	assert.Empty(t, svc.ListJobs(true))
}

func TestMatchService_Shutdown_SkipsFinishedJobs(t *testing.T) {
	engine := newFakeEngine("acc-1")
	svc := NewMatchService(engine, testLogger())

	job, err := svc.StartAutoMatch(context.Background(), JobRequest{BankAccountID: "acc-1"})
	require.NoError(t, err)
	close(engine.release)
	waitFor(t, svc, job.ID)

	require.NoError(t, svc.Shutdown(context.Background()))

	done, err := svc.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
}

func TestMatchService_CancelJob_NotFound(t *testing.T) {
	svc := NewMatchService(newFakeEngine(), testLogger())

	err := svc.CancelJob("non-existent")

	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMatchService_GetJob_NotFound(t *testing.T) {
	svc := NewMatchService(newFakeEngine(), testLogger())

	_, err := svc.GetJob("non-existent")

	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMatchService_ListJobs(t *testing.T) {
	svc := NewMatchService(newFakeEngine(), testLogger())
	now := time.Now()
	done := now.Add(-time.Minute)

	svc.jobsMutex.Lock()
	svc.jobs["old"] = &Job{ID: "old", Status: StatusCompleted, StartedAt: now.Add(-time.Hour), CompletedAt: &done}
	svc.jobs["new"] = &Job{ID: "new", Status: StatusRunning, StartedAt: now}
	svc.jobsMutex.Unlock()

	all := svc.ListJobs(false)
	require.Len(t, all, 2)
	assert.Equal(t, "new", all[0].ID, "newest first")

	active := svc.ListJobs(true)
	require.Len(t, active, 1)
	assert.Equal(t, "new", active[0].ID)
}

func TestMatchService_IsJobStale(t *testing.T) {
	svc := NewMatchService(newFakeEngine(), testLogger())
	now := time.Now()

	svc.jobsMutex.Lock()
	svc.jobs["completed"] = &Job{ID: "completed", Status: StatusCompleted, StartedAt: now.Add(-3 * time.Hour), Progress: JobProgress{LastUpdate: now.Add(-2 * time.Hour)}}
	svc.jobs["silent"] = &Job{ID: "silent", Status: StatusRunning, StartedAt: now.Add(-10 * time.Minute), Progress: JobProgress{LastUpdate: now.Add(-35 * time.Minute)}}
	svc.jobs["long"] = &Job{ID: "long", Status: StatusRunning, StartedAt: now.Add(-3 * time.Hour), Progress: JobProgress{LastUpdate: now}}
	svc.jobs["healthy"] = &Job{ID: "healthy", Status: StatusRunning, StartedAt: now.Add(-10 * time.Minute), Progress: JobProgress{LastUpdate: now.Add(-5 * time.Minute)}}
	svc.jobsMutex.Unlock()

	tests := []struct {
		id   string
		want bool
	}{
		{"non-existent", false},
		{"completed", false},
		{"silent", true},
		{"long", true},
		{"healthy", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.IsJobStale(tt.id, 30*time.Minute, 2*time.Hour))
		})
	}
}

func TestMatchService_MarkStaleJobsAsFailed(t *testing.T) {
	svc := NewMatchService(newFakeEngine("acc-1"), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.True(t, svc.tryLockAccount("acc-1", "stale-job"))
	svc.jobsMutex.Lock()
	svc.jobs["stale-job"] = &Job{
		ID:            "stale-job",
		BankAccountID: "acc-1",
		Status:        StatusRunning,
		StartedAt:     time.Now().Add(-3 * time.Hour),
		Progress:      JobProgress{LastUpdate: time.Now().Add(-35 * time.Minute)},
		cancelFunc:    cancel,
	}
	svc.jobs["healthy-job"] = &Job{
		ID:        "healthy-job",
		Status:    StatusRunning,
		StartedAt: time.Now().Add(-10 * time.Minute),
		Progress:  JobProgress{LastUpdate: time.Now().Add(-5 * time.Minute)},
	}
	svc.jobsMutex.Unlock()

	marked := svc.MarkStaleJobsAsFailed(30*time.Minute, 2*time.Hour)
	assert.Equal(t, 1, marked)

	job, err := svc.GetJob("stale-job")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	require.Error(t, job.Error)
	assert.Contains(t, job.Error.Error(), "stale")
	assert.Error(t, ctx.Err(), "job context is cancelled")

	healthy, err := svc.GetJob("healthy-job")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, healthy.Status)

	assert.True(t, svc.tryLockAccount("acc-1", "next-job"), "stale job released the account")
	svc.unlockAccount("acc-1", "stale-job")
	assert.False(t, svc.tryLockAccount("acc-1", "third-job"), "late release of the stale job does not free the new claim")
}

func TestMatchService_CleanupOldJobs(t *testing.T) {
	svc := NewMatchService(newFakeEngine(), testLogger())
	old := time.Now().Add(-25 * time.Hour)
	recent := time.Now().Add(-1 * time.Hour)

	svc.jobsMutex.Lock()
	svc.jobs["old-job"] = &Job{ID: "old-job", Status: StatusCompleted, CompletedAt: &old}
	svc.jobs["recent-job"] = &Job{ID: "recent-job", Status: StatusFailed, CompletedAt: &recent}
	svc.jobs["running-job"] = &Job{ID: "running-job", Status: StatusRunning, StartedAt: old}
	svc.jobsMutex.Unlock()

	removed := svc.CleanupOldJobs(24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, err := svc.GetJob("old-job")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.GetJob("recent-job")
	assert.NoError(t, err)
	_, err = svc.GetJob("running-job")
	assert.NoError(t, err)
}

func TestMatchService_BackgroundCleanupStops(t *testing.T) {
	svc := NewMatchService(newFakeEngine(), testLogger())

	svc.StartBackgroundCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	svc.StopBackgroundCleanup()
	svc.StopBackgroundCleanup()
}
