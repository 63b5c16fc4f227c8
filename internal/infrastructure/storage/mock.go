package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
// It enforces the same linking rules as the SQLite store.
type MockRepository struct {
	mu sync.Mutex

	accounts        map[string]*model.BankAccount
	bank            map[int64]*model.BankMovement
	ledger          map[int64]*model.AccountingMovement
	reconciliations map[string]*model.Reconciliation
	recOrder        []string
	runs            map[string]*model.MatchingRun
	runOrder        []string
	activeBank      map[int64]string // movement ID -> active reconciliation ID
	activeLedger    map[int64]string
	nextBankID      int64
	nextLedgerID    int64

	// Hooks for test assertions
	CommitCalls  int
	LastCommit   *Commit
	ReverseCalls int

	// Error injection for testing error paths
	CommitErr        error
	ReverseErr       error
	InsertErr        error
	StartRunErr      error
	CompleteRunErr   error
	ListBankErr      error
	ListLedgerErr    error
	ListReconErr     error
	CommitErrOnCalls map[int]error // Fails only the Nth commit (1-based)
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	m := &MockRepository{}
	m.Reset()
	return m
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// Reset clears all data and flags (for reuse between tests)
func (m *MockRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = make(map[string]*model.BankAccount)
	m.bank = make(map[int64]*model.BankMovement)
	m.ledger = make(map[int64]*model.AccountingMovement)
	m.reconciliations = make(map[string]*model.Reconciliation)
	m.recOrder = nil
	m.runs = make(map[string]*model.MatchingRun)
	m.runOrder = nil
	m.activeBank = make(map[int64]string)
	m.activeLedger = make(map[int64]string)
	m.nextBankID = 1
	m.nextLedgerID = 1
	m.CommitCalls = 0
	m.LastCommit = nil
	m.ReverseCalls = 0
}

// ================================================================
// BANK ACCOUNTS
// ================================================================

// UpsertBankAccount stores a copy of the account
func (m *MockRepository) UpsertBankAccount(_ context.Context, account *model.BankAccount) error {
	if account.ID == "" || account.LedgerAccount == "" {
		return model.Invalidf("bank account requires id and ledger_account")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

// GetBankAccount retrieves an account by ID
func (m *MockRepository) GetBankAccount(_ context.Context, id string) (*model.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, model.NotFoundf("bank account %q", id)
	}
	copied := *a
	return &copied, nil
}

// ListBankAccounts returns all accounts ordered by ID
func (m *MockRepository) ListBankAccounts(_ context.Context) ([]*model.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*model.BankAccount, 0, len(m.accounts))
	for _, a := range m.accounts {
		copied := *a
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ================================================================
// MOVEMENTS
// ================================================================

// InsertBankMovements stores movements as UNMATCHED and assigns IDs
func (m *MockRepository) InsertBankMovements(_ context.Context, movements []*model.BankMovement) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mv := range movements {
		if err := mv.Validate(); err != nil {
			return err
		}
		if _, ok := m.accounts[mv.BankAccountID]; !ok {
			return model.NotFoundf("bank account %q", mv.BankAccountID)
		}
	}
	for _, mv := range movements {
		mv.ID = m.nextBankID
		m.nextBankID++
		mv.Status = model.BankUnmatched
		mv.Date = model.TruncateDay(mv.Date)
		copied := *mv
		m.bank[mv.ID] = &copied
	}
	return nil
}

// InsertAccountingMovements stores movements as UNRECONCILED and assigns IDs
func (m *MockRepository) InsertAccountingMovements(_ context.Context, movements []*model.AccountingMovement) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mv := range movements {
		if err := mv.Validate(); err != nil {
			return err
		}
	}
	for _, mv := range movements {
		mv.Status = model.LedgerUnreconciled
		m.insertLedgerLocked(mv)
	}
	return nil
}

func (m *MockRepository) insertLedgerLocked(mv *model.AccountingMovement) {
	mv.ID = m.nextLedgerID
	m.nextLedgerID++
	mv.Date = model.TruncateDay(mv.Date)
	copied := *mv
	m.ledger[mv.ID] = &copied
}

// GetBankMovement retrieves a bank movement by ID
func (m *MockRepository) GetBankMovement(_ context.Context, id int64) (*model.BankMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv, ok := m.bank[id]
	if !ok {
		return nil, model.NotFoundf("bank movement %d", id)
	}
	copied := *mv
	return &copied, nil
}

// GetAccountingMovements retrieves accounting movements in the order of ids
func (m *MockRepository) GetAccountingMovements(_ context.Context, ids []int64) ([]*model.AccountingMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*model.AccountingMovement, 0, len(ids))
	for _, id := range ids {
		mv, ok := m.ledger[id]
		if !ok {
			return nil, model.NotFoundf("accounting movement %d", id)
		}
		copied := *mv
		result = append(result, &copied)
	}
	return result, nil
}

func inPeriod(period model.DateRange, t time.Time) bool {
	if !period.From.IsZero() && t.Before(model.TruncateDay(period.From)) {
		return false
	}
	if !period.To.IsZero() && t.After(model.TruncateDay(period.To)) {
		return false
	}
	return true
}

// ListBankMovements returns bank movements matching filter ordered by date, then ID
func (m *MockRepository) ListBankMovements(_ context.Context, filter BankFilter) ([]*model.BankMovement, error) {
	if m.ListBankErr != nil {
		return nil, m.ListBankErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*model.BankMovement, 0)
	for _, mv := range m.bank {
		if mv.BankAccountID != filter.BankAccountID || !inPeriod(filter.Period, mv.Date) {
			continue
		}
		if filter.Status != "" && mv.Status != filter.Status {
			continue
		}
		copied := *mv
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ListAccountingMovements returns accounting movements matching filter ordered by date, then ID
func (m *MockRepository) ListAccountingMovements(_ context.Context, filter LedgerFilter) ([]*model.AccountingMovement, error) {
	if m.ListLedgerErr != nil {
		return nil, m.ListLedgerErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*model.AccountingMovement, 0)
	for _, mv := range m.ledger {
		if mv.LedgerAccount != filter.LedgerAccount || !inPeriod(filter.Period, mv.Date) {
			continue
		}
		if filter.Status != "" && mv.Status != filter.Status {
			continue
		}
		copied := *mv
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ================================================================
// RECONCILIATIONS
// ================================================================

// CommitReconciliation applies the commit atomically
func (m *MockRepository) CommitReconciliation(_ context.Context, commit Commit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CommitCalls++
	m.LastCommit = &commit
	if m.CommitErr != nil {
		return m.CommitErr
	}
	if err, ok := m.CommitErrOnCalls[m.CommitCalls]; ok {
		return err
	}

	rec := commit.Reconciliation
	if rec == nil {
		return model.Invalidf("commit without reconciliation")
	}
	if len(rec.AccountingMovementIDs)+len(commit.NewLinked) == 0 {
		return model.Invalidf("reconciliation %s links no accounting movements", rec.ID)
	}
	if _, exists := m.reconciliations[rec.ID]; exists {
		return fmt.Errorf("%w: reconciliation %s exists", model.ErrAlreadyReconciled, rec.ID)
	}

	// Validate everything before mutating so a failure leaves no trace
	b, ok := m.bank[rec.BankMovementID]
	if !ok {
		return model.NotFoundf("bank movement %d", rec.BankMovementID)
	}
	if b.Status != model.BankUnmatched || m.activeBank[b.ID] != "" {
		return fmt.Errorf("%w: bank movement %d is already matched", model.ErrAlreadyReconciled, b.ID)
	}
	seen := make(map[int64]bool, len(rec.AccountingMovementIDs))
	for _, id := range rec.AccountingMovementIDs {
		a, ok := m.ledger[id]
		if !ok {
			return model.NotFoundf("accounting movement %d", id)
		}
		if seen[id] || a.Status != model.LedgerUnreconciled || m.activeLedger[id] != "" {
			return fmt.Errorf("%w: accounting movement %d is already reconciled", model.ErrAlreadyReconciled, id)
		}
		seen[id] = true
	}
	for _, mv := range append(append([]*model.AccountingMovement(nil), commit.NewLinked...), commit.NewUnlinked...) {
		if err := mv.Validate(); err != nil {
			return err
		}
	}

	linkedIDs := append([]int64(nil), rec.AccountingMovementIDs...)
	for _, mv := range commit.NewLinked {
		mv.Status = model.LedgerReconciled
		m.insertLedgerLocked(mv)
		linkedIDs = append(linkedIDs, mv.ID)
	}
	for _, mv := range commit.NewUnlinked {
		mv.Status = model.LedgerUnreconciled
		m.insertLedgerLocked(mv)
	}

	b.Status = model.BankMatched
	m.activeBank[b.ID] = rec.ID
	for _, id := range linkedIDs {
		m.ledger[id].Status = model.LedgerReconciled
		m.activeLedger[id] = rec.ID
	}

	rec.AccountingMovementIDs = linkedIDs
	rec.Status = model.StatusActive
	copied := *rec
	copied.AccountingMovementIDs = append([]int64(nil), linkedIDs...)
	m.reconciliations[rec.ID] = &copied
	m.recOrder = append(m.recOrder, rec.ID)
	return nil
}

// ReverseReconciliation flips the reconciliation to REVERSED and releases its movements
func (m *MockRepository) ReverseReconciliation(_ context.Context, reversal Reversal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReverseCalls++
	if m.ReverseErr != nil {
		return m.ReverseErr
	}

	rec, ok := m.reconciliations[reversal.ReconciliationID]
	if !ok {
		return model.NotFoundf("reconciliation %s", reversal.ReconciliationID)
	}
	if rec.Status != model.StatusActive {
		return fmt.Errorf("%w: reconciliation %s", model.ErrAlreadyReversed, rec.ID)
	}

	at := reversal.At.UTC()
	rec.Status = model.StatusReversed
	rec.ReversalReason = reversal.Reason
	rec.ReversedBy = reversal.By
	rec.ReversedAt = &at

	m.bank[rec.BankMovementID].Status = model.BankUnmatched
	delete(m.activeBank, rec.BankMovementID)
	for _, id := range rec.AccountingMovementIDs {
		m.ledger[id].Status = model.LedgerUnreconciled
		delete(m.activeLedger, id)
	}
	return nil
}

func copyReconciliation(rec *model.Reconciliation) *model.Reconciliation {
	copied := *rec
	copied.AccountingMovementIDs = append([]int64(nil), rec.AccountingMovementIDs...)
	return &copied
}

// GetReconciliation retrieves a reconciliation by ID
func (m *MockRepository) GetReconciliation(_ context.Context, id string) (*model.Reconciliation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.reconciliations[id]
	if !ok {
		return nil, model.NotFoundf("reconciliation %s", id)
	}
	return copyReconciliation(rec), nil
}

// ListReconciliations returns reconciliations matching the given filters with pagination
func (m *MockRepository) ListReconciliations(_ context.Context, filter ReconciliationFilter) (*ReconciliationPage, error) {
	if m.ListReconErr != nil {
		return nil, m.ListReconErr
	}
	filter = filter.Normalize()

	m.mu.Lock()
	defer m.mu.Unlock()

	var matching []*model.Reconciliation
	for _, id := range m.recOrder {
		rec := m.reconciliations[id]
		if b := m.bank[rec.BankMovementID]; b.BankAccountID != filter.BankAccountID {
			continue
		}
		if !inPeriod(filter.Period, model.TruncateDay(rec.CreatedAt)) {
			continue
		}
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		matching = append(matching, copyReconciliation(rec))
	}
	sort.SliceStable(matching, func(i, j int) bool {
		if !matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].CreatedAt.After(matching[j].CreatedAt)
		}
		return matching[i].ID < matching[j].ID
	})

	total := len(matching)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}

	items := make([]*model.Reconciliation, 0, end-start)
	items = append(items, matching[start:end]...)
	return &ReconciliationPage{
		Items:      items,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// GetSummary computes aggregate figures from the in-memory data
func (m *MockRepository) GetSummary(_ context.Context, bankAccountID string, period model.DateRange) (*Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[bankAccountID]
	if !ok {
		return nil, model.NotFoundf("bank account %q", bankAccountID)
	}

	s := &Summary{
		BankAccountID: bankAccountID,
		ActiveByType:  make(map[model.ReconciliationType]int),
	}
	for _, b := range m.bank {
		if b.BankAccountID != bankAccountID || !inPeriod(period, b.Date) {
			continue
		}
		s.BankTotal++
		if b.Status == model.BankMatched {
			s.BankMatched++
			s.MatchedAmount += b.Amount
		} else {
			s.BankUnmatched++
			s.UnmatchedAmount += b.Amount
		}
	}
	for _, a := range m.ledger {
		if a.LedgerAccount != account.LedgerAccount || !inPeriod(period, a.Date) {
			continue
		}
		s.LedgerTotal++
		if a.Status == model.LedgerReconciled {
			s.LedgerReconciled++
		} else {
			s.LedgerUnreconciled++
		}
	}
	for _, rec := range m.reconciliations {
		b := m.bank[rec.BankMovementID]
		if b.BankAccountID != bankAccountID || !inPeriod(period, b.Date) {
			continue
		}
		if rec.Status == model.StatusActive {
			s.ActiveByType[rec.Type]++
		} else {
			s.Reversed++
		}
	}
	s.computeRate()
	return s, nil
}

// ================================================================
// MATCHING RUNS
// ================================================================

// StartMatchingRun records a run in memory
func (m *MockRepository) StartMatchingRun(_ context.Context, run *model.MatchingRun) error {
	if m.StartRunErr != nil {
		return m.StartRunErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run.Status = model.RunRunning
	copied := *run
	m.runs[run.ID] = &copied
	m.runOrder = append(m.runOrder, run.ID)
	return nil
}

// CompleteMatchingRun marks a run as finished
func (m *MockRepository) CompleteMatchingRun(_ context.Context, id string, applied, skipped int, status string, at time.Time) error {
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return model.NotFoundf("matching run %s", id)
	}
	completed := at.UTC()
	run.Applied = applied
	run.Skipped = skipped
	run.Status = status
	run.CompletedAt = &completed
	return nil
}

// ListMatchingRuns returns recent runs, newest first
func (m *MockRepository) ListMatchingRuns(_ context.Context, limit int) ([]*model.MatchingRun, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := make([]*model.MatchingRun, 0, len(m.runOrder))
	for i := len(m.runOrder) - 1; i >= 0 && len(runs) < limit; i-- {
		copied := *m.runs[m.runOrder[i]]
		runs = append(runs, &copied)
	}
	return runs, nil
}

// GetMatchingRun retrieves a run by ID
func (m *MockRepository) GetMatchingRun(_ context.Context, id string) (*model.MatchingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, model.NotFoundf("matching run %s", id)
	}
	copied := *run
	return &copied, nil
}

// Helper methods for test setup

// ActiveReconciliationFor returns the ID of the active reconciliation
// linking the bank movement, or "" (for assertions)
func (m *MockRepository) ActiveReconciliationFor(bankMovementID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeBank[bankMovementID]
}

// AllReconciliations returns every reconciliation in insertion order (for assertions)
func (m *MockRepository) AllReconciliations() []*model.Reconciliation {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*model.Reconciliation, 0, len(m.recOrder))
	for _, id := range m.recOrder {
		result = append(result, copyReconciliation(m.reconciliations[id]))
	}
	return result
}
