package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankrecon/bankrecon/internal/domain/adjustment"
	"github.com/bankrecon/bankrecon/internal/domain/model"
	"github.com/bankrecon/bankrecon/internal/infrastructure/storage"
)

var day0 = time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)

const (
	testAccount = "acc-1"
	testLedger  = "111005"
	testUser    = "ana"
)

// newTestEngine returns an engine over repo with a ticking clock and
// sequential IDs.
func newTestEngine(t *testing.T, repo storage.Repository) *Engine {
	t.Helper()
	var tick, seq atomic.Int64
	e, err := New(repo, Options{
		DefaultAccounts: map[string]string{
			adjustment.AccountBankCharges:    "530595",
			adjustment.AccountInterestIncome: "421005",
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock: func() time.Time {
			return day0.Add(time.Duration(tick.Add(1)) * time.Minute)
		},
		NewID: func() string {
			return fmt.Sprintf("id-%d", seq.Add(1))
		},
	})
	require.NoError(t, err)
	return e
}

func setup(t *testing.T) (*Engine, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	e := newTestEngine(t, repo)
	require.NoError(t, e.RegisterAccount(context.Background(), &model.BankAccount{ID: testAccount, Name: "Operating", LedgerAccount: testLedger}))
	return e, repo
}

func addBank(t *testing.T, e *Engine, date time.Time, amount int64, desc string) *model.BankMovement {
	t.Helper()
	m := &model.BankMovement{Date: date, Amount: amount, Description: desc}
	require.NoError(t, e.ImportBankMovements(context.Background(), testAccount, []*model.BankMovement{m}))
	return m
}

// addLedger adds a line on the test ledger account with the given signed value.
func addLedger(t *testing.T, e *Engine, date time.Time, valor int64, concept string) *model.AccountingMovement {
	t.Helper()
	m := &model.AccountingMovement{LedgerAccount: testLedger, Document: "DOC", Date: date, Concept: concept}
	if valor >= 0 {
		m.Debit = valor
	} else {
		m.Credit = -valor
	}
	require.NoError(t, e.ImportAccountingMovements(context.Background(), []*model.AccountingMovement{m}))
	return m
}

func bankStatus(t *testing.T, repo storage.Repository, id int64) model.BankStatus {
	t.Helper()
	b, err := repo.GetBankMovement(context.Background(), id)
	require.NoError(t, err)
	return b.Status
}

func ledgerStatus(t *testing.T, repo storage.Repository, id int64) model.LedgerStatus {
	t.Helper()
	lines, err := repo.GetAccountingMovements(context.Background(), []int64{id})
	require.NoError(t, err)
	return lines[0].Status
}

// assertInvariant checks that no movement is linked by two active reconciliations.
func assertInvariant(t *testing.T, repo *storage.MockRepository) {
	t.Helper()
	bankSeen := map[int64]string{}
	ledgerSeen := map[int64]string{}
	for _, rec := range repo.AllReconciliations() {
		if rec.Status != model.StatusActive {
			continue
		}
		if prev, ok := bankSeen[rec.BankMovementID]; ok {
			t.Fatalf("bank movement %d linked by %s and %s", rec.BankMovementID, prev, rec.ID)
		}
		bankSeen[rec.BankMovementID] = rec.ID
		for _, id := range rec.AccountingMovementIDs {
			if prev, ok := ledgerSeen[id]; ok {
				t.Fatalf("accounting movement %d linked by %s and %s", id, prev, rec.ID)
			}
			ledgerSeen[id] = rec.ID
		}
	}
}

func TestNew_RejectsInvalidRules(t *testing.T) {
	_, err := New(storage.NewMockRepository(), Options{
		Rules: []adjustment.Rule{{Name: "broken"}},
	})
	assert.Error(t, err)
}

func TestImportBankMovements_AccountMismatch(t *testing.T) {
	e, _ := setup(t)
	err := e.ImportBankMovements(context.Background(), testAccount, []*model.BankMovement{
		{BankAccountID: "other", Date: day0, Amount: 100},
	})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)

	err = e.ImportBankMovements(context.Background(), "missing", []*model.BankMovement{{Date: day0, Amount: 100}})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListUnmatched(t *testing.T) {
	e, _ := setup(t)
	ctx := context.Background()
	late := addBank(t, e, day0.AddDate(0, 0, 2), 500, "B")
	early := addBank(t, e, day0, 700, "A")
	l := addLedger(t, e, day0, 700, "A")
	addLedger(t, e, day0.AddDate(0, 0, 40), 1, "outside")

	_, err := e.Apply(ctx, ApplyRequest{BankMovementID: early.ID, AccountingIDs: []int64{l.ID}, ActingUser: testUser})
	require.NoError(t, err)

	got, err := e.ListUnmatched(ctx, testAccount, model.DateRange{From: day0, To: day0.AddDate(0, 0, 5)})
	require.NoError(t, err)
	require.Len(t, got.BankMovements, 1)
	assert.Equal(t, late.ID, got.BankMovements[0].ID)
	assert.Empty(t, got.AccountingMovements)

	_, err = e.ListUnmatched(ctx, "missing", model.DateRange{})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSuggest_RanksCandidates(t *testing.T) {
	e, _ := setup(t)
	ctx := context.Background()
	b := addBank(t, e, day0, 120000, "PAGO PROVEEDOR ACME")
	exact := addLedger(t, e, day0, 120000, "Pago proveedor Acme")
	near := addLedger(t, e, day0, 119000, "Pago proveedor Acme")
	opposite := addLedger(t, e, day0, -120000, "Reverso")
	addLedger(t, e, day0.AddDate(0, 0, 45), 120000, "outside sanity window")

	got, err := e.Suggest(ctx, b.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, exact.ID, got[0].Movement.ID)
	assert.Equal(t, near.ID, got[1].Movement.ID)
	assert.Equal(t, opposite.ID, got[2].Movement.ID)
	assert.Greater(t, got[0].Score, got[1].Score)
	assert.Zero(t, got[2].Breakdown["amount"])

	limited, err := e.Suggest(ctx, b.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSuggest_MatchedMovementIsStale(t *testing.T) {
	e, _ := setup(t)
	ctx := context.Background()
	b := addBank(t, e, day0, 100, "X")
	l := addLedger(t, e, day0, 100, "X")
	_, err := e.Apply(ctx, ApplyRequest{BankMovementID: b.ID, AccountingIDs: []int64{l.ID}, ActingUser: testUser})
	require.NoError(t, err)

	_, err = e.Suggest(ctx, b.ID, 5)
	assert.ErrorIs(t, err, model.ErrStaleSelection)

	_, err = e.Suggest(ctx, 999, 5)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

// Two ledger lines together cover one bank deposit.
func TestPreview_MultiLineBalanced(t *testing.T) {
	e, repo := setup(t)
	b := addBank(t, e, day0, 250000, "TRANSFERENCIA CLIENTE")
	l1 := addLedger(t, e, day0, 100000, "Factura 1")
	l2 := addLedger(t, e, day0, 150000, "Factura 2")

	p, err := e.Preview(context.Background(), b.ID, []int64{l1.ID, l2.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(250000), p.BankAmount)
	assert.Equal(t, int64(250000), p.AccountingTotal)
	assert.Equal(t, int64(0), p.Difference)
	assert.True(t, p.IsBalanced)
	assert.InDelta(t, 0.5, p.Confidence, 1e-9)
	assert.Empty(t, p.Warnings)

	// Preview is read-only
	assert.Equal(t, model.BankUnmatched, bankStatus(t, repo, b.ID))
	assert.Equal(t, model.LedgerUnreconciled, ledgerStatus(t, repo, l1.ID))
}

func TestPreview_BalanceLaw(t *testing.T) {
	e, _ := setup(t)
	b := addBank(t, e, day0, 250000, "X")
	for _, valor := range []int64{249999, 250001, 1, -250000} {
		l := addLedger(t, e, day0, valor, "X")
		p, err := e.Preview(context.Background(), b.ID, []int64{l.ID})
		require.NoError(t, err)
		assert.False(t, p.IsBalanced, "valor %d", valor)
		assert.Equal(t, 250000-valor, p.Difference)
	}
}

func TestPreview_Errors(t *testing.T) {
	e, _ := setup(t)
	ctx := context.Background()
	b := addBank(t, e, day0, 100, "X")
	l := addLedger(t, e, day0, 100, "X")
	other := addBank(t, e, day0, 100, "Y")

	_, err := e.Preview(ctx, b.ID, nil)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	_, err = e.Preview(ctx, b.ID, []int64{l.ID, l.ID})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	_, err = e.Preview(ctx, b.ID, []int64{999})
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = e.Preview(ctx, 999, []int64{l.ID})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = e.Apply(ctx, ApplyRequest{BankMovementID: other.ID, AccountingIDs: []int64{l.ID}, ActingUser: testUser})
	require.NoError(t, err)
	_, err = e.Preview(ctx, b.ID, []int64{l.ID})
	assert.ErrorIs(t, err, model.ErrStaleSelection)
}

func TestApply_LinksMovements(t *testing.T) {
	e, repo := setup(t)
	b := addBank(t, e, day0, 250000, "X")
	l1 := addLedger(t, e, day0, 100000, "X")
	l2 := addLedger(t, e, day0, 150000, "X")

	rec, err := e.Apply(context.Background(), ApplyRequest{
		BankMovementID: b.ID,
		AccountingIDs:  []int64{l1.ID, l2.ID},
		Notes:          "two invoices",
		ActingUser:     testUser,
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, model.TypeManual, rec.Type)
	assert.Equal(t, model.StatusActive, rec.Status)
	assert.Nil(t, rec.Confidence)
	assert.Equal(t, testUser, rec.CreatedBy)
	assert.Equal(t, []int64{l1.ID, l2.ID}, rec.AccountingMovementIDs)

	assert.Equal(t, model.BankMatched, bankStatus(t, repo, b.ID))
	assert.Equal(t, model.LedgerReconciled, ledgerStatus(t, repo, l1.ID))
	assert.Equal(t, model.LedgerReconciled, ledgerStatus(t, repo, l2.ID))
}

// A ledger line already linked elsewhere blocks the whole apply.
func TestApply_RejectsLinkedMovement(t *testing.T) {
	e, repo := setup(t)
	ctx := context.Background()
	b := addBank(t, e, day0, 250000, "X")
	l1 := addLedger(t, e, day0, 100000, "X")
	l2 := addLedger(t, e, day0, 150000, "X")
	other := addBank(t, e, day0, 100000, "Y")

	_, err := e.Apply(ctx, ApplyRequest{BankMovementID: other.ID, AccountingIDs: []int64{l1.ID}, ActingUser: testUser})
	require.NoError(t, err)

	_, err = e.Apply(ctx, ApplyRequest{BankMovementID: b.ID, AccountingIDs: []int64{l1.ID, l2.ID}, ActingUser: testUser})
	require.ErrorIs(t, err, model.ErrAlreadyReconciled)
	assert.Equal(t, model.KindAlreadyReconciled, model.KindOf(err))

	assert.Equal(t, model.BankUnmatched, bankStatus(t, repo, b.ID))
	assert.Equal(t, model.LedgerUnreconciled, ledgerStatus(t, repo, l2.ID))
	assert.Len(t, repo.AllReconciliations(), 1)
	assertInvariant(t, repo)
}

// The store check still holds when the engine's own read is stale.
func TestApply_StoreRejectsRace(t *testing.T) {
	e, repo := setup(t)
	b := addBank(t, e, day0, 100, "X")
	l := addLedger(t, e, day0, 100, "X")
	repo.CommitErr = fmt.Errorf("%w: lost the race", model.ErrAlreadyReconciled)

	_, err := e.Apply(context.Background(), ApplyRequest{BankMovementID: b.ID, AccountingIDs: []int64{l.ID}, ActingUser: testUser})
	assert.ErrorIs(t, err, model.ErrAlreadyReconciled)
	assert.Equal(t, 1, repo.CommitCalls)
}

func TestApply_Unbalanced(t *testing.T) {
	e, repo := setup(t)
	ctx := context.Background()
	b := addBank(t, e, day0, 100000, "X")
	l := addLedger(t, e, day0, 99900, "X")

	_, err := e.Apply(ctx, ApplyRequest{BankMovementID: b.ID, AccountingIDs: []int64{l.ID}, ActingUser: testUser})
	require.ErrorIs(t, err, model.ErrUnbalancedRejected)
	assert.Equal(t, model.BankUnmatched, bankStatus(t, repo, b.ID))
	assert.Equal(t, 0, repo.CommitCalls)

	rec, err := e.Apply(ctx, ApplyRequest{BankMovementID: b.ID, AccountingIDs: []int64{l.ID}, ActingUser: testUser, AllowUnbalanced: true})
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, rec.Status)
}

func TestApply_Validation(t *testing.T) {
	e, _ := setup(t)
	ctx := context.Background()
	b := addBank(t, e, day0, 100, "X")
	l := addLedger(t, e, day0, 100, "X")

	tests := []struct {
		name string
		req  ApplyRequest
	}{
		{"no user", ApplyRequest{BankMovementID: b.ID, AccountingIDs: []int64{l.ID}}},
		{"adjustment type", ApplyRequest{BankMovementID: b.ID, AccountingIDs: []int64{l.ID}, ActingUser: testUser, Type: model.TypeAdjustment}},
		{"empty selection", ApplyRequest{BankMovementID: b.ID, ActingUser: testUser}},
		{"no bank movement", ApplyRequest{AccountingIDs: []int64{l.ID}, ActingUser: testUser}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Apply(ctx, tt.req)
			assert.ErrorIs(t, err, model.ErrInvalidRequest)
		})
	}
}

// Reversal frees both sides, and the same selection can be applied again.
func TestReverse_ReleasesAndAllowsReapply(t *testing.T) {
	e, repo := setup(t)
	ctx := context.Background()
	b := addBank(t, e, day0, 250000, "X")
	l1 := addLedger(t, e, day0, 100000, "X")
	l2 := addLedger(t, e, day0, 150000, "X")
	ids := []int64{l1.ID, l2.ID}

	before, err := e.Preview(ctx, b.ID, ids)
	require.NoError(t, err)
	first, err := e.Apply(ctx, ApplyRequest{BankMovementID: b.ID, AccountingIDs: ids, ActingUser: testUser})
	require.NoError(t, err)
	assert.Equal(t, first.ID, repo.ActiveReconciliationFor(b.ID))

	require.NoError(t, e.Reverse(ctx, first.ID, "wrong customer", "auditor"))
	assert.Empty(t, repo.ActiveReconciliationFor(b.ID), "reversal releases the bank movement")
	assert.Equal(t, model.BankUnmatched, bankStatus(t, repo, b.ID))
	assert.Equal(t, model.LedgerUnreconciled, ledgerStatus(t, repo, l1.ID))
	assert.Equal(t, model.LedgerUnreconciled, ledgerStatus(t, repo, l2.ID))

	err = e.Reverse(ctx, first.ID, "again", "auditor")
	assert.ErrorIs(t, err, model.ErrAlreadyReversed)

	after, err := e.Preview(ctx, b.ID, ids)
	require.NoError(t, err)
	second, err := e.Apply(ctx, ApplyRequest{BankMovementID: b.ID, AccountingIDs: ids, ActingUser: testUser})
	require.NoError(t, err)
	assert.Equal(t, second.ID, repo.ActiveReconciliationFor(b.ID))

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.BankMovementID, second.BankMovementID)
	assert.Equal(t, first.AccountingMovementIDs, second.AccountingMovementIDs)
	assert.Equal(t, before.IsBalanced, after.IsBalanced)

	detail, err := e.Detail(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReversed, detail.Reconciliation.Status)
	assert.Equal(t, "wrong customer", detail.Reconciliation.ReversalReason)
	assert.Equal(t, "auditor", detail.Reconciliation.ReversedBy)
	assertInvariant(t, repo)
}

func TestReverse_Validation(t *testing.T) {
	e, _ := setup(t)
	ctx := context.Background()
	assert.ErrorIs(t, e.Reverse(ctx, "id-1", "", testUser), model.ErrInvalidRequest)
	assert.ErrorIs(t, e.Reverse(ctx, "id-1", "reason", ""), model.ErrInvalidRequest)
	assert.ErrorIs(t, e.Reverse(ctx, "missing", "reason", testUser), model.ErrNotFound)
}

func TestRunAutomatic_AppliesConfidentMatches(t *testing.T) {
	e, repo := setup(t)
	ctx := context.Background()
	exact := addBank(t, e, day0, 50000, "PAGO FACTURA 77")
	exactLine := addLedger(t, e, day0, 50000, "Pago factura 77")
	near := addBank(t, e, day0.AddDate(0, 0, 1), 80000, "CONSIGNACION")
	addLedger(t, e, day0.AddDate(0, 0, 1), 79000, "Consignacion")
	lonely := addBank(t, e, day0.AddDate(0, 0, 2), 1234, "SIN CONTRAPARTE")

	var progress []AutoProgress
	result, err := e.RunAutomatic(ctx, AutoRequest{
		BankAccountID: testAccount,
		ActingUser:    "scheduler",
		Progress:      func(p AutoProgress) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.ReconciliationIDs, 1)

	rec, err := repo.GetReconciliation(ctx, result.ReconciliationIDs[0])
	require.NoError(t, err)
	assert.Equal(t, model.TypeAuto, rec.Type)
	assert.Equal(t, exact.ID, rec.BankMovementID)
	assert.Equal(t, []int64{exactLine.ID}, rec.AccountingMovementIDs)
	require.NotNil(t, rec.Confidence)
	assert.GreaterOrEqual(t, *rec.Confidence, 0.9)

	assert.Equal(t, model.BankUnmatched, bankStatus(t, repo, near.ID))
	assert.Equal(t, model.BankUnmatched, bankStatus(t, repo, lonely.ID))

	require.Len(t, progress, 3)
	assert.Equal(t, AutoProgress{Total: 3, Processed: 3, Applied: 1, Skipped: 2}, progress[2])

	run, err := e.Run(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 1, run.Applied)
	assert.Equal(t, 2, run.Skipped)
	assert.Equal(t, "scheduler", run.StartedBy)
}

func TestRunAutomatic_SecondRunIsNoOp(t *testing.T) {
	e, repo := setup(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		d := day0.AddDate(0, 0, i)
		addBank(t, e, d, int64(1000*(i+1)), "PAGO")
		addLedger(t, e, d, int64(1000*(i+1)), "Pago")
	}
	addBank(t, e, day0, 999, "SIN CONTRAPARTE")

	first, err := e.RunAutomatic(ctx, AutoRequest{BankAccountID: testAccount})
	require.NoError(t, err)
	assert.Equal(t, 4, first.Applied)

	second, err := e.RunAutomatic(ctx, AutoRequest{BankAccountID: testAccount})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Applied)
	assert.Equal(t, 1, second.Skipped)

	runs, err := e.Runs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assertInvariant(t, repo)
}

// Two bank movements compete for one ledger line: the earlier one wins and
// the line is not reused within the run.
func TestRunAutomatic_DeterministicOrder(t *testing.T) {
	e, repo := setup(t)
	ctx := context.Background()
	earlier := addBank(t, e, day0, 5000, "PAGO")
	later := addBank(t, e, day0, 5000, "PAGO")
	line := addLedger(t, e, day0, 5000, "Pago")

	result, err := e.RunAutomatic(ctx, AutoRequest{BankAccountID: testAccount})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, 1, result.Skipped)

	// Same date: the smaller ID goes first
	assert.Equal(t, model.BankMatched, bankStatus(t, repo, earlier.ID))
	assert.Equal(t, model.BankUnmatched, bankStatus(t, repo, later.ID))
	assert.Equal(t, model.LedgerReconciled, ledgerStatus(t, repo, line.ID))
}

func TestRunAutomatic_LostRaceCountsAsSkipped(t *testing.T) {
	e, repo := setup(t)
	addBank(t, e, day0, 5000, "PAGO")
	addLedger(t, e, day0, 5000, "Pago")
	repo.CommitErr = fmt.Errorf("%w: taken", model.ErrAlreadyReconciled)

	result, err := e.RunAutomatic(context.Background(), AutoRequest{BankAccountID: testAccount})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, 1, result.Skipped)
}

func TestRunAutomatic_FailureIsRecorded(t *testing.T) {
	e, repo := setup(t)
	ctx := context.Background()
	addBank(t, e, day0, 5000, "PAGO")
	addLedger(t, e, day0, 5000, "Pago")
	repo.CommitErr = fmt.Errorf("disk full")

	result, err := e.RunAutomatic(ctx, AutoRequest{BankAccountID: testAccount})
	require.Error(t, err)

	run, err := e.Run(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, run.Status)
}

func TestRunAutomatic_UnknownAccount(t *testing.T) {
	e, _ := setup(t)
	_, err := e.RunAutomatic(context.Background(), AutoRequest{BankAccountID: "missing"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRunAutomatic_Cancelled(t *testing.T) {
	e, _ := setup(t)
	addBank(t, e, day0, 5000, "PAGO")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.RunAutomatic(ctx, AutoRequest{BankAccountID: testAccount})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHistoryAndDetail(t *testing.T) {
	e, _ := setup(t)
	ctx := context.Background()
	var recs []*model.Reconciliation
	for i := 0; i < 3; i++ {
		b := addBank(t, e, day0, int64(100+i), "X")
		l := addLedger(t, e, day0, int64(100+i), "X")
		rec, err := e.Apply(ctx, ApplyRequest{BankMovementID: b.ID, AccountingIDs: []int64{l.ID}, ActingUser: testUser})
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	require.NoError(t, e.Reverse(ctx, recs[0].ID, "typo", testUser))

	page, err := e.History(ctx, testAccount, HistoryFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, recs[2].ID, page.Items[0].ID)

	page, err = e.History(ctx, testAccount, HistoryFilter{Status: model.StatusActive})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)

	_, err = e.History(ctx, testAccount, HistoryFilter{Type: "BOGUS"})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	_, err = e.History(ctx, "missing", HistoryFilter{})
	assert.ErrorIs(t, err, model.ErrNotFound)

	detail, err := e.Detail(ctx, recs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, recs[1].BankMovementID, detail.BankMovement.ID)
	require.Len(t, detail.AccountingMovements, 1)
	assert.Equal(t, recs[1].AccountingMovementIDs[0], detail.AccountingMovements[0].ID)

	_, err = e.Detail(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSummary(t *testing.T) {
	e, _ := setup(t)
	ctx := context.Background()
	b := addBank(t, e, day0, 100, "X")
	addBank(t, e, day0, 200, "Y")
	l := addLedger(t, e, day0, 100, "X")
	_, err := e.Apply(ctx, ApplyRequest{BankMovementID: b.ID, AccountingIDs: []int64{l.ID}, ActingUser: testUser})
	require.NoError(t, err)

	s, err := e.Summary(ctx, testAccount, model.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 2, s.BankTotal)
	assert.Equal(t, 1, s.BankMatched)
	assert.Equal(t, 1, s.ActiveByType[model.TypeManual])
	assert.InDelta(t, 0.5, s.MatchRate, 1e-9)
}

// Applies and reverses in an interleaved order never break the
// one-active-link rule.
func TestInvariant_HoldsAcrossOperations(t *testing.T) {
	e, repo := setup(t)
	ctx := context.Background()

	var bank []*model.BankMovement
	var ledger []*model.AccountingMovement
	for i := 0; i < 6; i++ {
		bank = append(bank, addBank(t, e, day0, 100, "X"))
		ledger = append(ledger, addLedger(t, e, day0, 100, "X"))
	}

	var active []string
	for step := 0; step < 40; step++ {
		b := bank[(step*5)%len(bank)]
		l := ledger[(step*7)%len(ledger)]
		rec, err := e.Apply(ctx, ApplyRequest{BankMovementID: b.ID, AccountingIDs: []int64{l.ID}, ActingUser: testUser})
		if err == nil {
			active = append(active, rec.ID)
		} else {
			require.ErrorIs(t, err, model.ErrAlreadyReconciled)
		}
		if step%3 == 2 && len(active) > 0 {
			require.NoError(t, e.Reverse(ctx, active[0], "rotate", testUser))
			active = active[1:]
		}
		assertInvariant(t, repo)
	}
}
