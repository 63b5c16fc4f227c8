package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankrecon/bankrecon/internal/domain/adjustment"
	"github.com/bankrecon/bankrecon/internal/domain/model"
	"github.com/bankrecon/bankrecon/internal/infrastructure/storage"
)

// A bank charge is proposed against the configured expense account.
func TestDetect_CommissionWithConfiguredAccount(t *testing.T) {
	e, _ := setup(t)
	b := addBank(t, e, day0, -15000, "COMISION MANEJO CTA")
	addBank(t, e, day0, 90000, "TRANSFERENCIA CLIENTE")

	proposals, err := e.Detect(context.Background(), testAccount, model.DateRange{})
	require.NoError(t, err)
	require.Len(t, proposals, 1)

	p := proposals[0]
	assert.Equal(t, b.ID, p.BankMovement.ID)
	assert.Equal(t, model.AdjustmentCommission, p.Type)
	assert.Equal(t, int64(15000), p.Total)
	assert.False(t, p.RequiresApproval)
	require.Len(t, p.Lines, 2)
	assert.Equal(t, "530595", p.Lines[0].Account)
	assert.Equal(t, int64(15000), p.Lines[0].Debit)
	assert.Equal(t, testLedger, p.Lines[1].Account)
	assert.Equal(t, int64(15000), p.Lines[1].Credit)
}

func TestDetect_PerAccountMappingOverridesDefault(t *testing.T) {
	repo := storage.NewMockRepository()
	e, err := New(repo, Options{
		DefaultAccounts: map[string]string{adjustment.AccountBankCharges: "530595"},
		Accounts: map[string]map[string]string{
			testAccount: {adjustment.AccountBankCharges: "530515"},
		},
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, e.RegisterAccount(ctx, &model.BankAccount{ID: testAccount, LedgerAccount: testLedger}))
	require.NoError(t, e.ImportBankMovements(ctx, testAccount, []*model.BankMovement{{Date: day0, Amount: -500, Description: "GMF 4X1000"}}))

	proposals, err := e.Detect(ctx, testAccount, model.DateRange{})
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, "530515", proposals[0].Lines[0].Account)
}

func TestDetect_MissingMappingIsFlagged(t *testing.T) {
	e, _ := setup(t)
	addBank(t, e, day0, -2500, "NOTA DEBITO 4471")

	proposals, err := e.Detect(context.Background(), testAccount, model.DateRange{})
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.True(t, proposals[0].RequiresApproval)
	assert.Equal(t, []string{adjustment.AccountDebitNote}, proposals[0].MissingMappings)
	assert.Empty(t, proposals[0].Lines[0].Account)
}

func TestApplyAdjustments_PostsAndLinks(t *testing.T) {
	e, repo := setup(t)
	ctx := context.Background()
	b := addBank(t, e, day0, -15000, "COMISION MANEJO CTA")

	proposals, err := e.Detect(ctx, testAccount, model.DateRange{})
	require.NoError(t, err)

	result, err := e.ApplyAdjustments(ctx, proposals, "", testUser)
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 1)
	assert.Empty(t, result.Failed)

	outcome := result.Succeeded[0]
	assert.Equal(t, b.ID, outcome.BankMovementID)
	assert.Equal(t, model.AdjustmentCommission, outcome.Type)
	require.Len(t, outcome.AccountingMovements, 2)
	assert.Equal(t, model.BankMatched, bankStatus(t, repo, b.ID))

	rec, err := repo.GetReconciliation(ctx, outcome.ReconciliationID)
	require.NoError(t, err)
	assert.Equal(t, model.TypeAdjustment, rec.Type)
	assert.Equal(t, model.AdjustmentCommission, rec.AdjustmentType)
	assert.Nil(t, rec.Confidence)
	assert.Equal(t, proposals[0].Description, rec.Notes)
	require.Len(t, rec.AccountingMovementIDs, 1)

	lines, err := repo.GetAccountingMovements(ctx, outcome.AccountingMovements)
	require.NoError(t, err)
	byAccount := map[string]*model.AccountingMovement{}
	for _, l := range lines {
		byAccount[l.LedgerAccount] = l
	}
	require.Contains(t, byAccount, testLedger)
	require.Contains(t, byAccount, "530595")
	assert.Equal(t, rec.AccountingMovementIDs[0], byAccount[testLedger].ID)
	assert.Equal(t, model.LedgerReconciled, byAccount[testLedger].Status)
	assert.Equal(t, b.Amount, byAccount[testLedger].Valor())
	assert.Equal(t, model.LedgerUnreconciled, byAccount["530595"].Status)
	assert.Equal(t, int64(15000), byAccount["530595"].Debit)

	// Replaying the same proposal is stale
	again, err := e.ApplyAdjustments(ctx, proposals, "", testUser)
	require.NoError(t, err)
	require.Len(t, again.Failed, 1)
	assert.Equal(t, model.KindStaleSelection, again.Failed[0].Kind)
}

func TestApplyAdjustments_PartialFailure(t *testing.T) {
	e, repo := setup(t)
	ctx := context.Background()
	fee := addBank(t, e, day0, -15000, "COMISION MANEJO CTA")
	interest := addBank(t, e, day0, 3250, "ABONO INTERESES")
	note := addBank(t, e, day0, -2500, "NOTA DEBITO 4471")

	proposals, err := e.Detect(ctx, testAccount, model.DateRange{})
	require.NoError(t, err)
	require.Len(t, proposals, 3)

	// The interest movement is matched manually in the meantime
	l := addLedger(t, e, day0, 3250, "Intereses")
	_, err = e.Apply(ctx, ApplyRequest{BankMovementID: interest.ID, AccountingIDs: []int64{l.ID}, ActingUser: testUser})
	require.NoError(t, err)

	result, err := e.ApplyAdjustments(ctx, proposals, "month end", testUser)
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 1)
	assert.Equal(t, fee.ID, result.Succeeded[0].BankMovementID)

	require.Len(t, result.Failed, 2)
	kinds := map[int64]string{}
	for _, f := range result.Failed {
		kinds[f.BankMovementID] = f.Kind
	}
	assert.Equal(t, model.KindStaleSelection, kinds[interest.ID])
	assert.Equal(t, model.KindMissingAccountMapping, kinds[note.ID])
	assert.Equal(t, model.BankUnmatched, bankStatus(t, repo, note.ID))
	assertInvariant(t, repo)
}

func TestApplyAdjustments_RejectsTamperedProposal(t *testing.T) {
	e, repo := setup(t)
	ctx := context.Background()
	addBank(t, e, day0, -15000, "COMISION MANEJO CTA")

	proposals, err := e.Detect(ctx, testAccount, model.DateRange{})
	require.NoError(t, err)
	p := proposals[0]
	p.Lines = []model.EntryLine{
		{Account: "530595", Debit: 100},
		{Account: testLedger, Credit: 100},
	}

	result, err := e.ApplyAdjustments(ctx, []model.AdjustmentProposal{p}, "", testUser)
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, model.KindUnbalancedRejected, result.Failed[0].Kind)
	assert.Equal(t, 0, repo.CommitCalls)
}

func TestApplyAdjustmentsFor_SelectsByID(t *testing.T) {
	e, repo := setup(t)
	ctx := context.Background()
	fee := addBank(t, e, day0, -15000, "COMISION MANEJO CTA")
	plain := addBank(t, e, day0, 90000, "TRANSFERENCIA CLIENTE")

	result, err := e.ApplyAdjustmentsFor(ctx, testAccount, []int64{fee.ID, plain.ID, 999}, "", testUser)
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 1)
	assert.Equal(t, fee.ID, result.Succeeded[0].BankMovementID)

	kinds := map[int64]string{}
	for _, f := range result.Failed {
		kinds[f.BankMovementID] = f.Kind
	}
	assert.Equal(t, model.KindInvalidRequest, kinds[plain.ID])
	assert.Equal(t, model.KindNotFound, kinds[999])
	assert.Equal(t, model.BankMatched, bankStatus(t, repo, fee.ID))

	_, err = e.ApplyAdjustmentsFor(ctx, testAccount, nil, "", testUser)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	_, err = e.ApplyAdjustmentsFor(ctx, "missing", []int64{fee.ID}, "", testUser)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestApplyAdjustmentsFor_OtherAccount(t *testing.T) {
	e, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, e.RegisterAccount(ctx, &model.BankAccount{ID: "acc-2", LedgerAccount: "111010"}))
	m := &model.BankMovement{Date: day0, Amount: -100, Description: "COMISION"}
	require.NoError(t, e.ImportBankMovements(ctx, "acc-2", []*model.BankMovement{m}))

	result, err := e.ApplyAdjustmentsFor(ctx, testAccount, []int64{m.ID}, "", testUser)
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, model.KindNotFound, result.Failed[0].Kind)
}
