package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankrecon/bankrecon/internal/domain/model"
)

const statementCSV = `date,amount,description,reference,running_balance
2025-10-10,500.00,PAGO FACTURA 77,TRX-1,12500.00
2025-10-12,-150.00,COMISION MANEJO CTA,,
2025-10-14,-80.00,NOTA DEBITO AJUSTE,,
`

const ledgerCSV = `ledger_account,document,date,debit,credit,concept
111005,RC-77,2025-10-10,500.00,,Pago factura 77
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func setupWorkspace(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = writeFile(t, dir, "config.yaml", `
storage:
  database_path: "`+filepath.Join(dir, "recon.db")+`"
bank_accounts:
  - id: "acc-1"
    name: "Operating"
    ledger_account: "111005"
adjustments:
  default_accounts:
    bank_charges: "530595"
    debit_note: "530505"
`)
	return dir, cfgPath
}

func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustExecute(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := execute(t, cfgPath, args...)
	require.NoError(t, err, out)
	return out
}

func TestCLI_ReconcileWorkflow(t *testing.T) {
	dir, cfgPath := setupWorkspace(t)

	out := mustExecute(t, cfgPath, "migrate")
	assert.Contains(t, out, "schema version")

	out = mustExecute(t, cfgPath, "import", "bank", "acc-1", writeFile(t, dir, "statement.csv", statementCSV))
	assert.Contains(t, out, "Imported 3 bank movements into acc-1")

	out = mustExecute(t, cfgPath, "import", "ledger", writeFile(t, dir, "ledger.csv", ledgerCSV))
	assert.Contains(t, out, "Imported 1 accounting movements")

	out = mustExecute(t, cfgPath, "auto", "acc-1", "--user", "scheduler", "--from", "2025-10-01", "--to", "2025-10-31")
	assert.Contains(t, out, "Applied=1 Skipped=2")
	recID := addedID(t, out)

	out = mustExecute(t, cfgPath, "detect", "acc-1", "--apply", "--user", "ana")
	assert.Contains(t, out, "COMMISSION")
	assert.Contains(t, out, "[review]", "debit notes need review")
	assert.Contains(t, out, "Succeeded=1 Failed=0", "flagged proposals are held back")

	out = mustExecute(t, cfgPath, "history", "acc-1", "--type", "AUTO")
	assert.Contains(t, out, recID)
	assert.Contains(t, out, "Showing 1-1 of 1")

	out = mustExecute(t, cfgPath, "reverse", recID, "--reason", "wrong invoice", "--user", "ana")
	assert.Contains(t, out, "Reversed "+recID)

	_, err := execute(t, cfgPath, "reverse", recID, "--reason", "again", "--user", "ana")
	assert.ErrorIs(t, err, model.ErrAlreadyReversed)

	out = mustExecute(t, cfgPath, "summary", "acc-1")
	assert.Contains(t, out, "3 total, 1 matched, 2 unmatched")
	assert.Contains(t, out, "ADJUSTMENT")
	assert.Contains(t, out, "Reversed:         1")
}

func TestCLI_DetectApprovedPostsReviewItems(t *testing.T) {
	dir, cfgPath := setupWorkspace(t)
	mustExecute(t, cfgPath, "import", "bank", "acc-1", writeFile(t, dir, "statement.csv", statementCSV))

	out := mustExecute(t, cfgPath, "detect", "acc-1", "--apply", "--approved", "--user", "ana")
	assert.Contains(t, out, "Succeeded=2 Failed=0")

	out = mustExecute(t, cfgPath, "detect", "acc-1")
	assert.Contains(t, out, "No adjustments detected.")
}

func TestCLI_Errors(t *testing.T) {
	_, cfgPath := setupWorkspace(t)

	_, err := execute(t, cfgPath, "auto", "acc-1", "--from", "2025-10-31", "--to", "2025-10-01")
	assert.ErrorIs(t, err, model.ErrInvalidRequest)

	_, err = execute(t, cfgPath, "summary", "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = execute(t, cfgPath, "reverse", "some-id")
	assert.Error(t, err, "--reason is required")

	_, err = execute(t, filepath.Join(t.TempDir(), "absent.yaml"), "migrate")
	assert.Error(t, err, "an explicit config path must exist")
}

func addedID(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if id, ok := strings.CutPrefix(line, "  + "); ok {
			return strings.TrimSpace(id)
		}
	}
	t.Fatalf("no reconciliation id in output:\n%s", out)
	return ""
}

func TestParseBankCSV(t *testing.T) {
	movements, err := parseBankCSV(strings.NewReader(statementCSV), "acc-1")
	require.NoError(t, err)
	require.Len(t, movements, 3)

	first := movements[0]
	assert.Equal(t, "acc-1", first.BankAccountID)
	assert.Equal(t, int64(50000), first.Amount)
	assert.Equal(t, "TRX-1", first.Reference)
	require.NotNil(t, first.RunningBalance)
	assert.Equal(t, int64(1250000), *first.RunningBalance)

	assert.Equal(t, int64(-15000), movements[1].Amount)
	assert.Nil(t, movements[1].RunningBalance)
}

func TestParseBankCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr string
	}{
		{"missing column", "date,description\n2025-10-10,X\n", `missing column "amount"`},
		{"bad amount", "date,amount,description\n2025-10-10,12.345,X\n", "row 2"},
		{"bad date", "date,amount,description\n10/10/2025,1.00,X\n", "invalid date"},
		{"zero amount", "date,amount,description\n2025-10-10,0,X\n", "must not be zero"},
		{"empty file", "", "no header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBankCSV(strings.NewReader(tt.csv), "acc-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLedgerCSV(t *testing.T) {
	movements, err := parseLedgerCSV(strings.NewReader(ledgerCSV))
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, int64(50000), movements[0].Debit)
	assert.Equal(t, int64(0), movements[0].Credit)
	assert.Equal(t, int64(50000), movements[0].Valor())

	_, err = parseLedgerCSV(strings.NewReader("ledger_account,document,date,debit,credit,concept\n111005,X,2025-10-10,1.00,1.00,both\n"))
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestPeriodFlags(t *testing.T) {
	rng, err := periodFlags{from: "2025-10-01"}.Range()
	require.NoError(t, err)
	assert.Equal(t, "from 2025-10-01", describePeriod(rng))

	rng, err = periodFlags{}.Range()
	require.NoError(t, err)
	assert.Equal(t, "all dates", describePeriod(rng))
}
