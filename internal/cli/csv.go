package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// Bank statement CSV columns. Amounts are decimal strings, negative for
// outflows; reference and running_balance are optional.
var bankColumns = []string{"date", "amount", "description"}

// Ledger CSV columns. Debit and credit are decimal strings; one of them is zero.
var ledgerColumns = []string{"ledger_account", "document", "date", "debit", "credit", "concept"}

// csvTable is a CSV file read with its header.
type csvTable struct {
	index map[string]int
	rows  [][]string
}

func readCSV(r io.Reader, required []string) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, model.Invalidf("CSV has no header row")
	}

	t := &csvTable{index: make(map[string]int), rows: records[1:]}
	for i, name := range records[0] {
		t.index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := t.index[name]; !ok {
			return nil, model.Invalidf("CSV is missing column %q", name)
		}
	}
	return t, nil
}

// get returns the named column of row, or "" when the file has no such column.
func (t *csvTable) get(row []string, name string) string {
	i, ok := t.index[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseBankCSV reads statement lines for one bank account.
func parseBankCSV(r io.Reader, bankAccountID string) ([]*model.BankMovement, error) {
	t, err := readCSV(r, bankColumns)
	if err != nil {
		return nil, err
	}

	movements := make([]*model.BankMovement, 0, len(t.rows))
	for i, row := range t.rows {
		m, err := parseBankRow(t, row, bankAccountID)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		movements = append(movements, m)
	}
	return movements, nil
}

func parseBankRow(t *csvTable, row []string, bankAccountID string) (*model.BankMovement, error) {
	date, err := parseDay(t.get(row, "date"))
	if err != nil {
		return nil, err
	}
	amount, err := model.ParseMinor(t.get(row, "amount"))
	if err != nil {
		return nil, err
	}

	m := &model.BankMovement{
		BankAccountID: bankAccountID,
		Date:          date,
		Amount:        amount,
		Description:   t.get(row, "description"),
		Reference:     t.get(row, "reference"),
	}
	if raw := t.get(row, "running_balance"); raw != "" {
		balance, err := model.ParseMinor(raw)
		if err != nil {
			return nil, err
		}
		m.RunningBalance = &balance
	}
	return m, m.Validate()
}

// parseLedgerCSV reads accounting movements.
func parseLedgerCSV(r io.Reader) ([]*model.AccountingMovement, error) {
	t, err := readCSV(r, ledgerColumns)
	if err != nil {
		return nil, err
	}

	movements := make([]*model.AccountingMovement, 0, len(t.rows))
	for i, row := range t.rows {
		m, err := parseLedgerRow(t, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		movements = append(movements, m)
	}
	return movements, nil
}

func parseLedgerRow(t *csvTable, row []string) (*model.AccountingMovement, error) {
	date, err := parseDay(t.get(row, "date"))
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, model.Invalidf("date is required")
	}
	debit, err := parseOptionalMinor(t.get(row, "debit"))
	if err != nil {
		return nil, err
	}
	credit, err := parseOptionalMinor(t.get(row, "credit"))
	if err != nil {
		return nil, err
	}

	m := &model.AccountingMovement{
		LedgerAccount: t.get(row, "ledger_account"),
		Document:      t.get(row, "document"),
		Date:          date,
		Debit:         debit,
		Credit:        credit,
		Concept:       t.get(row, "concept"),
	}
	return m, m.Validate()
}

func parseOptionalMinor(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return model.ParseMinor(s)
}
