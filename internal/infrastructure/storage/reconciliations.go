package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bankrecon/bankrecon/internal/domain/model"
)

const (
	kindBank   = "bank"
	kindLedger = "ledger"
)

// CommitReconciliation links the movements and inserts the reconciliation
// in one transaction. Status flips are conditional on the open state, and
// the active-link unique index backs them up.
func (s *Storage) CommitReconciliation(ctx context.Context, commit Commit) error {
	rec := commit.Reconciliation
	if rec == nil {
		return model.Invalidf("commit without reconciliation")
	}
	if len(rec.AccountingMovementIDs)+len(commit.NewLinked) == 0 {
		return model.Invalidf("reconciliation %s links no accounting movements", rec.ID)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := claimBank(ctx, tx, rec.BankMovementID); err != nil {
			return err
		}
		for _, id := range rec.AccountingMovementIDs {
			if err := claimLedger(ctx, tx, id); err != nil {
				return err
			}
		}

		linkedIDs := append([]int64(nil), rec.AccountingMovementIDs...)
		for _, m := range commit.NewLinked {
			m.Status = model.LedgerReconciled
			if err := insertAccounting(ctx, tx, m); err != nil {
				return err
			}
			linkedIDs = append(linkedIDs, m.ID)
		}
		for _, m := range commit.NewUnlinked {
			m.Status = model.LedgerUnreconciled
			if err := insertAccounting(ctx, tx, m); err != nil {
				return err
			}
		}

		var confidence sql.NullFloat64
		if rec.Confidence != nil {
			confidence = sql.NullFloat64{Float64: *rec.Confidence, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO reconciliations
		(id, bank_movement_id, type, status, confidence, adjustment_type, notes, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.BankMovementID, string(rec.Type), string(model.StatusActive), confidence,
			string(rec.AdjustmentType), rec.Notes, rec.CreatedAt.UTC(), rec.CreatedBy)
		if err != nil {
			return fmt.Errorf("failed to insert reconciliation: %w", err)
		}

		if err := insertLink(ctx, tx, rec.ID, kindBank, rec.BankMovementID, 0); err != nil {
			return err
		}
		for i, id := range linkedIDs {
			if err := insertLink(ctx, tx, rec.ID, kindLedger, id, i); err != nil {
				return err
			}
		}

		rec.AccountingMovementIDs = linkedIDs
		rec.Status = model.StatusActive
		return nil
	})
}

// claimBank flips a bank movement to MATCHED if it is still UNMATCHED.
func claimBank(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `
	UPDATE bank_movements SET status = 'MATCHED' WHERE id = ? AND status = 'UNMATCHED'
	`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 1 {
		return nil
	}

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bank_movements WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return model.NotFoundf("bank movement %d", id)
	}
	return fmt.Errorf("%w: bank movement %d is already matched", model.ErrAlreadyReconciled, id)
}

// claimLedger flips an accounting movement to RECONCILED if it is still UNRECONCILED.
func claimLedger(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `
	UPDATE accounting_movements SET status = 'RECONCILED' WHERE id = ? AND status = 'UNRECONCILED'
	`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 1 {
		return nil
	}

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounting_movements WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return model.NotFoundf("accounting movement %d", id)
	}
	return fmt.Errorf("%w: accounting movement %d is already reconciled", model.ErrAlreadyReconciled, id)
}

func insertLink(ctx context.Context, tx *sql.Tx, recID, kind string, movementID int64, position int) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO reconciliation_links (reconciliation_id, movement_kind, movement_id, position, active)
	VALUES (?, ?, ?, ?, 1)
	`, recID, kind, movementID, position)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s movement %d is linked by another active reconciliation", model.ErrAlreadyReconciled, kind, movementID)
	}
	return err
}

// ReverseReconciliation marks the reconciliation REVERSED and releases its movements
func (s *Storage) ReverseReconciliation(ctx context.Context, reversal Reversal) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM reconciliations WHERE id = ?`, reversal.ReconciliationID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return model.NotFoundf("reconciliation %s", reversal.ReconciliationID)
		}
		if err != nil {
			return err
		}
		if model.ReconciliationStatus(status) != model.StatusActive {
			return fmt.Errorf("%w: reconciliation %s", model.ErrAlreadyReversed, reversal.ReconciliationID)
		}

		queries := []struct {
			query string
			args  []any
		}{
			{`UPDATE reconciliations SET status = 'REVERSED', reversal_reason = ?, reversed_at = ?, reversed_by = ?
			  WHERE id = ? AND status = 'ACTIVE'`,
				[]any{reversal.Reason, reversal.At.UTC(), reversal.By, reversal.ReconciliationID}},
			{`UPDATE bank_movements SET status = 'UNMATCHED' WHERE id IN (
			  SELECT movement_id FROM reconciliation_links
			  WHERE reconciliation_id = ? AND movement_kind = 'bank' AND active = 1)`,
				[]any{reversal.ReconciliationID}},
			{`UPDATE accounting_movements SET status = 'UNRECONCILED' WHERE id IN (
			  SELECT movement_id FROM reconciliation_links
			  WHERE reconciliation_id = ? AND movement_kind = 'ledger' AND active = 1)`,
				[]any{reversal.ReconciliationID}},
			{`UPDATE reconciliation_links SET active = 0 WHERE reconciliation_id = ?`,
				[]any{reversal.ReconciliationID}},
		}
		for _, q := range queries {
			if _, err := tx.ExecContext(ctx, q.query, q.args...); err != nil {
				return fmt.Errorf("failed to reverse reconciliation: %w", err)
			}
		}
		return nil
	})
}

const reconciliationColumns = `r.id, r.bank_movement_id, r.type, r.status, r.confidence, r.adjustment_type, r.notes,
	r.created_at, r.created_by, r.reversal_reason, r.reversed_at, r.reversed_by`

func scanReconciliation(row rowScanner) (*model.Reconciliation, error) {
	rec := &model.Reconciliation{}
	var recType, status, adjType string
	var confidence sql.NullFloat64
	var reversedAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.BankMovementID, &recType, &status, &confidence, &adjType, &rec.Notes,
		&rec.CreatedAt, &rec.CreatedBy, &rec.ReversalReason, &reversedAt, &rec.ReversedBy)
	if err != nil {
		return nil, err
	}
	rec.Type = model.ReconciliationType(recType)
	rec.Status = model.ReconciliationStatus(status)
	rec.AdjustmentType = model.AdjustmentType(adjType)
	if confidence.Valid {
		v := confidence.Float64
		rec.Confidence = &v
	}
	if reversedAt.Valid {
		t := reversedAt.Time
		rec.ReversedAt = &t
	}
	return rec, nil
}

// loadLinks fills AccountingMovementIDs in link order.
func (s *Storage) loadLinks(ctx context.Context, recs ...*model.Reconciliation) error {
	for _, rec := range recs {
		rows, err := s.db.QueryContext(ctx, `
		SELECT movement_id FROM reconciliation_links
		WHERE reconciliation_id = ? AND movement_kind = 'ledger'
		ORDER BY position
		`, rec.ID)
		if err != nil {
			return err
		}
		ids := make([]int64, 0)
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		rec.AccountingMovementIDs = ids
	}
	return nil
}

// GetReconciliation retrieves a reconciliation by ID
func (s *Storage) GetReconciliation(ctx context.Context, id string) (*model.Reconciliation, error) {
	rec, err := scanReconciliation(s.db.QueryRowContext(ctx,
		`SELECT `+reconciliationColumns+` FROM reconciliations r WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("reconciliation %s", id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadLinks(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListReconciliations returns reconciliations matching the given filters with pagination
func (s *Storage) ListReconciliations(ctx context.Context, filter ReconciliationFilter) (*ReconciliationPage, error) {
	filter = filter.Normalize()

	where := []string{"b.bank_account_id = ?"}
	args := []any{filter.BankAccountID}
	if !filter.Period.From.IsZero() {
		where = append(where, "r.created_at >= ?")
		args = append(args, formatDate(filter.Period.From))
	}
	if !filter.Period.To.IsZero() {
		// created_at is a timestamp; compare against the start of the next day
		where = append(where, "r.created_at < ?")
		args = append(args, formatDate(filter.Period.To.AddDate(0, 0, 1)))
	}
	if filter.Type != "" {
		where = append(where, "r.type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, string(filter.Status))
	}
	from := ` FROM reconciliations r JOIN bank_movements b ON b.id = r.bank_movement_id WHERE ` + strings.Join(where, " AND ")

	page := &ReconciliationPage{
		Items:  make([]*model.Reconciliation, 0),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from, args...).Scan(&page.TotalCount); err != nil {
		return nil, fmt.Errorf("failed to count reconciliations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reconciliationColumns+from+` ORDER BY r.created_at DESC, r.id LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		page.Items = append(page.Items, rec)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadLinks(ctx, page.Items...); err != nil {
		return nil, err
	}
	return page, nil
}

// GetSummary returns aggregate figures for one account and period
func (s *Storage) GetSummary(ctx context.Context, bankAccountID string, period model.DateRange) (*Summary, error) {
	account, err := s.GetBankAccount(ctx, bankAccountID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		BankAccountID: bankAccountID,
		ActiveByType:  make(map[model.ReconciliationType]int),
	}

	where, args := periodClause("date", period, []string{"bank_account_id = ?"}, []any{bankAccountID})
	err = s.db.QueryRowContext(ctx, `
	SELECT COUNT(*),
	       COALESCE(SUM(CASE WHEN status = 'MATCHED' THEN 1 ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN status = 'MATCHED' THEN amount ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN status = 'UNMATCHED' THEN amount ELSE 0 END), 0)
	FROM bank_movements WHERE `+strings.Join(where, " AND "), args...).
		Scan(&summary.BankTotal, &summary.BankMatched, &summary.MatchedAmount, &summary.UnmatchedAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize bank movements: %w", err)
	}
	summary.BankUnmatched = summary.BankTotal - summary.BankMatched

	where, args = periodClause("date", period, []string{"ledger_account = ?"}, []any{account.LedgerAccount})
	err = s.db.QueryRowContext(ctx, `
	SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'RECONCILED' THEN 1 ELSE 0 END), 0)
	FROM accounting_movements WHERE `+strings.Join(where, " AND "), args...).
		Scan(&summary.LedgerTotal, &summary.LedgerReconciled)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize accounting movements: %w", err)
	}
	summary.LedgerUnreconciled = summary.LedgerTotal - summary.LedgerReconciled

	where, args = periodClause("b.date", period, []string{"b.bank_account_id = ?"}, []any{bankAccountID})
	rows, err := s.db.QueryContext(ctx, `
	SELECT r.type, r.status, COUNT(*)
	FROM reconciliations r JOIN bank_movements b ON b.id = r.bank_movement_id
	WHERE `+strings.Join(where, " AND ")+`
	GROUP BY r.type, r.status`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize reconciliations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var recType, status string
		var count int
		if err := rows.Scan(&recType, &status, &count); err != nil {
			return nil, err
		}
		if model.ReconciliationStatus(status) == model.StatusActive {
			summary.ActiveByType[model.ReconciliationType(recType)] += count
		} else {
			summary.Reversed += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summary.computeRate()
	return summary, nil
}

// ================================================================
// MATCHING RUNS
// ================================================================

// StartMatchingRun records the start of an automatic run
func (s *Storage) StartMatchingRun(ctx context.Context, run *model.MatchingRun) error {
	run.Status = model.RunRunning
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO matching_runs (id, bank_account_id, period_from, period_to, started_at, started_by, status)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.BankAccountID, optionalDate(run.From), optionalDate(run.To), run.StartedAt.UTC(), run.StartedBy, run.Status)
	return err
}

// CompleteMatchingRun records the outcome of an automatic run
func (s *Storage) CompleteMatchingRun(ctx context.Context, id string, applied, skipped int, status string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE matching_runs SET completed_at = ?, applied = ?, skipped = ?, status = ? WHERE id = ?
	`, at.UTC(), applied, skipped, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFoundf("matching run %s", id)
	}
	return nil
}

const runColumns = `id, bank_account_id, period_from, period_to, started_at, completed_at, started_by, applied, skipped, status`

func scanRun(row rowScanner) (*model.MatchingRun, error) {
	run := &model.MatchingRun{}
	var from, to string
	var completed sql.NullTime
	if err := row.Scan(&run.ID, &run.BankAccountID, &from, &to, &run.StartedAt, &completed,
		&run.StartedBy, &run.Applied, &run.Skipped, &run.Status); err != nil {
		return nil, err
	}
	if from != "" {
		run.From, _ = parseDate(from)
	}
	if to != "" {
		run.To, _ = parseDate(to)
	}
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	return run, nil
}

// ListMatchingRuns returns recent runs
func (s *Storage) ListMatchingRuns(ctx context.Context, limit int) ([]*model.MatchingRun, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM matching_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*model.MatchingRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetMatchingRun retrieves a run by ID
func (s *Storage) GetMatchingRun(ctx context.Context, id string) (*model.MatchingRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM matching_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("matching run %s", id)
	}
	return run, err
}

func optionalDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return formatDate(t)
}
