// Package model defines the records the reconciliation engine works on:
// bank movements from imported statements, accounting movements from the
// general ledger, and the reconciliations that link them.
//
// Amounts are always int64 minor currency units. Nothing in this package
// (or anything that depends on it) compares money as floating point.
package model

import (
	"strings"
	"time"
)

// BankStatus is the matching state of a bank movement.
type BankStatus string

const (
	BankUnmatched BankStatus = "UNMATCHED"
	BankMatched   BankStatus = "MATCHED"
)

// LedgerStatus is the reconciliation state of an accounting movement.
type LedgerStatus string

const (
	LedgerUnreconciled LedgerStatus = "UNRECONCILED"
	LedgerReconciled   LedgerStatus = "RECONCILED"
)

// BankAccount is the owner of a statement stream. LedgerAccount is the
// general-ledger account its accounting movements post to.
type BankAccount struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	LedgerAccount string `json:"ledger_account" yaml:"ledger_account"`
}

// BankMovement is one line of an imported bank statement.
type BankMovement struct {
	ID             int64      `json:"id"`
	BankAccountID  string     `json:"bank_account_id"`
	Date           time.Time  `json:"date"`
	Amount         int64      `json:"amount"`
	Description    string     `json:"description"`
	Reference      string     `json:"reference,omitempty"`
	RunningBalance *int64     `json:"running_balance,omitempty"`
	Status         BankStatus `json:"status"`
}

// IsUnmatched reports whether the movement is still open for matching.
func (b BankMovement) IsUnmatched() bool {
	return b.Status == BankUnmatched
}

// AccountingMovement is one debit/credit line of the general ledger.
// Exactly one of Debit and Credit is non-zero.
type AccountingMovement struct {
	ID            int64        `json:"id"`
	LedgerAccount string       `json:"ledger_account"`
	Document      string       `json:"document"`
	Date          time.Time    `json:"date"`
	Debit         int64        `json:"debit"`
	Credit        int64        `json:"credit"`
	Concept       string       `json:"concept"`
	Status        LedgerStatus `json:"status"`
}

// Valor is the signed value of the line, debit minus credit.
func (a AccountingMovement) Valor() int64 {
	return a.Debit - a.Credit
}

// IsUnreconciled reports whether the line is still open for matching.
func (a AccountingMovement) IsUnreconciled() bool {
	return a.Status == LedgerUnreconciled
}

// Validate checks the one-sided debit/credit rule.
func (a AccountingMovement) Validate() error {
	switch {
	case a.Debit < 0 || a.Credit < 0:
		return Invalidf("accounting movement %q: debit and credit must not be negative", a.Document)
	case a.Debit != 0 && a.Credit != 0:
		return Invalidf("accounting movement %q: only one of debit or credit may be set", a.Document)
	case a.Debit == 0 && a.Credit == 0:
		return Invalidf("accounting movement %q: debit or credit is required", a.Document)
	case strings.TrimSpace(a.LedgerAccount) == "":
		return Invalidf("accounting movement %q: ledger account is required", a.Document)
	}
	return nil
}

// Validate checks the fields the ingestion collaborator is expected to supply.
func (b BankMovement) Validate() error {
	switch {
	case b.BankAccountID == "":
		return Invalidf("bank movement: bank account is required")
	case b.Date.IsZero():
		return Invalidf("bank movement %q: date is required", b.Description)
	case b.Amount == 0:
		return Invalidf("bank movement %q: amount must not be zero", b.Description)
	}
	return nil
}

// DateRange is an inclusive range of calendar days. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls within the range, comparing by day.
func (r DateRange) Contains(t time.Time) bool {
	day := TruncateDay(t)
	if !r.From.IsZero() && day.Before(TruncateDay(r.From)) {
		return false
	}
	if !r.To.IsZero() && day.After(TruncateDay(r.To)) {
		return false
	}
	return true
}

// Around returns the range of days within window days of t.
func Around(t time.Time, window int) DateRange {
	day := TruncateDay(t)
	return DateRange{
		From: day.AddDate(0, 0, -window),
		To:   day.AddDate(0, 0, window),
	}
}

// TruncateDay drops the time of day, keeping the date in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	diff := TruncateDay(a).Sub(TruncateDay(b)).Hours() / 24
	if diff < 0 {
		diff = -diff
	}
	return int(diff + 0.5)
}
