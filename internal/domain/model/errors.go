package model

import (
	"errors"
	"fmt"
)

// Error kinds returned by engine operations. Callers match them with
// errors.Is; every one of them leaves the store unchanged.
var (
	ErrStaleSelection        = errors.New("stale selection")
	ErrAlreadyReconciled     = errors.New("already reconciled")
	ErrAlreadyReversed       = errors.New("already reversed")
	ErrUnbalancedRejected    = errors.New("unbalanced match rejected")
	ErrNotFound              = errors.New("not found")
	ErrMissingAccountMapping = errors.New("missing account mapping")
	ErrInvalidRequest        = errors.New("invalid request")
)

// Wire names for the error kinds.
const (
	KindStaleSelection        = "stale_selection"
	KindAlreadyReconciled     = "already_reconciled"
	KindAlreadyReversed       = "already_reversed"
	KindUnbalancedRejected    = "unbalanced_rejected"
	KindNotFound              = "not_found"
	KindMissingAccountMapping = "missing_account_mapping"
	KindInvalidRequest        = "invalid_request"
	KindInternal              = "internal_error"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrStaleSelection, KindStaleSelection},
	{ErrAlreadyReconciled, KindAlreadyReconciled},
	{ErrAlreadyReversed, KindAlreadyReversed},
	{ErrUnbalancedRejected, KindUnbalancedRejected},
	{ErrNotFound, KindNotFound},
	{ErrMissingAccountMapping, KindMissingAccountMapping},
	{ErrInvalidRequest, KindInvalidRequest},
}

// KindOf returns the wire name of err's kind, or KindInternal.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Invalidf returns an ErrInvalidRequest with a formatted message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// NotFoundf returns an ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
