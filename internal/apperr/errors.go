// Package apperr defines the error kinds surfaced by the ledger engine.
//
// Callers match kinds with errors.Is against the sentinels, and recover
// row or field details with errors.As on the typed errors.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedName       = errors.New("malformed account name")
	ErrDuplicateAccount    = errors.New("duplicate account")
	ErrDuplicateBAssertion = errors.New("duplicate balance assertion")
	ErrDuplicatePostingKey = errors.New("duplicate posting key")
	ErrUnbalancedTxn       = errors.New("unbalanced transaction")
	ErrNot1N               = errors.New("transaction is not one debit to one credit")
	ErrInconsistentDate    = errors.New("inconsistent posting date")
	ErrUnknownAccount      = errors.New("unknown account")
	ErrAmbiguousName       = errors.New("ambiguous account name")
	ErrInvalidPeriod       = errors.New("invalid period")
	ErrSuspenseOverlap     = errors.New("suspense account overlaps asserted account")
	ErrNoRuleMatched       = errors.New("no import rule matched")
	ErrReservedTag         = errors.New("reserved tag name")
	ErrDuplicateColumn     = errors.New("duplicate column")
)

// MissingFieldError reports a bulk record without a required key.
type MissingFieldError struct {
	Kind  string // "account", "posting", "bassertion"
	Index int
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s record %d: missing field %q", e.Kind, e.Index, e.Field)
}

// RowShapeError reports a tabular row whose width does not match its header.
type RowShapeError struct {
	Row  int // 1-based, header is row 1
	Got  int
	Want int
}

func (e *RowShapeError) Error() string {
	return fmt.Sprintf("row %d: expected %d fields, got %d", e.Row, e.Want, e.Got)
}
