package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/brightsidebudget/bsb/internal/qname"
)

// BAssertion states the expected balance of an account, descendants
// included, at the end of a day.
type BAssertion struct {
	Date    time.Time
	Account qname.QName
	Balance decimal.Decimal
	Comment string
	Tags    Tags
}

// Key identifies an assertion within a journal: one per (account, date).
func (b BAssertion) Key() string {
	return FormatDate(b.Date) + "|" + b.Account.Key()
}
