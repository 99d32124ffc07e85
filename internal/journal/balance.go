package journal

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// Balance sums the postings on q and its descendants dated on or before asOf.
// Nothing is cached; every call scans the postings.
func (j *Journal) Balance(q qname.QName, asOf time.Time) (decimal.Decimal, error) {
	return j.balance(q, asOf, false)
}

// StatementBalance is Balance using statement dates.
func (j *Journal) StatementBalance(q qname.QName, asOf time.Time) (decimal.Decimal, error) {
	return j.balance(q, asOf, true)
}

func (j *Journal) balance(q qname.QName, asOf time.Time, useStmtDate bool) (decimal.Decimal, error) {
	if !j.accounts.Exists(q) {
		return decimal.Zero, fmt.Errorf("%w: %s", apperr.ErrUnknownAccount, q)
	}
	asOf = model.Day(asOf)
	sum := decimal.Zero
	for _, t := range j.txns {
		for _, p := range t.Postings {
			d := p.Date
			if useStmtDate {
				d = p.StatementDate()
			}
			if d.After(asOf) || !p.Account.IsEqualOrDescendantOf(q) {
				continue
			}
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

// Flow sums the postings on q dated in [start, end). Descendants are included
// only when hierarchical is set.
func (j *Journal) Flow(q qname.QName, start, end time.Time, hierarchical bool) (decimal.Decimal, error) {
	if !j.accounts.Exists(q) {
		return decimal.Zero, fmt.Errorf("%w: %s", apperr.ErrUnknownAccount, q)
	}
	start, end = model.Day(start), model.Day(end)
	if end.Before(start) {
		return decimal.Zero, fmt.Errorf("%w: end %s before start %s",
			apperr.ErrInvalidPeriod, model.FormatDate(end), model.FormatDate(start))
	}
	sum := decimal.Zero
	for _, t := range j.txns {
		if t.Date.Before(start) || !t.Date.Before(end) {
			continue
		}
		for _, p := range t.Postings {
			if p.Account.Equal(q) || (hierarchical && p.Account.IsDescendantOf(q)) {
				sum = sum.Add(p.Amount)
			}
		}
	}
	return sum, nil
}

// Balances computes Balance for each of qs in parallel. Results are indexed
// like qs.
func (j *Journal) Balances(ctx context.Context, qs []qname.QName, asOf time.Time) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(qs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, q := range qs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := j.Balance(q, asOf)
			if err != nil {
				return err
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FailedBAssertion is an assertion that does not hold.
type FailedBAssertion struct {
	BAssertion model.BAssertion
	Actual     decimal.Decimal
	Diff       decimal.Decimal // expected - actual
}

// FailedBAssertions returns the assertions whose balance differs from the
// recorded history, ordered by (date, account).
func (j *Journal) FailedBAssertions(useStmtDate bool) []FailedBAssertion {
	var out []FailedBAssertion
	for _, b := range j.BAssertions() {
		actual, err := j.balance(b.Account, b.Date, useStmtDate)
		if err != nil {
			// assertions only reference registered accounts
			continue
		}
		if !actual.Equal(b.Balance) {
			out = append(out, FailedBAssertion{BAssertion: b, Actual: actual, Diff: b.Balance.Sub(actual)})
		}
	}
	return out
}

// LastBAssertion returns the latest assertion on exactly q.
func (j *Journal) LastBAssertion(q qname.QName) (model.BAssertion, bool) {
	var (
		last  model.BAssertion
		found bool
	)
	for _, b := range j.bassertions {
		if b.Account.Equal(q) && (!found || b.Date.After(last.Date)) {
			last, found = b, true
		}
	}
	return last, found
}
