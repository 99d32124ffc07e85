package journal

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// AdjustOptions control AdjustForBAssertions.
type AdjustOptions struct {
	// Suspense receives the offsetting posting of every adjustment.
	Suspense qname.QName
	// ForceZeroTxn writes a zero txn for assertions that already hold,
	// unless one is already there.
	ForceZeroTxn bool
	Comment      string
	// Redirect posts the adjustment for an asserted account (keyed by
	// QName.Key) on one of its descendants instead.
	Redirect map[string]qname.QName
	// UseStmtDate compares against statement-date balances.
	UseStmtDate bool
}

// AdjustForBAssertions inserts a two-posting txn for each assertion in bs
// that does not hold, so that afterwards every one of them does. Assertions
// are handled by ascending date, deeper accounts first, so an adjustment never
// disturbs one already made. bs itself is not added to the journal.
//
// Input is validated before anything is inserted.
func (j *Journal) AdjustForBAssertions(bs []model.BAssertion, opts AdjustOptions) ([]*model.Txn, error) {
	if err := j.validateAdjust(bs, opts); err != nil {
		return nil, err
	}

	todo := slices.Clone(bs)
	for i := range todo {
		todo[i].Date = model.Day(todo[i].Date)
	}
	slices.SortStableFunc(todo, func(a, b model.BAssertion) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Account.Depth(), a.Account.Depth()); c != 0 {
			return c
		}
		return qname.Compare(a.Account, b.Account)
	})

	var added []*model.Txn
	for _, b := range todo {
		actual, err := j.balance(b.Account, b.Date, opts.UseStmtDate)
		if err != nil {
			return added, err
		}
		diff := b.Balance.Sub(actual)
		if diff.IsZero() && !opts.ForceZeroTxn {
			continue
		}

		target := b.Account
		if r, ok := opts.Redirect[b.Account.Key()]; ok {
			target = r
		}
		if diff.IsZero() && j.hasZeroAdjustment(b.Date, target, opts.Suspense) {
			continue
		}
		t, err := model.NewTxn(b.Date, []model.Posting{
			{Account: target, Amount: diff, Comment: opts.Comment},
			{Account: opts.Suspense, Amount: diff.Neg(), Comment: opts.Comment},
		}, j.enforce1N)
		if err != nil {
			return added, fmt.Errorf("adjusting %s on %s: %w", b.Account, model.FormatDate(b.Date), err)
		}
		n, err := j.AddTxn(t)
		if err != nil {
			return added, fmt.Errorf("adjusting %s on %s: %w", b.Account, model.FormatDate(b.Date), err)
		}
		j.logger.Info("balance adjusted",
			slog.String("account", target.String()),
			slog.String("date", model.FormatDate(b.Date)),
			slog.String("amount", diff.String()),
			slog.Int("txn", n))
		added = append(added, j.byID[n].Clone())
	}
	return added, nil
}

// hasZeroAdjustment reports whether a zero txn between target and suspense
// already exists on d.
func (j *Journal) hasZeroAdjustment(d time.Time, target, suspense qname.QName) bool {
	for _, t := range j.txns {
		if !t.Date.Equal(d) || len(t.Postings) != 2 {
			continue
		}
		a, b := t.Postings[0], t.Postings[1]
		if !a.Amount.IsZero() || !b.Amount.IsZero() {
			continue
		}
		if (a.Account.Equal(target) && b.Account.Equal(suspense)) ||
			(a.Account.Equal(suspense) && b.Account.Equal(target)) {
			return true
		}
	}
	return false
}

func (j *Journal) validateAdjust(bs []model.BAssertion, opts AdjustOptions) error {
	seen := make(map[string]bool, len(bs))
	for _, b := range bs {
		b.Date = model.Day(b.Date)
		if seen[b.Key()] {
			return fmt.Errorf("%w: %s on %s", apperr.ErrDuplicateBAssertion, b.Account, model.FormatDate(b.Date))
		}
		seen[b.Key()] = true
	}
	if len(bs) == 0 {
		return nil
	}

	if opts.Suspense.IsZero() {
		return fmt.Errorf("%w: no suspense account", apperr.ErrUnknownAccount)
	}
	if !j.accounts.Exists(opts.Suspense) {
		return fmt.Errorf("suspense: %w: %s", apperr.ErrUnknownAccount, opts.Suspense)
	}

	asserted := make(map[string][]qname.QName, len(bs))
	for _, b := range bs {
		if !j.accounts.Exists(b.Account) {
			return fmt.Errorf("balance assertion: %w: %s", apperr.ErrUnknownAccount, b.Account)
		}
		if b.Account.IsEqualOrDescendantOf(opts.Suspense) || opts.Suspense.IsDescendantOf(b.Account) {
			return fmt.Errorf("%w: %s and %s", apperr.ErrSuspenseOverlap, opts.Suspense, b.Account)
		}
		d := model.FormatDate(b.Date)
		asserted[d] = append(asserted[d], b.Account)
	}

	for _, b := range bs {
		r, ok := opts.Redirect[b.Account.Key()]
		if !ok {
			continue
		}
		if !r.IsEqualOrDescendantOf(b.Account) {
			return fmt.Errorf("redirect %s to %s: not a descendant", b.Account, r)
		}
		if err := j.checkAccount(r); err != nil {
			return fmt.Errorf("redirect %s: %w", b.Account, err)
		}
		for _, other := range asserted[model.FormatDate(b.Date)] {
			if other.IsDescendantOf(b.Account) && r.IsEqualOrDescendantOf(other) {
				return fmt.Errorf("%w: redirect target %s is under %s, also asserted on %s",
					apperr.ErrSuspenseOverlap, r, other, model.FormatDate(b.Date))
			}
		}
	}
	return nil
}

// Reconcile runs AdjustForBAssertions over the journal's own assertions,
// restricted to the given accounts when any are passed.
func (j *Journal) Reconcile(opts AdjustOptions, only ...qname.QName) ([]*model.Txn, error) {
	var bs []model.BAssertion
	for _, b := range j.BAssertions() {
		if len(only) > 0 && !slices.ContainsFunc(only, b.Account.Equal) {
			continue
		}
		bs = append(bs, b)
	}
	return j.AdjustForBAssertions(bs, opts)
}
