package journal

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/id"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// ExportOptions shape an export. The zero value exports the journal as is.
type ExportOptions struct {
	// Enforce1N splits one-to-many txns into pairs and renumbers.
	Enforce1N         bool
	AutoCreateParents bool
	// ShortNameLen > 0 adds a short account name column with at least that
	// many segments. It is not stored on the accounts.
	ShortNameLen int
	// Suspense, when set, reconciles the stored assertions into the export.
	Suspense     qname.QName
	ForceZeroTxn bool
	// OpeningBalanceDate folds all history before it into opening txns and
	// drops earlier assertions.
	OpeningBalanceDate time.Time
	// OpeningBalanceAccount, when set, is the counterpart of one pair per
	// account; otherwise a single multi-leg txn is written.
	OpeningBalanceAccount qname.QName
	Renumber              bool
	// ExtraColumns adds the fiscal year and other-accounts columns.
	ExtraColumns     bool
	FirstFiscalMonth int
	// InheritAccountTags repeats account tags on each posting and assertion
	// row. Posting and assertion tags win on name collision.
	InheritAccountTags bool
	Headers            model.Headers
}

// Snapshot is an ordered, self-contained copy of a journal ready to be
// written out.
type Snapshot struct {
	Headers            model.Headers
	Accounts           []model.Account
	Txns               []*model.Txn
	BAssertions        []model.BAssertion
	ShortNames         map[string]string // by QName.Key, nil unless requested
	ExtraColumns       bool
	FirstFiscalMonth   int
	InheritAccountTags bool
}

func (s *Snapshot) accountTags() map[string]model.Tags {
	if !s.InheritAccountTags {
		return nil
	}
	out := make(map[string]model.Tags, len(s.Accounts))
	for _, a := range s.Accounts {
		out[a.Name.Key()] = a.Tags
	}
	return out
}

// Export builds a Snapshot of j rewritten per opts. j itself is not changed.
// Running it twice on the same journal gives identical snapshots.
func (j *Journal) Export(opts ExportOptions) (*Snapshot, error) {
	if opts.Headers == (model.Headers{}) {
		opts.Headers = model.EnglishHeaders()
	}
	if opts.FirstFiscalMonth == 0 {
		opts.FirstFiscalMonth = 1
	}
	if opts.FirstFiscalMonth < 1 || opts.FirstFiscalMonth > 12 {
		return nil, fmt.Errorf("first fiscal month %d out of range", opts.FirstFiscalMonth)
	}
	if opts.ForceZeroTxn && opts.Suspense.IsZero() {
		return nil, fmt.Errorf("force zero txn: %w: no suspense account", apperr.ErrUnknownAccount)
	}

	c := j.Clone()
	c.enforce1N = false

	if opts.AutoCreateParents {
		c.createMissingParents()
	}
	if !opts.Suspense.IsZero() {
		if _, err := c.Reconcile(AdjustOptions{Suspense: opts.Suspense, ForceZeroTxn: opts.ForceZeroTxn}); err != nil {
			return nil, fmt.Errorf("reconciling export: %w", err)
		}
	}
	if !opts.OpeningBalanceDate.IsZero() {
		if err := c.foldOpening(model.Day(opts.OpeningBalanceDate), opts.OpeningBalanceAccount); err != nil {
			return nil, err
		}
	}
	if opts.Enforce1N {
		if err := c.splitPairs(); err != nil {
			return nil, err
		}
	}
	if opts.Renumber || opts.Enforce1N {
		c.Renumber()
	}

	snap := &Snapshot{
		Headers:            opts.Headers,
		Accounts:           c.accounts.All(),
		Txns:               c.Txns(),
		BAssertions:        c.BAssertions(),
		ExtraColumns:       opts.ExtraColumns,
		FirstFiscalMonth:   opts.FirstFiscalMonth,
		InheritAccountTags: opts.InheritAccountTags,
	}
	if opts.ShortNameLen > 0 {
		snap.ShortNames = c.accounts.ShortNames(opts.ShortNameLen)
	}
	j.logger.Debug("export snapshot built",
		slog.Int("txns", len(snap.Txns)),
		slog.Int("bassertions", len(snap.BAssertions)))
	return snap, nil
}

func (j *Journal) createMissingParents() {
	for _, a := range j.accounts.All() {
		for _, anc := range a.Name.Ancestors() {
			if !j.accounts.Exists(anc) {
				// cannot fail: anc is absent and well formed
				_ = j.accounts.Add(model.Account{Name: anc}, true)
			}
		}
	}
}

// foldOpening replaces all history before date with opening txns dated date.
func (j *Journal) foldOpening(date time.Time, oba qname.QName) error {
	if !oba.IsZero() && !j.accounts.Exists(oba) {
		return fmt.Errorf("opening balance account: %w: %s", apperr.ErrUnknownAccount, oba)
	}

	direct := map[string]decimal.Decimal{}
	names := map[string]qname.QName{}
	var kept []*model.Txn
	for _, t := range j.txns {
		if !t.Date.Before(date) {
			kept = append(kept, t)
			continue
		}
		for _, p := range t.Postings {
			k := p.Account.Key()
			direct[k] = direct[k].Add(p.Amount)
			names[k] = p.Account
		}
	}

	var accts []qname.QName
	for k, b := range direct {
		if !b.IsZero() {
			accts = append(accts, names[k])
		}
	}
	slices.SortFunc(accts, qname.Compare)

	j.txns = kept
	j.byID = make(map[int]*model.Txn, len(kept))
	for _, t := range kept {
		j.byID[t.ID] = t
	}
	for k, b := range j.bassertions {
		if b.Date.Before(date) {
			delete(j.bassertions, k)
		}
	}

	var opening [][]model.Posting
	if oba.IsZero() {
		if len(accts) > 0 {
			var ps []model.Posting
			for _, a := range accts {
				ps = append(ps, model.Posting{Account: a, Amount: direct[a.Key()]})
			}
			opening = append(opening, ps)
		}
	} else {
		for _, a := range accts {
			if a.Equal(oba) {
				continue
			}
			b := direct[a.Key()]
			opening = append(opening, []model.Posting{
				{Account: a, Amount: b},
				{Account: oba, Amount: b.Neg()},
			})
		}
	}

	for _, ps := range opening {
		t, err := model.NewTxn(date, ps, false)
		if err != nil {
			return fmt.Errorf("opening balance: %w", err)
		}
		if _, err := j.AddTxn(t); err != nil {
			return fmt.Errorf("opening balance: %w", err)
		}
	}
	j.logger.Debug("history folded",
		slog.String("date", model.FormatDate(date)),
		slog.Int("opening_txns", len(opening)))
	return nil
}

func (j *Journal) splitPairs() error {
	var out []*model.Txn
	for _, t := range j.txns {
		pairs, err := t.SplitPairs()
		if err != nil {
			return fmt.Errorf("splitting into pairs: %w", err)
		}
		out = append(out, pairs...)
	}

	// pairs share their parent's number until renumbered
	keys := make([]id.Key, len(out))
	for i, t := range out {
		keys[i] = id.Key{Date: t.Date, ID: t.ID}
	}
	next := id.Renumber(keys)
	j.txns = out
	j.byID = make(map[int]*model.Txn, len(out))
	j.seq = id.Sequence{}
	for i, t := range out {
		t.SetID(next[i])
		j.byID[t.ID] = t
		j.seq.Observe(t.ID)
	}
	return nil
}

// FiscalYear returns the fiscal year of d when the fiscal year starts in
// firstMonth. A fiscal year is named after the calendar year it ends in.
func FiscalYear(d time.Time, firstMonth int) int {
	if firstMonth <= 1 || int(d.Month()) < firstMonth {
		return d.Year()
	}
	return d.Year() + 1
}
