package journal

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

type postingRef struct {
	txn *model.Txn
	idx int
}

func (r postingRef) posting() *model.Posting { return &r.txn.Postings[r.idx] }

// FixStatementDates makes the statement balance of q match its assertions by
// pushing the statement date of some recent postings to the day after the
// assertion. Candidates are postings directly on q whose statement date is
// within windowDays before the assertion. Returns the number of postings
// changed.
func (j *Journal) FixStatementDates(q qname.QName, windowDays int) (int, error) {
	if !j.accounts.Exists(q) {
		return 0, fmt.Errorf("%w: %s", apperr.ErrUnknownAccount, q)
	}

	var bs []model.BAssertion
	for _, b := range j.BAssertions() {
		if b.Account.Equal(q) {
			bs = append(bs, b)
		}
	}

	changed := 0
	for _, b := range bs {
		s, err := j.StatementBalance(q, b.Date)
		if err != nil {
			return changed, err
		}
		if s.Equal(b.Balance) {
			continue
		}
		extra := s.Sub(b.Balance)

		start := b.Date.AddDate(0, 0, -windowDays)
		var refs []postingRef
		for _, t := range j.txns {
			for i, p := range t.Postings {
				d := p.StatementDate()
				if p.Account.Equal(q) && !d.Before(start) && !d.After(b.Date) {
					refs = append(refs, postingRef{txn: t, idx: i})
				}
			}
		}
		// latest first, so recent postings are preferred
		slices.SortStableFunc(refs, func(a, b postingRef) int {
			return b.posting().StatementDate().Compare(a.posting().StatementDate())
		})

		amounts := make([]decimal.Decimal, len(refs))
		for i, r := range refs {
			amounts[i] = r.posting().Amount
		}
		subset := subsetSum(amounts, extra)
		if subset == nil {
			return changed, fmt.Errorf("no postings on %s sum to %s before %s",
				q, extra, model.FormatDate(b.Date))
		}
		next := b.Date.AddDate(0, 0, 1)
		for _, i := range subset {
			refs[i].posting().StmtDate = next
		}
		changed += len(subset)
		j.logger.Info("statement dates moved",
			slog.String("account", q.String()),
			slog.String("date", model.FormatDate(b.Date)),
			slog.Int("postings", len(subset)))
	}
	return changed, nil
}

// subsetSum returns the positions of a subset of amounts summing to target,
// preferring amounts near the front, or nil.
func subsetSum(amounts []decimal.Decimal, target decimal.Decimal) []int {
	type entry struct {
		sum decimal.Decimal
		idx []int
	}
	sums := map[string]entry{}
	var keys []string // insertion order keeps the result deterministic

	for i, a := range amounts {
		rest := target.Sub(a)
		if rest.IsZero() {
			return []int{i}
		}
		if e, ok := sums[rest.String()]; ok {
			return append(slices.Clone(e.idx), i)
		}
		for _, k := range slices.Clone(keys) {
			e := sums[k]
			s := e.sum.Add(a)
			if _, ok := sums[s.String()]; !ok {
				sums[s.String()] = entry{sum: s, idx: append(slices.Clone(e.idx), i)}
				keys = append(keys, s.String())
			}
		}
		if _, ok := sums[a.String()]; !ok {
			sums[a.String()] = entry{sum: a, idx: []int{i}}
			keys = append(keys, a.String())
		}
	}
	return nil
}
