package journal

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/model"
)

// Load builds a journal from typed records. Nothing is returned unless every
// record is valid.
func Load(accts []model.Account, postings []model.PostingRecord, bs []model.BAssertion, opts ...Option) (*Journal, error) {
	j := New(opts...)
	for _, a := range accts {
		if err := j.AddAccount(a); err != nil {
			return nil, fmt.Errorf("loading accounts: %w", err)
		}
	}
	if _, err := j.AddPostingRecords(postings); err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}
	for _, b := range bs {
		if err := j.AddBAssertion(b); err != nil {
			return nil, fmt.Errorf("loading balance assertions: %w", err)
		}
	}
	j.logger.Info("journal loaded",
		slog.Int("accounts", j.accounts.Len()),
		slog.Int("txns", len(j.txns)),
		slog.Int("bassertions", len(j.bassertions)))
	return j, nil
}

// LoadRecords is Load for loosely-typed records.
func LoadRecords(acctRecs, postingRecs, bRecs []map[string]string, opts ...Option) (*Journal, error) {
	accts, err := model.ParseAccountRecords(acctRecs)
	if err != nil {
		return nil, err
	}
	postings, err := model.ParsePostingRecords(postingRecs)
	if err != nil {
		return nil, err
	}
	bs, err := model.ParseBAssertionRecords(bRecs)
	if err != nil {
		return nil, err
	}
	return Load(accts, postings, bs, opts...)
}

// AddPostingRecords groups records by txn number and inserts one txn per
// group, keeping the numbers. A number already used in the journal is an
// ErrDuplicatePostingKey. The journal is unchanged on error.
func (j *Journal) AddPostingRecords(recs []model.PostingRecord) ([]int, error) {
	var order []int
	groups := make(map[int][]model.PostingRecord)
	for _, r := range recs {
		if r.Txn < 1 {
			return nil, fmt.Errorf("posting on %s: invalid txn number %d", r.Posting.Account, r.Txn)
		}
		if _, ok := groups[r.Txn]; !ok {
			order = append(order, r.Txn)
		}
		groups[r.Txn] = append(groups[r.Txn], r)
	}

	txns := make([]*model.Txn, 0, len(order))
	for _, n := range order {
		if _, ok := j.byID[n]; ok {
			return nil, fmt.Errorf("%w: txn %d already exists", apperr.ErrDuplicatePostingKey, n)
		}
		postings, err := inferElided(groups[n])
		if err != nil {
			return nil, fmt.Errorf("txn %d: %w", n, err)
		}
		t, err := j.prepare(&model.Txn{ID: n, Date: postings[0].Date, Postings: postings})
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}

	ids := make([]int, len(txns))
	for i, t := range txns {
		ids[i] = j.insert(t)
	}
	return ids, nil
}

// inferElided fills in at most one blank amount with the negated sum of the
// others.
func inferElided(recs []model.PostingRecord) ([]model.Posting, error) {
	out := make([]model.Posting, len(recs))
	elided := -1
	sum := decimal.Zero
	for i, r := range recs {
		out[i] = r.Posting
		if r.AmountElided {
			if elided >= 0 {
				return nil, fmt.Errorf("%w: more than one posting without an amount", apperr.ErrUnbalancedTxn)
			}
			elided = i
			continue
		}
		sum = sum.Add(r.Posting.Amount)
	}
	if elided >= 0 {
		out[elided].Amount = sum.Neg()
	}
	return out, nil
}
