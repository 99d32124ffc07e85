package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// Posting is one leg of a transaction (one row in transactions.csv).
type Posting struct {
	Date      time.Time
	Account   qname.QName
	Amount    decimal.Decimal // positive = debit, negative = credit
	Comment   string
	Reference string    // statement description from the bank
	StmtDate  time.Time // zero = same as Date
	Tags      Tags
}

// StatementDate returns StmtDate, or Date when it is unset.
func (p Posting) StatementDate() time.Time {
	if p.StmtDate.IsZero() {
		return p.Date
	}
	return p.StmtDate
}

func (p Posting) clone() Posting {
	p.Tags = p.Tags.Clone()
	return p
}

// Txn is a dated group of postings that nets to zero.
type Txn struct {
	ID       int
	Date     time.Time
	Postings []Posting
}

// NewTxn validates postings and builds a Txn dated date. Postings without a
// date take the transaction date. The ID is left at zero for the journal to
// assign.
//
// In strict mode (enforce1N) the txn must have exactly one positive and one
// negative posting. Two zero postings are also accepted; reconciliation writes
// those as checkpoints.
func NewTxn(date time.Time, postings []Posting, enforce1N bool) (*Txn, error) {
	date = Day(date)
	ps := make([]Posting, len(postings))
	for i, p := range postings {
		p = p.clone()
		if p.Account.IsZero() {
			return nil, fmt.Errorf("posting %d: %w", i+1, apperr.ErrMalformedName)
		}
		switch {
		case p.Date.IsZero():
			p.Date = date
		case !Day(p.Date).Equal(date):
			return nil, fmt.Errorf("%w: posting %d on %s dated %s, txn dated %s",
				apperr.ErrInconsistentDate, i+1, p.Account, FormatDate(p.Date), FormatDate(date))
		default:
			p.Date = date
		}
		if !p.StmtDate.IsZero() {
			p.StmtDate = Day(p.StmtDate)
		}
		ps[i] = p
	}

	t := &Txn{Date: date, Postings: ps}
	if len(ps) < 2 {
		return nil, fmt.Errorf("%w: %d posting(s), need at least 2", apperr.ErrUnbalancedTxn, len(ps))
	}
	if sum := t.Sum(); !sum.IsZero() {
		return nil, fmt.Errorf("%w: postings sum to %s", apperr.ErrUnbalancedTxn, sum)
	}
	if enforce1N && !t.Is1N() {
		pos, neg, _ := t.signs()
		return nil, fmt.Errorf("%w: %d postings, %d positive, %d negative",
			apperr.ErrNot1N, len(ps), pos, neg)
	}
	return t, nil
}

// SetID overrides the transaction number.
func (t *Txn) SetID(id int) { t.ID = id }

// Sum returns the sum of the posting amounts.
func (t *Txn) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range t.Postings {
		sum = sum.Add(p.Amount)
	}
	return sum
}

func (t *Txn) signs() (pos, neg, zero int) {
	for _, p := range t.Postings {
		switch p.Amount.Sign() {
		case 1:
			pos++
		case -1:
			neg++
		default:
			zero++
		}
	}
	return pos, neg, zero
}

// Is1N reports whether t has exactly one positive and one negative posting,
// or is a two-posting zero checkpoint.
func (t *Txn) Is1N() bool {
	if len(t.Postings) != 2 {
		return false
	}
	pos, neg, zero := t.signs()
	return (pos == 1 && neg == 1) || zero == 2
}

// Accounts returns the distinct accounts of t in posting order.
func (t *Txn) Accounts() []qname.QName {
	seen := make(map[string]bool, len(t.Postings))
	var out []qname.QName
	for _, p := range t.Postings {
		if seen[p.Account.Key()] {
			continue
		}
		seen[p.Account.Key()] = true
		out = append(out, p.Account)
	}
	return out
}

// Clone returns a deep copy of t.
func (t *Txn) Clone() *Txn {
	c := &Txn{ID: t.ID, Date: t.Date, Postings: make([]Posting, len(t.Postings))}
	for i, p := range t.Postings {
		c.Postings[i] = p.clone()
	}
	return c
}

// SplitPairs rewrites a one-to-many txn as one-to-one pairs. The single
// posting on one side is split to balance each posting on the other side.
// Pairs keep the ID of t. A txn already in 1-1 form is returned as is.
func (t *Txn) SplitPairs() ([]*Txn, error) {
	if t.Is1N() {
		return []*Txn{t.Clone()}, nil
	}

	pos, neg, _ := t.signs()
	single := -1
	for i, p := range t.Postings {
		if (pos == 1 && p.Amount.Sign() > 0) || (pos != 1 && neg == 1 && p.Amount.Sign() < 0) {
			single = i
			break
		}
	}
	if single < 0 {
		return nil, fmt.Errorf("txn %d: %w: %d positive, %d negative postings",
			t.ID, apperr.ErrNot1N, pos, neg)
	}

	out := make([]*Txn, 0, len(t.Postings)-1)
	for i, p := range t.Postings {
		if i == single {
			continue
		}
		head := t.Postings[single].clone()
		head.Amount = p.Amount.Neg()
		out = append(out, &Txn{ID: t.ID, Date: t.Date, Postings: []Posting{head, p.clone()}})
	}
	return out, nil
}
