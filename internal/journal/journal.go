// Package journal is the ledger aggregate: accounts, transactions and
// balance assertions, with the queries and rewrites that operate on them.
package journal

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/brightsidebudget/bsb/internal/accounts"
	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/id"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// Journal owns the accounts, transactions and balance assertions of one
// ledger. It is not safe for concurrent mutation.
type Journal struct {
	accounts    *accounts.Registry
	txns        []*model.Txn
	byID        map[int]*model.Txn
	bassertions map[string]model.BAssertion
	seq         id.Sequence

	enforce1N  bool
	autoCreate bool
	logger     *slog.Logger
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = l
	}
}

// WithEnforce1N requires every transaction to be one debit to one credit.
func WithEnforce1N(on bool) Option {
	return func(j *Journal) {
		j.enforce1N = on
	}
}

// WithAutoCreateParents materializes missing ancestor accounts, and unknown
// posting accounts below an existing account.
func WithAutoCreateParents(on bool) Option {
	return func(j *Journal) {
		j.autoCreate = on
	}
}

// New returns an empty journal.
func New(opts ...Option) *Journal {
	j := &Journal{
		accounts:    accounts.NewRegistry(),
		byID:        make(map[int]*model.Txn),
		bassertions: make(map[string]model.BAssertion),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(j)
	}
	return j
}

// Accounts returns the account registry.
func (j *Journal) Accounts() *accounts.Registry { return j.accounts }

// Enforce1N reports whether the journal runs in strict mode.
func (j *Journal) Enforce1N() bool { return j.enforce1N }

// Logger returns the journal's logger.
func (j *Journal) Logger() *slog.Logger { return j.logger }

// AddAccount registers acct.
func (j *Journal) AddAccount(acct model.Account) error {
	return j.accounts.Add(acct, j.autoCreate)
}

// resolveAccount checks that q may be referenced, creating it when
// auto-creation is on and an ancestor exists.
func (j *Journal) resolveAccount(q qname.QName) error {
	if j.accounts.Exists(q) {
		return nil
	}
	if j.autoCreate && j.accounts.IsValidQName(q) {
		j.logger.Debug("auto-creating account", slog.String("account", q.String()))
		return j.accounts.Add(model.Account{Name: q}, true)
	}
	return fmt.Errorf("%w: %s", apperr.ErrUnknownAccount, q)
}

func (j *Journal) checkAccount(q qname.QName) error {
	if j.accounts.Exists(q) || (j.autoCreate && j.accounts.IsValidQName(q)) {
		return nil
	}
	return fmt.Errorf("%w: %s", apperr.ErrUnknownAccount, q)
}

// prepare validates t against the journal without mutating it.
func (j *Journal) prepare(t *model.Txn) (*model.Txn, error) {
	v, err := model.NewTxn(t.Date, t.Postings, j.enforce1N)
	if err != nil {
		return nil, fmt.Errorf("txn %d: %w", t.ID, err)
	}
	v.SetID(t.ID)
	for _, p := range v.Postings {
		if err := j.checkAccount(p.Account); err != nil {
			return nil, fmt.Errorf("txn %d: %w", t.ID, err)
		}
		if err := p.Tags.Validate(); err != nil {
			return nil, fmt.Errorf("txn %d: %w", t.ID, err)
		}
	}
	if v.ID != 0 {
		if _, ok := j.byID[v.ID]; ok {
			return nil, fmt.Errorf("%w: txn %d already exists", apperr.ErrDuplicatePostingKey, v.ID)
		}
	}
	return v, nil
}

func (j *Journal) insert(t *model.Txn) int {
	for _, p := range t.Postings {
		// checked by prepare
		_ = j.resolveAccount(p.Account)
	}
	if t.ID == 0 {
		t.SetID(j.seq.Next())
	} else {
		j.seq.Observe(t.ID)
	}
	j.txns = append(j.txns, t)
	j.byID[t.ID] = t
	return t.ID
}

// AddTxn validates and inserts a copy of t. A zero ID is replaced with the
// next free number. Returns the transaction number.
func (j *Journal) AddTxn(t *model.Txn) (int, error) {
	v, err := j.prepare(t)
	if err != nil {
		return 0, err
	}
	return j.insert(v), nil
}

// AddBAssertion inserts b. At most one assertion per account and date.
func (j *Journal) AddBAssertion(b model.BAssertion) error {
	b.Date = model.Day(b.Date)
	if err := j.checkAccount(b.Account); err != nil {
		return fmt.Errorf("balance assertion %s: %w", model.FormatDate(b.Date), err)
	}
	if err := b.Tags.Validate(); err != nil {
		return fmt.Errorf("balance assertion %s: %w", model.FormatDate(b.Date), err)
	}
	if _, ok := j.bassertions[b.Key()]; ok {
		return fmt.Errorf("%w: %s on %s", apperr.ErrDuplicateBAssertion, b.Account, model.FormatDate(b.Date))
	}
	_ = j.resolveAccount(b.Account)
	b.Tags = b.Tags.Clone()
	j.bassertions[b.Key()] = b
	return nil
}

// NextTxnID returns the number the next inserted txn would get.
func (j *Journal) NextTxnID() int { return j.seq.Last() + 1 }

// Txn returns a copy of the transaction numbered n.
func (j *Journal) Txn(n int) (*model.Txn, bool) {
	t, ok := j.byID[n]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Len returns the number of transactions.
func (j *Journal) Len() int { return len(j.txns) }

// Txns returns copies of all transactions ordered by (date, number).
func (j *Journal) Txns() []*model.Txn {
	out := make([]*model.Txn, len(j.txns))
	for i, t := range j.txns {
		out[i] = t.Clone()
	}
	sortTxns(out)
	return out
}

// Postings returns every posting in transaction order.
func (j *Journal) Postings() []model.Posting {
	var out []model.Posting
	for _, t := range j.Txns() {
		out = append(out, t.Postings...)
	}
	return out
}

// BAssertions returns all assertions ordered by (date, account).
func (j *Journal) BAssertions() []model.BAssertion {
	out := make([]model.BAssertion, 0, len(j.bassertions))
	for _, b := range j.bassertions {
		b.Tags = b.Tags.Clone()
		out = append(out, b)
	}
	sortBAssertions(out)
	return out
}

// Renumber reassigns transaction numbers 1..N ordered by (date, number).
func (j *Journal) Renumber() {
	keys := make([]id.Key, len(j.txns))
	for i, t := range j.txns {
		keys[i] = id.Key{Date: t.Date, ID: t.ID}
	}
	next := id.Renumber(keys)

	j.byID = make(map[int]*model.Txn, len(j.txns))
	j.seq = id.Sequence{}
	for i, t := range j.txns {
		t.SetID(next[i])
		j.byID[t.ID] = t
		j.seq.Observe(t.ID)
	}
	j.logger.Debug("renumbered transactions", slog.Int("count", len(j.txns)))
}

// Clone returns an independent copy of j with the same options.
func (j *Journal) Clone() *Journal {
	c := &Journal{
		accounts:    j.accounts.Clone(),
		txns:        make([]*model.Txn, len(j.txns)),
		byID:        make(map[int]*model.Txn, len(j.txns)),
		bassertions: make(map[string]model.BAssertion, len(j.bassertions)),
		seq:         j.seq,
		enforce1N:   j.enforce1N,
		autoCreate:  j.autoCreate,
		logger:      j.logger,
	}
	for i, t := range j.txns {
		ct := t.Clone()
		c.txns[i] = ct
		c.byID[ct.ID] = ct
	}
	for k, b := range j.bassertions {
		b.Tags = b.Tags.Clone()
		c.bassertions[k] = b
	}
	return c
}

func sortTxns(ts []*model.Txn) {
	slices.SortStableFunc(ts, func(a, b *model.Txn) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func sortBAssertions(bs []model.BAssertion) {
	slices.SortStableFunc(bs, func(a, b model.BAssertion) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return qname.Compare(a.Account, b.Account)
	})
}
