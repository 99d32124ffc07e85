package journal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func q(s string) qname.QName { return qname.MustParse(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

var chart = []string{
	"Assets",
	"Assets:Bank",
	"Assets:Bank:Checking",
	"Assets:Bank:Savings",
	"Income",
	"Income:Salary",
	"Expenses",
	"Expenses:Groceries",
	"Expenses:Housing",
	"Equity",
	"Equity:Suspense",
	"Equity:Opening Balances",
}

func pair(d time.Time, debit, credit, amount string) *model.Txn {
	a := dec(amount)
	return &model.Txn{Date: d, Postings: []model.Posting{
		{Account: q(debit), Amount: a},
		{Account: q(credit), Amount: a.Neg()},
	}}
}

// newTestJournal returns a journal where Assets:Bank holds 100 on 2024-01-31
// (60 checking, 40 savings) and 75 after groceries on 2024-02-01.
func newTestJournal(t *testing.T, opts ...Option) *Journal {
	t.Helper()
	j := New(opts...)
	for _, n := range chart {
		require.NoError(t, j.AddAccount(model.Account{Name: q(n)}))
	}
	for _, tx := range []*model.Txn{
		pair(date(2024, 1, 5), "Assets:Bank:Checking", "Income:Salary", "60.00"),
		pair(date(2024, 1, 6), "Assets:Bank:Savings", "Income:Salary", "40.00"),
		pair(date(2024, 2, 1), "Expenses:Groceries", "Assets:Bank:Checking", "25.00"),
	} {
		_, err := j.AddTxn(tx)
		require.NoError(t, err)
	}
	return j
}

func TestBalance_RollsUpDescendants(t *testing.T) {
	j := newTestJournal(t)

	b, err := j.Balance(q("Assets:Bank"), date(2024, 1, 31))
	require.NoError(t, err)
	assertDec(t, "100", b)

	b, err = j.Balance(q("Assets:Bank"), date(2024, 2, 1))
	require.NoError(t, err)
	assertDec(t, "75", b)

	b, err = j.Balance(q("Income"), date(2024, 12, 31))
	require.NoError(t, err)
	assertDec(t, "-100", b)
}

func TestBalance_UnknownAccount(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.Balance(q("Assets:Cash"), date(2024, 1, 31))
	assert.ErrorIs(t, err, apperr.ErrUnknownAccount)
}

func TestBalance_ParentIsSumOfChildren(t *testing.T) {
	j := newTestJournal(t)
	for _, d := range []time.Time{date(2024, 1, 1), date(2024, 1, 5), date(2024, 1, 31), date(2024, 3, 1)} {
		parent, err := j.Balance(q("Assets:Bank"), d)
		require.NoError(t, err)
		sum := decimal.Zero
		for _, c := range j.Accounts().Children(q("Assets:Bank")) {
			b, err := j.Balance(c.Name, d)
			require.NoError(t, err)
			sum = sum.Add(b)
		}
		assert.True(t, parent.Equal(sum), "on %s: %s != %s", model.FormatDate(d), parent, sum)
	}
}

func TestBalance_LeafEqualsFlowFromStart(t *testing.T) {
	j := newTestJournal(t)
	asOf := date(2024, 2, 15)
	b, err := j.Balance(q("Assets:Bank:Checking"), asOf)
	require.NoError(t, err)
	f, err := j.Flow(q("Assets:Bank:Checking"), date(1900, 1, 1), asOf.AddDate(0, 0, 1), false)
	require.NoError(t, err)
	assert.True(t, b.Equal(f))
}

func TestFlow(t *testing.T) {
	j := newTestJournal(t)

	f, err := j.Flow(q("Assets:Bank"), date(2024, 1, 1), date(2024, 2, 1), true)
	require.NoError(t, err)
	assertDec(t, "100", f)

	// direct postings only
	f, err = j.Flow(q("Assets:Bank"), date(2024, 1, 1), date(2024, 2, 1), false)
	require.NoError(t, err)
	assertDec(t, "0", f)

	// end is exclusive
	f, err = j.Flow(q("Expenses:Groceries"), date(2024, 1, 1), date(2024, 2, 1), false)
	require.NoError(t, err)
	assertDec(t, "0", f)

	f, err = j.Flow(q("Expenses:Groceries"), date(2024, 2, 1), date(2024, 2, 1), false)
	require.NoError(t, err)
	assertDec(t, "0", f)

	_, err = j.Flow(q("Expenses"), date(2024, 2, 1), date(2024, 1, 1), true)
	assert.ErrorIs(t, err, apperr.ErrInvalidPeriod)
}

func TestBalances_MatchesSequential(t *testing.T) {
	j := newTestJournal(t)
	var qs []qname.QName
	for _, a := range j.Accounts().All() {
		qs = append(qs, a.Name)
	}
	got, err := j.Balances(context.Background(), qs, date(2024, 6, 30))
	require.NoError(t, err)
	require.Len(t, got, len(qs))
	for i, name := range qs {
		want, err := j.Balance(name, date(2024, 6, 30))
		require.NoError(t, err)
		assert.True(t, want.Equal(got[i]), name.String())
	}
}

func TestBalances_UnknownAccount(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.Balances(context.Background(), []qname.QName{q("Assets"), q("Nope")}, date(2024, 6, 30))
	assert.ErrorIs(t, err, apperr.ErrUnknownAccount)
}

func TestAddTxn_AssignsNumbers(t *testing.T) {
	j := newTestJournal(t)
	assert.Equal(t, 3, j.Len())
	assert.Equal(t, 4, j.NextTxnID())

	n, err := j.AddTxn(pair(date(2024, 1, 1), "Expenses:Housing", "Assets:Bank:Checking", "10"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, ok := j.Txn(4)
	require.True(t, ok)
	assert.Equal(t, date(2024, 1, 1), got.Date)

	// earlier date sorts first
	assert.Equal(t, 4, j.Txns()[0].ID)
}

func TestAddTxn_Errors(t *testing.T) {
	j := newTestJournal(t)

	_, err := j.AddTxn(pair(date(2024, 1, 1), "Expenses:Unknown", "Assets:Bank:Checking", "10"))
	assert.ErrorIs(t, err, apperr.ErrUnknownAccount)

	_, err = j.AddTxn(&model.Txn{Date: date(2024, 1, 1), Postings: []model.Posting{
		{Account: q("Expenses:Housing"), Amount: dec("10")},
		{Account: q("Assets:Bank:Checking"), Amount: dec("-9")},
	}})
	assert.ErrorIs(t, err, apperr.ErrUnbalancedTxn)

	dup := pair(date(2024, 1, 1), "Expenses:Housing", "Assets:Bank:Checking", "10")
	dup.ID = 2
	_, err = j.AddTxn(dup)
	assert.ErrorIs(t, err, apperr.ErrDuplicatePostingKey)

	assert.Equal(t, 3, j.Len())
}

func TestAddTxn_ReservedTag(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.AddTxn(&model.Txn{Date: date(2024, 3, 1), Postings: []model.Posting{
		{Account: q("Expenses:Housing"), Amount: dec("10"), Tags: model.Tags{"qname": "Expenses:Groceries"}},
		{Account: q("Assets:Bank:Checking"), Amount: dec("-10")},
	}})
	assert.ErrorIs(t, err, apperr.ErrReservedTag)

	err = j.AddBAssertion(model.BAssertion{
		Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("100"),
		Tags: model.Tags{"comment": "hidden"},
	})
	assert.ErrorIs(t, err, apperr.ErrReservedTag)

	assert.Equal(t, 3, j.Len())
	assert.Empty(t, j.BAssertions())
}

func TestAddTxn_Strict(t *testing.T) {
	j := newTestJournal(t, WithEnforce1N(true))
	_, err := j.AddTxn(&model.Txn{Date: date(2024, 3, 1), Postings: []model.Posting{
		{Account: q("Expenses:Groceries"), Amount: dec("10")},
		{Account: q("Expenses:Housing"), Amount: dec("20")},
		{Account: q("Assets:Bank:Checking"), Amount: dec("-30")},
	}})
	assert.ErrorIs(t, err, apperr.ErrNot1N)
}

func TestAddTxn_AutoCreateUnderExistingAccount(t *testing.T) {
	j := newTestJournal(t, WithAutoCreateParents(true))

	_, err := j.AddTxn(pair(date(2024, 3, 1), "Expenses:Housing:Rent", "Assets:Bank:Checking", "10"))
	require.NoError(t, err)
	assert.True(t, j.Accounts().Exists(q("Expenses:Housing:Rent")))

	// no ancestor registered
	_, err = j.AddTxn(pair(date(2024, 3, 1), "Liabilities:Card", "Assets:Bank:Checking", "10"))
	assert.ErrorIs(t, err, apperr.ErrUnknownAccount)
}

func TestAddBAssertion_Duplicate(t *testing.T) {
	j := newTestJournal(t)
	b := model.BAssertion{Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("100")}
	require.NoError(t, j.AddBAssertion(b))
	err := j.AddBAssertion(b)
	assert.ErrorIs(t, err, apperr.ErrDuplicateBAssertion)
	assert.Len(t, j.BAssertions(), 1)
}

func TestFailedBAssertions(t *testing.T) {
	j := newTestJournal(t)
	require.NoError(t, j.AddBAssertion(model.BAssertion{Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("100")}))
	require.NoError(t, j.AddBAssertion(model.BAssertion{Date: date(2024, 2, 29), Account: q("Assets:Bank:Checking"), Balance: dec("40")}))

	failed := j.FailedBAssertions(false)
	require.Len(t, failed, 1)
	assert.True(t, failed[0].BAssertion.Account.Equal(q("Assets:Bank:Checking")))
	assertDec(t, "35", failed[0].Actual)
	assertDec(t, "5", failed[0].Diff)
}

func TestLastBAssertion(t *testing.T) {
	j := newTestJournal(t)
	require.NoError(t, j.AddBAssertion(model.BAssertion{Date: date(2024, 2, 29), Account: q("Assets:Bank"), Balance: dec("75")}))
	require.NoError(t, j.AddBAssertion(model.BAssertion{Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("100")}))

	b, ok := j.LastBAssertion(q("Assets:Bank"))
	require.True(t, ok)
	assert.Equal(t, date(2024, 2, 29), b.Date)

	_, ok = j.LastBAssertion(q("Assets:Bank:Checking"))
	assert.False(t, ok)
}

func TestRenumber(t *testing.T) {
	j := New()
	for _, n := range chart {
		require.NoError(t, j.AddAccount(model.Account{Name: q(n)}))
	}
	for i, d := range []time.Time{date(2024, 3, 1), date(2024, 1, 1), date(2024, 2, 1)} {
		tx := pair(d, "Expenses:Groceries", "Assets:Bank:Checking", "1")
		tx.ID = (i + 1) * 10
		_, err := j.AddTxn(tx)
		require.NoError(t, err)
	}

	j.Renumber()
	first := j.Txns()
	for i, tx := range first {
		assert.Equal(t, i+1, tx.ID)
	}
	assert.Equal(t, date(2024, 1, 1), first[0].Date)
	assert.Equal(t, date(2024, 3, 1), first[2].Date)
	assert.Equal(t, 4, j.NextTxnID())

	j.Renumber()
	assert.Equal(t, first, j.Txns())
}

func TestClone_IsIndependent(t *testing.T) {
	j := newTestJournal(t)
	c := j.Clone()
	_, err := c.AddTxn(pair(date(2024, 3, 1), "Expenses:Housing", "Assets:Bank:Checking", "10"))
	require.NoError(t, err)
	assert.Equal(t, 3, j.Len())
	assert.Equal(t, 4, c.Len())
}
