package journal

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

func TestAdjust_InsertsDifference(t *testing.T) {
	j := newTestJournal(t)
	bs := []model.BAssertion{{Date: date(2024, 1, 31), Account: q("Assets:Bank:Checking"), Balance: dec("110")}}

	added, err := j.AdjustForBAssertions(bs, AdjustOptions{Suspense: q("Equity:Suspense"), Comment: "adjustment"})
	require.NoError(t, err)
	require.Len(t, added, 1)

	tx := added[0]
	assert.Equal(t, 4, tx.ID)
	assert.Equal(t, date(2024, 1, 31), tx.Date)
	require.Len(t, tx.Postings, 2)
	assert.True(t, tx.Postings[0].Account.Equal(q("Assets:Bank:Checking")))
	assertDec(t, "50", tx.Postings[0].Amount)
	assert.True(t, tx.Postings[1].Account.Equal(q("Equity:Suspense")))
	assertDec(t, "-50", tx.Postings[1].Amount)
	assert.Equal(t, "adjustment", tx.Postings[0].Comment)

	b, err := j.Balance(q("Assets:Bank:Checking"), date(2024, 1, 31))
	require.NoError(t, err)
	assertDec(t, "110", b)
}

func TestAdjust_HoldingAssertionIsSkipped(t *testing.T) {
	j := newTestJournal(t)
	bs := []model.BAssertion{{Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("100")}}

	added, err := j.AdjustForBAssertions(bs, AdjustOptions{Suspense: q("Equity:Suspense")})
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, 3, j.Len())

	added, err = j.AdjustForBAssertions(bs, AdjustOptions{Suspense: q("Equity:Suspense"), ForceZeroTxn: true})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.True(t, added[0].Postings[0].Amount.IsZero())
}

func TestReconcile_ForceZeroTxnIsIdempotent(t *testing.T) {
	j := newTestJournal(t)
	require.NoError(t, j.AddBAssertion(model.BAssertion{Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("100")}))
	opts := AdjustOptions{Suspense: q("Equity:Suspense"), ForceZeroTxn: true}

	added, err := j.Reconcile(opts)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, 4, j.Len())

	added, err = j.Reconcile(opts)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, 4, j.Len())

	// a round trip through Export keeps the count stable too
	snap, err := j.Export(ExportOptions{Suspense: q("Equity:Suspense"), ForceZeroTxn: true})
	require.NoError(t, err)
	assert.Len(t, snap.Txns, 4)
}

func TestAdjust_DeeperAccountsFirst(t *testing.T) {
	j := newTestJournal(t)
	// parent first in input; the child adjustment must not break it
	bs := []model.BAssertion{
		{Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("200")},
		{Date: date(2024, 1, 31), Account: q("Assets:Bank:Savings"), Balance: dec("90")},
	}
	added, err := j.AdjustForBAssertions(bs, AdjustOptions{Suspense: q("Equity:Suspense")})
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.True(t, added[0].Postings[0].Account.Equal(q("Assets:Bank:Savings")))
	assertDec(t, "50", added[0].Postings[0].Amount)
	assertDec(t, "50", added[1].Postings[0].Amount)

	for _, b := range bs {
		got, err := j.Balance(b.Account, b.Date)
		require.NoError(t, err)
		assert.True(t, b.Balance.Equal(got), b.Account.String())
	}
}

func TestAdjust_Redirect(t *testing.T) {
	j := newTestJournal(t)
	bs := []model.BAssertion{{Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("120")}}
	opts := AdjustOptions{
		Suspense: q("Equity:Suspense"),
		Redirect: map[string]qname.QName{q("Assets:Bank").Key(): q("Assets:Bank:Savings")},
	}
	added, err := j.AdjustForBAssertions(bs, opts)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.True(t, added[0].Postings[0].Account.Equal(q("Assets:Bank:Savings")))
}

func TestAdjust_Errors(t *testing.T) {
	tests := []struct {
		name string
		bs   []model.BAssertion
		opts AdjustOptions
		want error
	}{
		{
			name: "duplicate assertion",
			bs: []model.BAssertion{
				{Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("150")},
				{Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("160")},
			},
			opts: AdjustOptions{Suspense: q("Equity:Suspense")},
			want: apperr.ErrDuplicateBAssertion,
		},
		{
			name: "no suspense",
			bs:   []model.BAssertion{{Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("150")}},
			want: apperr.ErrUnknownAccount,
		},
		{
			name: "unknown suspense",
			bs:   []model.BAssertion{{Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("150")}},
			opts: AdjustOptions{Suspense: q("Equity:Nowhere")},
			want: apperr.ErrUnknownAccount,
		},
		{
			name: "unknown asserted account",
			bs:   []model.BAssertion{{Date: date(2024, 1, 31), Account: q("Assets:Cash"), Balance: dec("150")}},
			opts: AdjustOptions{Suspense: q("Equity:Suspense")},
			want: apperr.ErrUnknownAccount,
		},
		{
			name: "suspense under asserted account",
			bs:   []model.BAssertion{{Date: date(2024, 1, 31), Account: q("Equity"), Balance: dec("0")}},
			opts: AdjustOptions{Suspense: q("Equity:Suspense")},
			want: apperr.ErrSuspenseOverlap,
		},
		{
			name: "redirect into another asserted account",
			bs: []model.BAssertion{
				{Date: date(2024, 1, 31), Account: q("Assets:Bank"), Balance: dec("150")},
				{Date: date(2024, 1, 31), Account: q("Assets:Bank:Savings"), Balance: dec("40")},
			},
			opts: AdjustOptions{
				Suspense: q("Equity:Suspense"),
				Redirect: map[string]qname.QName{q("Assets:Bank").Key(): q("Assets:Bank:Savings")},
			},
			want: apperr.ErrSuspenseOverlap,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := newTestJournal(t)
			added, err := j.AdjustForBAssertions(tt.bs, tt.opts)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, added)
			assert.Equal(t, 3, j.Len())
		})
	}
}

func TestReconcile_OnlyListedAccounts(t *testing.T) {
	j := newTestJournal(t)
	require.NoError(t, j.AddBAssertion(model.BAssertion{Date: date(2024, 1, 31), Account: q("Assets:Bank:Checking"), Balance: dec("70")}))
	require.NoError(t, j.AddBAssertion(model.BAssertion{Date: date(2024, 1, 31), Account: q("Assets:Bank:Savings"), Balance: dec("45")}))

	added, err := j.Reconcile(AdjustOptions{Suspense: q("Equity:Suspense")}, q("Assets:Bank:Savings"))
	require.NoError(t, err)
	require.Len(t, added, 1)

	failed := j.FailedBAssertions(false)
	require.Len(t, failed, 1)
	assert.True(t, failed[0].BAssertion.Account.Equal(q("Assets:Bank:Checking")))

	_, err = j.Reconcile(AdjustOptions{Suspense: q("Equity:Suspense")})
	require.NoError(t, err)
	assert.Empty(t, j.FailedBAssertions(false))
}

func TestFixStatementDates(t *testing.T) {
	j := New()
	for _, n := range chart {
		require.NoError(t, j.AddAccount(model.Account{Name: q(n)}))
	}
	for _, tx := range []*model.Txn{
		pair(date(2024, 1, 5), "Assets:Bank:Checking", "Income:Salary", "100"),
		pair(date(2024, 1, 29), "Expenses:Groceries", "Assets:Bank:Checking", "10"),
		pair(date(2024, 1, 30), "Expenses:Groceries", "Assets:Bank:Checking", "15"),
	} {
		_, err := j.AddTxn(tx)
		require.NoError(t, err)
	}
	// the statement shows the 15 but not the 10
	require.NoError(t, j.AddBAssertion(model.BAssertion{Date: date(2024, 1, 31), Account: q("Assets:Bank:Checking"), Balance: dec("85")}))
	require.Len(t, j.FailedBAssertions(true), 1)

	n, err := j.FixStatementDates(q("Assets:Bank:Checking"), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, j.FailedBAssertions(true))

	tx, ok := j.Txn(2)
	require.True(t, ok)
	assert.Equal(t, date(2024, 2, 1), tx.Postings[1].StatementDate())
	// transaction dates are untouched
	assert.Equal(t, date(2024, 1, 29), tx.Date)
}

func TestFixStatementDates_NoMatch(t *testing.T) {
	j := newTestJournal(t)
	require.NoError(t, j.AddBAssertion(model.BAssertion{Date: date(2024, 1, 31), Account: q("Assets:Bank:Checking"), Balance: dec("13")}))
	_, err := j.FixStatementDates(q("Assets:Bank:Checking"), 10)
	assert.Error(t, err)

	_, err = j.FixStatementDates(q("Assets:Cash"), 10)
	assert.ErrorIs(t, err, apperr.ErrUnknownAccount)
}

func TestSubsetSum(t *testing.T) {
	amounts := []decimal.Decimal{dec("1"), dec("2"), dec("3"), dec("4")}
	got := subsetSum(amounts, dec("7"))
	require.NotNil(t, got)
	sum := dec("0")
	seen := map[int]bool{}
	for _, i := range got {
		assert.False(t, seen[i])
		seen[i] = true
		sum = sum.Add(amounts[i])
	}
	assertDec(t, "7", sum)

	assert.Nil(t, subsetSum(amounts, dec("100")))
	assert.Equal(t, []int{0}, subsetSum(amounts, dec("1.00")))
}
