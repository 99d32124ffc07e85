package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/qname"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func post(acct, amount string) Posting {
	return Posting{Account: qname.MustParse(acct), Amount: dec(amount)}
}

func TestNewTxn(t *testing.T) {
	d := Date(2024, 1, 1)
	txn, err := NewTxn(d.Add(15*time.Hour), []Posting{
		post("Assets:Bank:Checking", "100"),
		post("Equity:Opening", "-100"),
	}, false)
	require.NoError(t, err)

	assert.Equal(t, d, txn.Date)
	assert.Zero(t, txn.ID)
	for _, p := range txn.Postings {
		assert.Equal(t, d, p.Date)
	}
	assert.True(t, txn.Sum().IsZero())

	txn.SetID(7)
	assert.Equal(t, 7, txn.ID)
}

func TestNewTxnErrors(t *testing.T) {
	d := Date(2024, 1, 1)
	tests := []struct {
		name     string
		postings []Posting
		strict   bool
		want     error
	}{
		{"unbalanced", []Posting{post("A", "10"), post("B", "-9")}, false, apperr.ErrUnbalancedTxn},
		{"single posting", []Posting{post("A", "0")}, false, apperr.ErrUnbalancedTxn},
		{"empty", nil, false, apperr.ErrUnbalancedTxn},
		{"strict three legs", []Posting{post("A", "10"), post("B", "-4"), post("C", "-6")}, true, apperr.ErrNot1N},
		{"strict zero and nonzero", []Posting{post("A", "0"), post("B", "0"), post("C", "5"), post("D", "-5")}, true, apperr.ErrNot1N},
		{"missing account", []Posting{{Amount: dec("1")}, post("B", "-1")}, false, apperr.ErrMalformedName},
		{
			"inconsistent date",
			[]Posting{post("A", "1"), {Date: Date(2024, 1, 2), Account: qname.MustParse("B"), Amount: dec("-1")}},
			false,
			apperr.ErrInconsistentDate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTxn(d, tt.postings, tt.strict)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewTxnStrict(t *testing.T) {
	d := Date(2024, 1, 1)
	_, err := NewTxn(d, []Posting{post("A", "10"), post("B", "-10")}, true)
	assert.NoError(t, err)

	// zero checkpoint
	_, err = NewTxn(d, []Posting{post("A", "0"), post("B", "0")}, true)
	assert.NoError(t, err)

	// the same three-leg txn is fine outside strict mode
	_, err = NewTxn(d, []Posting{post("A", "10"), post("B", "-4"), post("C", "-6")}, false)
	assert.NoError(t, err)
}

func TestNewTxnCopiesPostings(t *testing.T) {
	ps := []Posting{post("A", "1"), post("B", "-1")}
	ps[0].Tags = Tags{"k": "v"}
	txn, err := NewTxn(Date(2024, 1, 1), ps, false)
	require.NoError(t, err)

	ps[0].Tags["k"] = "changed"
	ps[1].Amount = dec("5")
	assert.Equal(t, "v", txn.Postings[0].Tags["k"])
	assert.True(t, txn.Sum().IsZero())
}

func TestSplitPairs(t *testing.T) {
	d := Date(2024, 3, 1)
	txn, err := NewTxn(d, []Posting{
		post("Assets:Checking", "-100"),
		post("Expenses:Food", "60"),
		post("Expenses:Fun", "40"),
	}, false)
	require.NoError(t, err)
	txn.SetID(3)

	pairs, err := txn.SplitPairs()
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.True(t, p.Is1N())
		assert.Equal(t, 3, p.ID)
		assert.Equal(t, "Assets:Checking", p.Postings[0].Account.String())
	}
	assert.True(t, dec("-60").Equal(pairs[0].Postings[0].Amount))
	assert.True(t, dec("-40").Equal(pairs[1].Postings[0].Amount))
	assert.Equal(t, "Expenses:Fun", pairs[1].Postings[1].Account.String())

	// many-to-many cannot be split
	mm, err := NewTxn(d, []Posting{post("A", "5"), post("B", "5"), post("C", "-5"), post("D", "-5")}, false)
	require.NoError(t, err)
	_, err = mm.SplitPairs()
	assert.ErrorIs(t, err, apperr.ErrNot1N)

	// a pair stays a pair
	one, err := NewTxn(d, []Posting{post("A", "5"), post("B", "-5")}, false)
	require.NoError(t, err)
	same, err := one.SplitPairs()
	require.NoError(t, err)
	require.Len(t, same, 1)
	assert.Equal(t, one.Postings, same[0].Postings)
}

func TestAccounts(t *testing.T) {
	txn, err := NewTxn(Date(2024, 1, 1), []Posting{post("B", "1"), post("A", "-2"), post("B", "1")}, false)
	require.NoError(t, err)
	got := txn.Accounts()
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].String())
	assert.Equal(t, "A", got[1].String())
}

func TestStatementDate(t *testing.T) {
	p := Posting{Date: Date(2024, 1, 1)}
	assert.Equal(t, Date(2024, 1, 1), p.StatementDate())
	p.StmtDate = Date(2024, 1, 3)
	assert.Equal(t, Date(2024, 1, 3), p.StatementDate())
}

func TestTags(t *testing.T) {
	merged := MergeTags(Tags{"a": "acct", "b": "acct"}, Tags{"b": "posting"}, nil)
	assert.Equal(t, Tags{"a": "acct", "b": "posting"}, merged)
	assert.Equal(t, []string{"a", "b"}, merged.Keys())
	assert.Nil(t, Tags(nil).Clone())
}

func TestTagsValidate(t *testing.T) {
	require.NoError(t, Tags(nil).Validate())
	require.NoError(t, Tags{"owner": "alex", "Comment": "x", "Qname": "y"}.Validate())

	for _, name := range []string{"qname", "comment", "amount", "stmt_desc", "balance", " "} {
		err := Tags{name: "x"}.Validate()
		assert.ErrorIs(t, err, apperr.ErrReservedTag, name)
	}
}
