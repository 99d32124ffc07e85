package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// Record keys for bulk construction. Any other key is kept as a tag.
const (
	KeyQName    = "qname"
	KeyShortLen = "short_qname_length"
	KeyTxn      = "txn"
	KeyDate     = "date"
	KeyAmount   = "amount"
	KeyComment  = "comment"
	KeyStmtDate = "stmt_date"
	KeyStmtDesc = "stmt_desc"
	KeyBalance  = "balance"
)

const (
	kindAccount = "account"
	kindPosting = "posting"
	kindAssertn = "bassertion"
)

var (
	recordKeys     = []string{KeyQName, KeyShortLen, KeyTxn, KeyDate, KeyAmount, KeyComment, KeyStmtDate, KeyStmtDesc, KeyBalance}
	accountKeys    = []string{KeyQName, KeyShortLen}
	postingKeys    = []string{KeyTxn, KeyDate, KeyQName, KeyAmount, KeyComment, KeyStmtDate, KeyStmtDesc}
	bassertionKeys = []string{KeyDate, KeyQName, KeyBalance, KeyComment}
)

// PostingRecord is a posting together with the transaction number that
// groups it. AmountElided is set when the amount was left blank; the journal
// infers it from the other postings of the same txn.
type PostingRecord struct {
	Txn          int
	Posting      Posting
	AmountElided bool
}

// ParseAccountRecords builds accounts from loosely-typed records.
func ParseAccountRecords(recs []map[string]string) ([]Account, error) {
	out := make([]Account, 0, len(recs))
	for i, rec := range recs {
		if err := requireKeys(kindAccount, i, rec, KeyQName); err != nil {
			return nil, err
		}
		name, err := qname.Parse(rec[KeyQName])
		if err != nil {
			return nil, fieldErr(kindAccount, i, KeyQName, err)
		}
		acct := Account{Name: name, Tags: extraTags(rec, accountKeys)}
		if s := strings.TrimSpace(rec[KeyShortLen]); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return nil, fieldErr(kindAccount, i, KeyShortLen, fmt.Errorf("invalid length %q", s))
			}
			acct.ShortLen = n
		}
		out = append(out, acct)
	}
	return out, nil
}

// ParsePostingRecords builds postings from loosely-typed records. The amount
// key is required; a blank amount marks the posting elided.
func ParsePostingRecords(recs []map[string]string) ([]PostingRecord, error) {
	out := make([]PostingRecord, 0, len(recs))
	for i, rec := range recs {
		if err := requireKeys(kindPosting, i, rec, KeyTxn, KeyDate, KeyQName, KeyAmount); err != nil {
			return nil, err
		}
		txn, err := strconv.Atoi(strings.TrimSpace(rec[KeyTxn]))
		if err != nil {
			return nil, fieldErr(kindPosting, i, KeyTxn, err)
		}
		date, err := ParseDate(rec[KeyDate])
		if err != nil {
			return nil, fieldErr(kindPosting, i, KeyDate, err)
		}
		acct, err := qname.Parse(rec[KeyQName])
		if err != nil {
			return nil, fieldErr(kindPosting, i, KeyQName, err)
		}

		pr := PostingRecord{Txn: txn, Posting: Posting{
			Date:      date,
			Account:   acct,
			Comment:   rec[KeyComment],
			Reference: rec[KeyStmtDesc],
			Tags:      extraTags(rec, postingKeys),
		}}
		if s := strings.TrimSpace(rec[KeyAmount]); s == "" {
			pr.AmountElided = true
		} else if pr.Posting.Amount, err = decimal.NewFromString(s); err != nil {
			return nil, fieldErr(kindPosting, i, KeyAmount, err)
		}
		if s := strings.TrimSpace(rec[KeyStmtDate]); s != "" {
			if pr.Posting.StmtDate, err = ParseDate(s); err != nil {
				return nil, fieldErr(kindPosting, i, KeyStmtDate, err)
			}
		}
		out = append(out, pr)
	}
	return out, nil
}

// ParseBAssertionRecords builds balance assertions from loosely-typed records.
func ParseBAssertionRecords(recs []map[string]string) ([]BAssertion, error) {
	out := make([]BAssertion, 0, len(recs))
	for i, rec := range recs {
		if err := requireKeys(kindAssertn, i, rec, KeyDate, KeyQName, KeyBalance); err != nil {
			return nil, err
		}
		var (
			b   BAssertion
			err error
		)
		if b.Date, err = ParseDate(rec[KeyDate]); err != nil {
			return nil, fieldErr(kindAssertn, i, KeyDate, err)
		}
		if b.Account, err = qname.Parse(rec[KeyQName]); err != nil {
			return nil, fieldErr(kindAssertn, i, KeyQName, err)
		}
		if b.Balance, err = decimal.NewFromString(strings.TrimSpace(rec[KeyBalance])); err != nil {
			return nil, fieldErr(kindAssertn, i, KeyBalance, err)
		}
		b.Comment = rec[KeyComment]
		b.Tags = extraTags(rec, bassertionKeys)
		out = append(out, b)
	}
	return out, nil
}

// FormatAmount renders an amount with at least two decimals.
func FormatAmount(d decimal.Decimal) string {
	if d.Exponent() >= -2 {
		return d.StringFixed(2)
	}
	return d.String()
}

// FormatStmtDate renders the statement date, empty when it equals date.
func FormatStmtDate(stmt, date time.Time) string {
	if stmt.IsZero() || stmt.Equal(date) {
		return ""
	}
	return FormatDate(stmt)
}

func requireKeys(kind string, idx int, rec map[string]string, keys ...string) error {
	for _, k := range keys {
		if _, ok := rec[k]; !ok {
			return &apperr.MissingFieldError{Kind: kind, Index: idx, Field: k}
		}
	}
	return nil
}

func fieldErr(kind string, idx int, field string, err error) error {
	return fmt.Errorf("%s record %d: field %q: %w", kind, idx, field, err)
}

func extraTags(rec map[string]string, known []string) Tags {
	var tags Tags
	for k, v := range rec {
		if slices.Contains(known, k) {
			continue
		}
		if tags == nil {
			tags = Tags{}
		}
		tags[k] = v
	}
	return tags
}
