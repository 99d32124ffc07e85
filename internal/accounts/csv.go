package accounts

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/brightsidebudget/bsb/internal/csvutil"
	"github.com/brightsidebudget/bsb/internal/model"
)

const (
	numFixed    = 2
	colAccount  = 0
	colShortLen = 1
)

// ReadAccounts reads accounts.csv. Columns other than the account name and
// short length are tags.
func ReadAccounts(r io.Reader, h model.Headers) ([]model.Account, error) {
	tbl, err := csvutil.Read(r)
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}
	if len(tbl.Header) == 0 {
		return nil, nil
	}
	if tbl.Index(h.Account) < 0 {
		return nil, fmt.Errorf("reading accounts CSV: no %q column", h.Account)
	}

	recs, err := tbl.Records(h.RecordKey)
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}
	accts, err := model.ParseAccountRecords(recs)
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}
	return accts, nil
}

// WriteAccounts writes accounts.csv, one tag column per distinct tag name.
// A tag named like a fixed column is not written.
func WriteAccounts(w io.Writer, accts []model.Account, h model.Headers) error {
	tagCols := TagColumns(accts, h)
	header := append([]string{h.Account, h.ShortLen}, tagCols...)

	rows := make([][]string, 0, len(accts))
	for _, a := range accts {
		rows = append(rows, MarshalAccount(a, tagCols))
	}
	if err := csvutil.Write(w, header, rows); err != nil {
		return fmt.Errorf("writing accounts CSV: %w", err)
	}
	return nil
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(a model.Account, tagCols []string) []string {
	row := make([]string, numFixed+len(tagCols))
	row[colAccount] = a.Name.String()
	if a.ShortLen > 0 {
		row[colShortLen] = strconv.Itoa(a.ShortLen)
	}
	for i, tc := range tagCols {
		row[numFixed+i] = a.Tags[tc]
	}
	return row
}

// TagColumns returns the sorted union of tag names over accts, leaving out
// the fixed column labels of h.
func TagColumns(accts []model.Account, h model.Headers) []string {
	set := map[string]bool{}
	for _, a := range accts {
		for k := range a.Tags {
			if !h.IsFixed(k) {
				set[k] = true
			}
		}
	}
	return slices.Sorted(maps.Keys(set))
}
