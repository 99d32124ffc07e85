package journal

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/brightsidebudget/bsb/internal/csvutil"
	"github.com/brightsidebudget/bsb/internal/id"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// ReadPostings reads transactions.csv into posting records. Computed
// columns (short name, fiscal year, other accounts) are ignored.
func ReadPostings(r io.Reader, h model.Headers) ([]model.PostingRecord, error) {
	recs, err := readRecords(r, h, h.Txn, h.Date, h.Account, h.Amount)
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}
	for _, rec := range recs {
		// blank cells are dropped; a blank amount is an elided one
		if _, ok := rec[model.KeyAmount]; !ok {
			rec[model.KeyAmount] = ""
		}
	}
	ps, err := model.ParsePostingRecords(recs)
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}
	return ps, nil
}

// ReadBAssertions reads balances.csv.
func ReadBAssertions(r io.Reader, h model.Headers) ([]model.BAssertion, error) {
	recs, err := readRecords(r, h, h.Date, h.Account, h.Balance)
	if err != nil {
		return nil, fmt.Errorf("reading balances CSV: %w", err)
	}
	bs, err := model.ParseBAssertionRecords(recs)
	if err != nil {
		return nil, fmt.Errorf("reading balances CSV: %w", err)
	}
	return bs, nil
}

func readRecords(r io.Reader, h model.Headers, required ...string) ([]map[string]string, error) {
	tbl, err := csvutil.Read(r)
	if err != nil {
		return nil, err
	}
	if len(tbl.Header) == 0 {
		return nil, nil
	}
	for _, col := range required {
		if tbl.Index(col) < 0 {
			return nil, fmt.Errorf("no %q column", col)
		}
	}
	recs, err := tbl.Records(h.RecordKey)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		delete(rec, h.ShortName)
		delete(rec, h.FiscalYear)
		delete(rec, h.OtherAccounts)
	}
	return recs, nil
}

// TxnHeader returns the transactions.csv header for snap.
func TxnHeader(snap *Snapshot) []string {
	h := snap.Headers
	header := []string{h.Txn, h.Date, h.Account}
	if snap.ShortNames != nil {
		header = append(header, h.ShortName)
	}
	header = append(header, h.Amount, h.Comment, h.StmtDate, h.StmtDesc)
	if snap.ExtraColumns {
		header = append(header, h.FiscalYear, h.OtherAccounts)
	}
	return header
}

// WriteTxns writes transactions.csv, one row per posting.
func WriteTxns(w io.Writer, snap *Snapshot) error {
	acctTags := snap.accountTags()
	rows := make([]map[string]string, 0, len(snap.Txns))
	var layers []model.Tags
	for _, t := range snap.Txns {
		others := t.Accounts()
		slices.SortFunc(others, qname.Compare)
		for _, p := range t.Postings {
			row := map[string]string{}
			tags := model.MergeTags(acctTags[p.Account.Key()], p.Tags)
			layers = append(layers, tags)
			maps.Copy(row, tags)

			h := snap.Headers
			row[h.Txn] = id.Format(t.ID)
			row[h.Date] = model.FormatDate(t.Date)
			row[h.Account] = p.Account.String()
			if snap.ShortNames != nil {
				row[h.ShortName] = snap.ShortNames[p.Account.Key()]
			}
			row[h.Amount] = model.FormatAmount(p.Amount)
			row[h.Comment] = p.Comment
			row[h.StmtDate] = model.FormatStmtDate(p.StmtDate, t.Date)
			row[h.StmtDesc] = p.Reference
			if snap.ExtraColumns {
				row[h.FiscalYear] = fmt.Sprint(FiscalYear(t.Date, snap.FirstFiscalMonth))
				var names []string
				for _, o := range others {
					if !o.Equal(p.Account) {
						names = append(names, o.String())
					}
				}
				row[h.OtherAccounts] = strings.Join(names, ", ")
			}
			rows = append(rows, row)
		}
	}
	return writeRows(w, TxnHeader(snap), snap.Headers, layers, rows)
}

// WriteBAssertions writes balances.csv.
func WriteBAssertions(w io.Writer, snap *Snapshot) error {
	h := snap.Headers
	acctTags := snap.accountTags()
	header := []string{h.Date, h.Account, h.Balance, h.Comment}
	rows := make([]map[string]string, 0, len(snap.BAssertions))
	var layers []model.Tags
	for _, b := range snap.BAssertions {
		tags := model.MergeTags(acctTags[b.Account.Key()], b.Tags)
		layers = append(layers, tags)
		row := maps.Clone(map[string]string(tags))
		row[h.Date] = model.FormatDate(b.Date)
		row[h.Account] = b.Account.String()
		row[h.Balance] = model.FormatAmount(b.Balance)
		row[h.Comment] = b.Comment
		rows = append(rows, row)
	}
	return writeRows(w, header, h, layers, rows)
}

// writeRows appends sorted tag columns to header. Fixed columns win over tags
// of the same name.
func writeRows(w io.Writer, header []string, h model.Headers, layers []model.Tags, rows []map[string]string) error {
	tagSet := map[string]bool{}
	for _, l := range layers {
		for k := range l {
			if !h.IsFixed(k) {
				tagSet[k] = true
			}
		}
	}
	full := append(slices.Clone(header), slices.Sorted(maps.Keys(tagSet))...)

	out := make([][]string, len(rows))
	for i, row := range rows {
		line := make([]string, len(full))
		for c, col := range full {
			line[c] = row[col]
		}
		out[i] = line
	}
	return csvutil.Write(w, full, out)
}
