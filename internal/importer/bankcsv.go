package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/brightsidebudget/bsb/internal/csvutil"
	"github.com/brightsidebudget/bsb/internal/model"
)

// BankCSVConfig describes the column layout of a bank export.
type BankCSVConfig struct {
	DateCol    string `yaml:"date_col"`
	DateLayout string `yaml:"date_layout,omitempty"` // Go layout, default 2006-01-02
	// StmtDescCols are joined with " | " into the statement description.
	StmtDescCols []string `yaml:"stmt_desc_cols,omitempty"`
	StmtDateCol  string   `yaml:"stmt_date_col,omitempty"`
	// Either AmountCol, or AmountInCol and AmountOutCol (in minus out).
	AmountCol    string `yaml:"amount_col,omitempty"`
	AmountInCol  string `yaml:"amount_in_col,omitempty"`
	AmountOutCol string `yaml:"amount_out_col,omitempty"`
	Delimiter    string `yaml:"csv_delimiter,omitempty"`
	SkipRows     int    `yaml:"skiprows,omitempty"`
	// RemoveDelimiterFrom lists strings whose commas are dropped before
	// parsing, for banks that write unquoted commas in descriptions.
	RemoveDelimiterFrom []string `yaml:"remove_delimiter_from,omitempty"`
}

// Validate validates the column layout.
func (c *BankCSVConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DateCol, validation.Required),
		validation.Field(&c.AmountCol, validation.Required.When(c.AmountInCol == "" && c.AmountOutCol == "").
			Error("amount_col or amount_in_col/amount_out_col is required")),
		validation.Field(&c.AmountInCol, validation.Required.When(c.AmountCol == "" && c.AmountOutCol != "")),
		validation.Field(&c.AmountOutCol, validation.Required.When(c.AmountCol == "" && c.AmountInCol != "")),
		validation.Field(&c.Delimiter, validation.RuneLength(0, 1)),
		validation.Field(&c.SkipRows, validation.Min(0)),
	)
}

func (c *BankCSVConfig) comma() rune {
	if c.Delimiter == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

func (c *BankCSVConfig) layout() string {
	if c.DateLayout == "" {
		return model.DateLayout
	}
	return c.DateLayout
}

func (c *BankCSVConfig) columns() []string {
	cols := []string{c.DateCol}
	cols = append(cols, c.StmtDescCols...)
	for _, col := range []string{c.StmtDateCol, c.AmountCol, c.AmountInCol, c.AmountOutCol} {
		if col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}

// BankCSV parses any bank export described by a BankCSVConfig.
type BankCSV struct {
	Name   string
	Config BankCSVConfig
}

// Format returns the parser name, "csv" by default.
func (b *BankCSV) Format() string {
	if b.Name == "" {
		return "csv"
	}
	return b.Name
}

// Parse reads the export.
func (b *BankCSV) Parse(r io.Reader) ([]model.Posting, error) {
	cfg := &b.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bank csv config: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading bank CSV: %w", err)
	}
	text := string(data)
	for _, s := range cfg.RemoveDelimiterFrom {
		text = strings.ReplaceAll(text, s, strings.ReplaceAll(s, string(cfg.comma()), ""))
	}
	lines := strings.SplitAfter(text, "\n")
	if cfg.SkipRows >= len(lines) {
		return nil, nil
	}
	text = strings.Join(lines[cfg.SkipRows:], "")

	tbl, err := csvutil.ReadDelim(strings.NewReader(text), cfg.comma())
	if err != nil {
		return nil, fmt.Errorf("reading bank CSV: %w", err)
	}
	if len(tbl.Header) == 0 {
		return nil, nil
	}
	for _, col := range cfg.columns() {
		if tbl.Index(col) < 0 {
			return nil, fmt.Errorf("reading bank CSV: no %q column", col)
		}
	}

	recs, err := tbl.Records(nil)
	if err != nil {
		return nil, fmt.Errorf("reading bank CSV: %w", err)
	}
	var ps []model.Posting
	for i, rec := range recs {
		p, err := b.posting(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", cfg.SkipRows+i+2, err)
		}
		ps = append(ps, p)
	}
	return ps, nil
}

func (b *BankCSV) posting(rec map[string]string) (model.Posting, error) {
	cfg := &b.Config
	date, err := time.Parse(cfg.layout(), strings.TrimSpace(rec[cfg.DateCol]))
	if err != nil {
		return model.Posting{}, fmt.Errorf("parsing date %q: %w", rec[cfg.DateCol], err)
	}

	var amount decimal.Decimal
	if cfg.AmountCol != "" {
		if strings.TrimSpace(rec[cfg.AmountCol]) == "" {
			return model.Posting{}, errEmptyAmount
		}
		if amount, err = parseAmount(rec[cfg.AmountCol]); err != nil {
			return model.Posting{}, err
		}
	} else {
		in, err := parseAmount(rec[cfg.AmountInCol])
		if err != nil {
			return model.Posting{}, err
		}
		out, err := parseAmount(rec[cfg.AmountOutCol])
		if err != nil {
			return model.Posting{}, err
		}
		amount = in.Sub(out)
	}

	var desc []string
	for _, col := range cfg.StmtDescCols {
		if v := strings.TrimSpace(rec[col]); v != "" {
			desc = append(desc, v)
		}
	}

	p := model.Posting{Date: date, Amount: amount, Reference: strings.Join(desc, " | ")}
	if cfg.StmtDateCol != "" {
		if s := strings.TrimSpace(rec[cfg.StmtDateCol]); s != "" {
			if p.StmtDate, err = time.Parse(cfg.layout(), s); err != nil {
				return model.Posting{}, fmt.Errorf("parsing statement date %q: %w", s, err)
			}
		}
	}
	return p, nil
}

var errEmptyAmount = errors.New("empty amount")

// parseAmount parses a cell. A blank cell is zero, for split in/out columns.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}
