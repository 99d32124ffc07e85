package importer

import (
	"io"

	"github.com/brightsidebudget/bsb/internal/model"
)

// ChaseLayout is the column layout of Chase checking exports:
// Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
var ChaseLayout = BankCSVConfig{
	DateCol:      "Posting Date",
	DateLayout:   "01/02/2006",
	StmtDescCols: []string{"Description"},
	AmountCol:    "Amount",
}

// ChaseParser parses Chase bank checking CSV exports.
type ChaseParser struct{}

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV. The description becomes the statement
// description of each posting.
func (p *ChaseParser) Parse(r io.Reader) ([]model.Posting, error) {
	b := BankCSV{Name: p.Format(), Config: ChaseLayout}
	return b.Parse(r)
}
