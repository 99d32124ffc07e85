package api

import (
	"github.com/shopspring/decimal"

	"github.com/brightsidebudget/bsb/internal/journal"
	"github.com/brightsidebudget/bsb/internal/model"
)

// AccountDTO is one account of GET /accounts.
type AccountDTO struct {
	Name      string            `json:"name"`
	ShortName string            `json:"short_name"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// BalanceResponse is the body of GET /balance.
type BalanceResponse struct {
	Account string          `json:"account"`
	Date    string          `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

// FlowResponse is the body of GET /flow.
type FlowResponse struct {
	Account      string          `json:"account"`
	Start        string          `json:"start"`
	End          string          `json:"end"`
	Hierarchical bool            `json:"hierarchical"`
	Flow         decimal.Decimal `json:"flow"`
}

// FailedBAssertionDTO is one entry of GET /bassertions/failed.
type FailedBAssertionDTO struct {
	Date     string          `json:"date"`
	Account  string          `json:"account"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
	Diff     decimal.Decimal `json:"diff"`
}

// PostingDTO is a posting inside TxnDTO.
type PostingDTO struct {
	Account  string            `json:"account"`
	Amount   decimal.Decimal   `json:"amount"`
	Comment  string            `json:"comment,omitempty"`
	StmtDate string            `json:"stmt_date,omitempty"`
	StmtDesc string            `json:"stmt_desc,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// TxnDTO is one entry of GET /txns.
type TxnDTO struct {
	ID       int          `json:"id"`
	Date     string       `json:"date"`
	Postings []PostingDTO `json:"postings"`
}

func toTxnDTO(t *model.Txn) TxnDTO {
	out := TxnDTO{ID: t.ID, Date: model.FormatDate(t.Date), Postings: make([]PostingDTO, len(t.Postings))}
	for i, p := range t.Postings {
		dto := PostingDTO{
			Account:  p.Account.String(),
			Amount:   p.Amount,
			Comment:  p.Comment,
			StmtDesc: p.Reference,
			Tags:     p.Tags,
		}
		if !p.StmtDate.IsZero() {
			dto.StmtDate = model.FormatDate(p.StmtDate)
		}
		out.Postings[i] = dto
	}
	return out
}

func toFailedDTO(f journal.FailedBAssertion) FailedBAssertionDTO {
	return FailedBAssertionDTO{
		Date:     model.FormatDate(f.BAssertion.Date),
		Account:  f.BAssertion.Account.String(),
		Expected: f.BAssertion.Balance,
		Actual:   f.Actual,
		Diff:     f.Diff,
	}
}
