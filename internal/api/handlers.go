package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/journal"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// Handler holds API route handlers. The journal is only read.
type Handler struct {
	j      *journal.Journal
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(j *journal.Journal, logger *slog.Logger) *Handler {
	return &Handler{j: j, logger: logger, now: time.Now}
}

// ListAccounts handles GET /accounts?under=. With under, only the accounts
// below it are listed.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	reg := h.j.Accounts()
	all := reg.All()
	if name := r.URL.Query().Get("under"); name != "" {
		parent, ok := h.account(w, name)
		if !ok {
			return
		}
		all = reg.Descendants(parent)
	}
	short := reg.ShortNames(1)
	out := make([]AccountDTO, len(all))
	for i, a := range all {
		out[i] = AccountDTO{Name: a.Name.String(), ShortName: short[a.Name.Key()], Tags: a.Tags}
	}
	h.respond(w, http.StatusOK, out)
}

// Balance handles GET /balance?account=&date=. date defaults to today and
// statement=true uses statement dates.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	acct, ok := h.account(w, q.Get("account"))
	if !ok {
		return
	}
	asOf, err := dateParam(q.Get("date"), model.Day(h.now()))
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	balance := h.j.Balance
	if q.Get("statement") == "true" {
		balance = h.j.StatementBalance
	}
	bal, err := balance(acct, asOf)
	if err != nil {
		h.fail(w, "balance", err)
		return
	}
	h.respond(w, http.StatusOK, BalanceResponse{
		Account: acct.String(),
		Date:    model.FormatDate(asOf),
		Balance: bal,
	})
}

// Balances handles GET /balances?account=&account=&date=&children=. Each
// account may be repeated; children=true reports the direct sub-accounts of
// each one instead.
func (h *Handler) Balances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	names := q["account"]
	if len(names) == 0 {
		h.badRequest(w, "account is required")
		return
	}
	children := false
	if v := q.Get("children"); v != "" {
		var err error
		if children, err = strconv.ParseBool(v); err != nil {
			h.badRequest(w, "children must be a boolean")
			return
		}
	}
	asOf, err := dateParam(q.Get("date"), model.Day(h.now()))
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}

	var accts []qname.QName
	for _, name := range names {
		acct, ok := h.account(w, name)
		if !ok {
			return
		}
		if !children {
			accts = append(accts, acct)
			continue
		}
		for _, c := range h.j.Accounts().Children(acct) {
			accts = append(accts, c.Name)
		}
	}

	bals, err := h.j.Balances(r.Context(), accts, asOf)
	if err != nil {
		h.fail(w, "balances", err)
		return
	}
	out := make([]BalanceResponse, len(accts))
	for i, acct := range accts {
		out[i] = BalanceResponse{Account: acct.String(), Date: model.FormatDate(asOf), Balance: bals[i]}
	}
	h.respond(w, http.StatusOK, out)
}

// Flow handles GET /flow?account=&start=&end=&hierarchical=.
func (h *Handler) Flow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	acct, ok := h.account(w, q.Get("account"))
	if !ok {
		return
	}
	if q.Get("start") == "" || q.Get("end") == "" {
		h.badRequest(w, "start and end are required")
		return
	}
	start, err := model.ParseDate(q.Get("start"))
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	end, err := model.ParseDate(q.Get("end"))
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	hierarchical := true
	if v := q.Get("hierarchical"); v != "" {
		if hierarchical, err = strconv.ParseBool(v); err != nil {
			h.badRequest(w, "hierarchical must be a boolean")
			return
		}
	}

	flow, err := h.j.Flow(acct, start, end, hierarchical)
	if err != nil {
		h.fail(w, "flow", err)
		return
	}
	h.respond(w, http.StatusOK, FlowResponse{
		Account:      acct.String(),
		Start:        model.FormatDate(start),
		End:          model.FormatDate(end),
		Hierarchical: hierarchical,
		Flow:         flow,
	})
}

// FailedBAssertions handles GET /bassertions/failed.
func (h *Handler) FailedBAssertions(w http.ResponseWriter, r *http.Request) {
	failed := h.j.FailedBAssertions(r.URL.Query().Get("statement") == "true")
	out := make([]FailedBAssertionDTO, len(failed))
	for i, f := range failed {
		out[i] = toFailedDTO(f)
	}
	h.respond(w, http.StatusOK, out)
}

// ListTxns handles GET /txns?from=&to=&account=. Both dates are inclusive.
func (h *Handler) ListTxns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := dateParam(q.Get("from"), time.Time{})
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	to, err := dateParam(q.Get("to"), time.Time{})
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	var acct qname.QName
	if name := q.Get("account"); name != "" {
		var ok bool
		if acct, ok = h.account(w, name); !ok {
			return
		}
	}

	out := []TxnDTO{}
	for _, t := range h.j.Txns() {
		if (!from.IsZero() && t.Date.Before(from)) || (!to.IsZero() && t.Date.After(to)) {
			continue
		}
		if !acct.IsZero() && !touches(t, acct) {
			continue
		}
		out = append(out, toTxnDTO(t))
	}
	h.respond(w, http.StatusOK, out)
}

func touches(t *model.Txn, acct qname.QName) bool {
	for _, p := range t.Postings {
		if p.Account.IsEqualOrDescendantOf(acct) {
			return true
		}
	}
	return false
}

// account resolves a full or short account name, writing the error response
// when it fails.
func (h *Handler) account(w http.ResponseWriter, name string) (qname.QName, bool) {
	if name == "" {
		h.badRequest(w, "account is required")
		return qname.QName{}, false
	}
	acct, err := h.j.Accounts().Resolve(name)
	if err != nil {
		h.fail(w, "resolve account", err)
		return qname.QName{}, false
	}
	return acct, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrUnknownAccount):
		h.respond(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrAmbiguousName),
		errors.Is(err, apperr.ErrMalformedName),
		errors.Is(err, apperr.ErrInvalidPeriod):
		h.badRequest(w, "%v", err)
	default:
		h.logger.Error(op+" failed", slog.String("error", err.Error()))
		h.respond(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func dateParam(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", v)
	}
	return d, nil
}
