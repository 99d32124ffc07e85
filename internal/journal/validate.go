package journal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// Rule names a ledger check.
type Rule string

const (
	RuleForbiddenAccount Rule = "forbidden-account"
	RuleBAssertion       Rule = "balance-assertion"
	RuleNot1N            Rule = "not-1-1"
	RuleDecimals         Rule = "decimals"
	RuleAccountNumber    Rule = "account-number"
)

// NumberTag is the account tag holding the account number.
const NumberTag = "number"

// NumberRange bounds the account numbers allowed under a root account.
type NumberRange struct {
	Min, Max int
}

// DefaultNumberRanges covers the root accounts of both starter charts.
func DefaultNumberRanges() map[string]NumberRange {
	return map[string]NumberRange{
		"Assets":           {1000, 1999},
		"Actifs":           {1000, 1999},
		"Liabilities":      {2000, 2999},
		"Passifs":          {2000, 2999},
		"Equity":           {3000, 3999},
		"Capitaux propres": {3000, 3999},
		"Income":           {4000, 4999},
		"Revenus":          {4000, 4999},
		"Expenses":         {5000, 5999},
		"Dépenses":         {5000, 5999},
	}
}

// ValidationError describes a single check failure.
type ValidationError struct {
	Rule        Rule
	Ref         string // "txn 12", "2024-02-01 Assets:Checking"
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Rule, e.Ref, e.Description)
}

// CheckOptions select the checks Validate runs.
type CheckOptions struct {
	// ForbiddenAccounts may not appear in any transaction.
	ForbiddenAccounts []qname.QName
	VerifyBAssertions bool
	UseStmtDate       bool
	// Require1N flags transactions that are not one debit to one credit.
	Require1N bool
	// MaxDecimals > 0 flags amounts with more decimal places.
	MaxDecimals int
	// AccountNumbers checks the NumberTag of every account: an integer,
	// unique, and inside the range of its root account. Roots missing from
	// NumberRanges are not range-checked; a nil map means DefaultNumberRanges.
	AccountNumbers bool
	NumberRanges   map[string]NumberRange
}

// Validate runs the checks in opts over j. The structural invariants are
// enforced on insertion; these are the policy checks on top.
func Validate(j *Journal, opts CheckOptions) []ValidationError {
	var errs []ValidationError

	for _, f := range opts.ForbiddenAccounts {
		if !j.accounts.Exists(f) {
			errs = append(errs, ValidationError{
				Rule:        RuleForbiddenAccount,
				Ref:         f.String(),
				Description: "forbidden account is not in the journal",
			})
		}
	}

	if opts.AccountNumbers {
		errs = append(errs, checkAccountNumbers(j.accounts.All(), opts.NumberRanges)...)
	}

	for _, t := range j.Txns() {
		ref := fmt.Sprintf("txn %d", t.ID)
		for _, p := range t.Postings {
			for _, f := range opts.ForbiddenAccounts {
				if p.Account.Equal(f) {
					errs = append(errs, ValidationError{
						Rule:        RuleForbiddenAccount,
						Ref:         ref,
						Description: fmt.Sprintf("posting on forbidden account %s", f),
					})
				}
			}
			if opts.MaxDecimals > 0 && -p.Amount.Exponent() > int32(opts.MaxDecimals) &&
				!p.Amount.Equal(p.Amount.Round(int32(opts.MaxDecimals))) {
				errs = append(errs, ValidationError{
					Rule:        RuleDecimals,
					Ref:         ref,
					Description: fmt.Sprintf("amount %s on %s has more than %d decimal places", p.Amount, p.Account, opts.MaxDecimals),
				})
			}
		}
		if opts.Require1N && !t.Is1N() {
			errs = append(errs, ValidationError{
				Rule:        RuleNot1N,
				Ref:         ref,
				Description: fmt.Sprintf("%d postings", len(t.Postings)),
			})
		}
	}

	if opts.VerifyBAssertions {
		for _, f := range j.FailedBAssertions(opts.UseStmtDate) {
			b := f.BAssertion
			errs = append(errs, ValidationError{
				Rule: RuleBAssertion,
				Ref:  model.FormatDate(b.Date) + " " + b.Account.String(),
				Description: fmt.Sprintf("expected %s, found %s (difference: %s)",
					model.FormatAmount(b.Balance), model.FormatAmount(f.Actual), model.FormatAmount(f.Diff)),
			})
		}
	}
	return errs
}

func checkAccountNumbers(accts []model.Account, ranges map[string]NumberRange) []ValidationError {
	if ranges == nil {
		ranges = DefaultNumberRanges()
	}
	var errs []ValidationError
	fail := func(a model.Account, format string, args ...any) {
		errs = append(errs, ValidationError{
			Rule:        RuleAccountNumber,
			Ref:         a.Name.String(),
			Description: fmt.Sprintf(format, args...),
		})
	}

	used := make(map[int]qname.QName)
	for _, a := range accts {
		s, ok := a.Tags[NumberTag]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			fail(a, "account number %q is not an integer", s)
			continue
		}
		if prev, dup := used[n]; dup {
			fail(a, "account number %d already used by %s", n, prev)
		} else {
			used[n] = a.Name
		}
		root := a.Name.Segments()[0]
		if r, ok := ranges[root]; ok && (n < r.Min || n > r.Max) {
			fail(a, "account number %d outside %d-%d for %s", n, r.Min, r.Max, root)
		}
	}
	return errs
}

// JoinErrors renders errs one per line.
func JoinErrors(errs []ValidationError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}
