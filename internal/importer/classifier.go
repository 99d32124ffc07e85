package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/brightsidebudget/bsb/internal/accounts"
	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// Classifier turns an imported posting into transactions. No transactions
// and no error means the posting is discarded.
type Classifier interface {
	Classify(p model.Posting) ([]*model.Txn, error)
}

// SecondTxn is an extra pair written when a rule matches, e.g. to move a
// fixed part of a paycheck into savings.
type SecondTxn struct {
	Account1 string          `yaml:"account1"`
	Account2 string          `yaml:"account2"`
	Amount1  decimal.Decimal `yaml:"amount1"`
}

// Rule matches imported postings and names the counter account. All set
// conditions must hold. Account names may be short names.
type Rule struct {
	AccountName           string           `yaml:"account_name,omitempty"`
	DescriptionStartsWith string           `yaml:"description_startswith,omitempty"`
	DescriptionEquals     []string         `yaml:"description_equals,omitempty"`
	AmountEquals          *decimal.Decimal `yaml:"amount_equals,omitempty"`
	AmountGreaterThan     *decimal.Decimal `yaml:"amount_greater_than,omitempty"`
	AmountLessThan        *decimal.Decimal `yaml:"amount_less_than,omitempty"`

	SecondAccountName string     `yaml:"second_account_name,omitempty"`
	Discard           bool       `yaml:"discard,omitempty"`
	SecondTxn         *SecondTxn `yaml:"second_txn,omitempty"`
}

// Validate checks that a non-discarding rule has a counter account.
func (r *Rule) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.SecondAccountName, validation.Required.When(!r.Discard)),
		validation.Field(&r.SecondTxn, validation.Nil.When(r.Discard)),
	); err != nil {
		return err
	}
	if r.SecondTxn != nil {
		return validation.ValidateStruct(r.SecondTxn,
			validation.Field(&r.SecondTxn.Account1, validation.Required),
			validation.Field(&r.SecondTxn.Account2, validation.Required),
		)
	}
	return nil
}

// LoadRules decodes a YAML list of rules. Unknown keys are an error.
func LoadRules(r io.Reader) ([]Rule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var rules []Rule
	if err := dec.Decode(&rules); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	return rules, nil
}

// LoadRulesFile reads rules from path.
func LoadRulesFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rules: %w", err)
	}
	defer f.Close()
	return LoadRules(f)
}

type compiledRule struct {
	Rule
	account qname.QName // zero = any
	second  qname.QName
	extra1  qname.QName
	extra2  qname.QName
}

func (r *compiledRule) match(p model.Posting) bool {
	desc := p.Reference
	switch {
	case r.DescriptionStartsWith != "" && !strings.HasPrefix(desc, r.DescriptionStartsWith):
		return false
	case len(r.DescriptionEquals) > 0 && !slices.Contains(r.DescriptionEquals, desc):
		return false
	case r.AmountEquals != nil && !p.Amount.Equal(*r.AmountEquals):
		return false
	case r.AmountGreaterThan != nil && p.Amount.LessThanOrEqual(*r.AmountGreaterThan):
		return false
	case r.AmountLessThan != nil && p.Amount.GreaterThanOrEqual(*r.AmountLessThan):
		return false
	case !r.account.IsZero() && !p.Account.Equal(r.account):
		return false
	}
	return true
}

// RuleClassifier applies the first matching rule. Postings no rule matches
// go to the fallback account, or fail when there is none.
type RuleClassifier struct {
	rules    []compiledRule
	fallback qname.QName
}

// NewRuleClassifier resolves the account names of rules against reg.
// fallback may be zero.
func NewRuleClassifier(rules []Rule, reg *accounts.Registry, fallback qname.QName) (*RuleClassifier, error) {
	if !fallback.IsZero() && !reg.Exists(fallback) {
		return nil, fmt.Errorf("fallback: %w: %s", apperr.ErrUnknownAccount, fallback)
	}
	c := &RuleClassifier{fallback: fallback}
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		cr := compiledRule{Rule: r}
		for _, ref := range []struct {
			name string
			dst  *qname.QName
		}{
			{r.AccountName, &cr.account},
			{r.SecondAccountName, &cr.second},
		} {
			if ref.name == "" {
				continue
			}
			q, err := reg.Resolve(ref.name)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i+1, err)
			}
			*ref.dst = q
		}
		if r.SecondTxn != nil {
			var err error
			if cr.extra1, err = reg.Resolve(r.SecondTxn.Account1); err != nil {
				return nil, fmt.Errorf("rule %d: second txn: %w", i+1, err)
			}
			if cr.extra2, err = reg.Resolve(r.SecondTxn.Account2); err != nil {
				return nil, fmt.Errorf("rule %d: second txn: %w", i+1, err)
			}
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// Classify implements Classifier.
func (c *RuleClassifier) Classify(p model.Posting) ([]*model.Txn, error) {
	for i := range c.rules {
		r := &c.rules[i]
		if !r.match(p) {
			continue
		}
		if r.Discard {
			return nil, nil
		}
		t, err := counterTxn(p, r.second, p.Amount)
		if err != nil {
			return nil, err
		}
		txns := []*model.Txn{t}
		if r.SecondTxn != nil {
			extra := p
			extra.Account = r.extra1
			t2, err := counterTxn(extra, r.extra2, r.SecondTxn.Amount1)
			if err != nil {
				return nil, err
			}
			txns = append(txns, t2)
		}
		return txns, nil
	}

	if c.fallback.IsZero() {
		return nil, fmt.Errorf("%w: %s %s %s", apperr.ErrNoRuleMatched,
			model.FormatDate(p.Date), p.Amount, p.Reference)
	}
	t, err := counterTxn(p, c.fallback, p.Amount)
	if err != nil {
		return nil, err
	}
	return []*model.Txn{t}, nil
}

// counterTxn pairs p, with its amount set to amount, against counter.
func counterTxn(p model.Posting, counter qname.QName, amount decimal.Decimal) (*model.Txn, error) {
	p.Amount = amount
	p.Tags = p.Tags.Clone()
	c := p
	c.Account = counter
	c.Amount = amount.Neg()
	c.Tags = p.Tags.Clone()
	return model.NewTxn(p.Date, []model.Posting{p, c}, false)
}
