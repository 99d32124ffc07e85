// Package accounts holds the account registry of a journal and the
// accounts.csv codec.
package accounts

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// Registry maps account names to accounts.
type Registry struct {
	byKey map[string]model.Account
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]model.Account)}
}

// NewRegistryFrom adds accts in order.
func NewRegistryFrom(accts []model.Account, autoCreateParents bool) (*Registry, error) {
	r := NewRegistry()
	for _, a := range accts {
		if err := r.Add(a, autoCreateParents); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add inserts acct. With autoCreateParents, missing ancestors are added first
// as bare accounts; an ancestor that already exists is left as is.
func (r *Registry) Add(acct model.Account, autoCreateParents bool) error {
	if acct.Name.IsZero() {
		return fmt.Errorf("adding account: %w", apperr.ErrMalformedName)
	}
	if r.Exists(acct.Name) {
		return fmt.Errorf("%w: %s", apperr.ErrDuplicateAccount, acct.Name)
	}
	if err := acct.Tags.Validate(); err != nil {
		return fmt.Errorf("account %s: %w", acct.Name, err)
	}
	if autoCreateParents {
		for _, anc := range acct.Name.Ancestors() {
			if !r.Exists(anc) {
				r.byKey[anc.Key()] = model.Account{Name: anc}
			}
		}
	}
	acct.Tags = acct.Tags.Clone()
	r.byKey[acct.Name.Key()] = acct
	return nil
}

// Get returns an account by name.
func (r *Registry) Get(q qname.QName) (model.Account, bool) {
	a, ok := r.byKey[q.Key()]
	return a, ok
}

// Exists reports whether q is a registered account.
func (r *Registry) Exists(q qname.QName) bool {
	_, ok := r.byKey[q.Key()]
	return ok
}

// Len returns the number of accounts.
func (r *Registry) Len() int { return len(r.byKey) }

// All returns all accounts ordered by name.
func (r *Registry) All() []model.Account {
	out := slices.Collect(maps.Values(r.byKey))
	sortAccounts(out)
	return out
}

// Children returns the registered accounts exactly one level below q.
func (r *Registry) Children(q qname.QName) []model.Account {
	var out []model.Account
	for _, a := range r.byKey {
		if a.Name.Depth() == q.Depth()+1 && a.Name.IsDescendantOf(q) {
			out = append(out, a)
		}
	}
	sortAccounts(out)
	return out
}

// Descendants returns every registered account below q.
func (r *Registry) Descendants(q qname.QName) []model.Account {
	var out []model.Account
	for _, a := range r.byKey {
		if a.Name.IsDescendantOf(q) {
			out = append(out, a)
		}
	}
	sortAccounts(out)
	return out
}

// IsValidQName reports whether q or one of its ancestors is an account.
func (r *Registry) IsValidQName(q qname.QName) bool {
	if q.IsZero() {
		return false
	}
	if r.Exists(q) {
		return true
	}
	for _, anc := range q.Ancestors() {
		if r.Exists(anc) {
			return true
		}
	}
	return false
}

// Resolve turns a full or shortened name into the account it designates. An
// exact match wins; otherwise name must be the trailing segments of exactly
// one account.
func (r *Registry) Resolve(name string) (qname.QName, error) {
	q, err := qname.Parse(name)
	if err != nil {
		return qname.QName{}, err
	}
	if r.Exists(q) {
		return q, nil
	}

	var matches []qname.QName
	for _, a := range r.byKey {
		if a.Name.HasSuffix(q) {
			matches = append(matches, a.Name)
		}
	}
	switch len(matches) {
	case 0:
		return qname.QName{}, fmt.Errorf("%w: %s", apperr.ErrUnknownAccount, name)
	case 1:
		return matches[0], nil
	default:
		slices.SortFunc(matches, qname.Compare)
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.String()
		}
		return qname.QName{}, fmt.Errorf("%w: %s matches %s", apperr.ErrAmbiguousName, name, strings.Join(names, ", "))
	}
}

// ShortName returns the shortest trailing part of q that no other account
// ends with. It keeps at least minLen segments, or the account's own ShortLen
// when that is larger. Root segments are dropped first.
func (r *Registry) ShortName(q qname.QName, minLen int) (string, error) {
	acct, ok := r.Get(q)
	if !ok {
		return "", fmt.Errorf("%w: %s", apperr.ErrUnknownAccount, q)
	}
	for n := max(minLen, acct.ShortLen, 1); n < q.Depth(); n++ {
		suffix := q.Suffix(n)
		if r.uniqueSuffix(q, suffix) {
			return suffix.String(), nil
		}
	}
	return q.String(), nil
}

func (r *Registry) uniqueSuffix(owner, suffix qname.QName) bool {
	for _, a := range r.byKey {
		if !a.Name.Equal(owner) && a.Name.HasSuffix(suffix) {
			return false
		}
	}
	return true
}

// ShortNames returns ShortName for every account, keyed by QName.Key.
func (r *Registry) ShortNames(minLen int) map[string]string {
	out := make(map[string]string, len(r.byKey))
	for k, a := range r.byKey {
		// cannot fail: a is registered
		out[k], _ = r.ShortName(a.Name, minLen)
	}
	return out
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	for k, a := range r.byKey {
		a.Tags = a.Tags.Clone()
		c.byKey[k] = a
	}
	return c
}

func sortAccounts(accts []model.Account) {
	slices.SortFunc(accts, func(a, b model.Account) int {
		return qname.Compare(a.Name, b.Name)
	})
}
