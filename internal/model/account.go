package model

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// Tags are free-form name/value pairs attached to accounts, postings and
// balance assertions. They are exported as extra columns.
type Tags map[string]string

// Clone returns a copy of t. A nil t yields nil.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	return maps.Clone(t)
}

// Keys returns the tag names in sorted order.
func (t Tags) Keys() []string {
	return slices.Sorted(maps.Keys(t))
}

// Validate rejects blank tag names and names that are record keys.
func (t Tags) Validate() error {
	for _, k := range t.Keys() {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: blank name", apperr.ErrReservedTag)
		}
		if slices.Contains(recordKeys, k) {
			return fmt.Errorf("%w: %q", apperr.ErrReservedTag, k)
		}
	}
	return nil
}

// MergeTags layers tag sets; later layers win on name collision.
func MergeTags(layers ...Tags) Tags {
	out := Tags{}
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

// Account represents a row in accounts.csv.
type Account struct {
	Name     qname.QName
	Tags     Tags
	ShortLen int // minimum segments when rendered short; 0 = unset
}
