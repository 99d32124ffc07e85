// Package qname implements hierarchical account names such as
// "Assets:Bank:Checking".
//
// A QName is an immutable sequence of interned segments. Ancestor tests and
// ordering walk the segments directly and never re-split the string form.
package qname

import (
	"cmp"
	"fmt"
	"strings"
	"unique"

	"github.com/brightsidebudget/bsb/internal/apperr"
)

// Delimiter separates segments in the string form.
const Delimiter = ":"

// QName is a qualified account name. The zero value has no segments and is
// not a valid account name.
type QName struct {
	segs []unique.Handle[string]
	str  string
}

// Parse parses "A:B:C".
func Parse(s string) (QName, error) {
	if s == "" {
		return QName{}, fmt.Errorf("%w: empty name", apperr.ErrMalformedName)
	}
	q, err := FromSegments(strings.Split(s, Delimiter))
	if err != nil {
		return QName{}, fmt.Errorf("%w in %q", err, s)
	}
	return q, nil
}

// MustParse is Parse for names known to be valid. Panics otherwise.
func MustParse(s string) QName {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}

// FromSegments builds a QName from its segments.
func FromSegments(segs []string) (QName, error) {
	if len(segs) == 0 {
		return QName{}, fmt.Errorf("%w: no segments", apperr.ErrMalformedName)
	}
	handles := make([]unique.Handle[string], len(segs))
	for i, s := range segs {
		if s == "" {
			return QName{}, fmt.Errorf("%w: empty segment at position %d", apperr.ErrMalformedName, i)
		}
		if strings.Contains(s, Delimiter) {
			return QName{}, fmt.Errorf("%w: segment %q contains %q", apperr.ErrMalformedName, s, Delimiter)
		}
		handles[i] = unique.Make(s)
	}
	return QName{segs: handles, str: strings.Join(segs, Delimiter)}, nil
}

func fromHandles(h []unique.Handle[string]) QName {
	if len(h) == 0 {
		return QName{}
	}
	parts := make([]string, len(h))
	for i, s := range h {
		parts[i] = s.Value()
	}
	return QName{segs: h, str: strings.Join(parts, Delimiter)}
}

// String returns the delimited form.
func (q QName) String() string { return q.str }

// Key returns the canonical map key for q.
func (q QName) Key() string { return q.str }

// IsZero reports whether q has no segments.
func (q QName) IsZero() bool { return len(q.segs) == 0 }

// Depth returns the number of segments.
func (q QName) Depth() int { return len(q.segs) }

// Segments returns a copy of the segments.
func (q QName) Segments() []string {
	out := make([]string, len(q.segs))
	for i, s := range q.segs {
		out[i] = s.Value()
	}
	return out
}

// Basename returns the last segment.
func (q QName) Basename() string {
	if q.IsZero() {
		return ""
	}
	return q.segs[len(q.segs)-1].Value()
}

// Parent returns the name one level up. ok is false for top-level names.
func (q QName) Parent() (QName, bool) {
	if len(q.segs) <= 1 {
		return QName{}, false
	}
	return fromHandles(q.segs[:len(q.segs)-1]), true
}

// Ancestors returns every strict ancestor, root first.
func (q QName) Ancestors() []QName {
	if len(q.segs) <= 1 {
		return nil
	}
	out := make([]QName, 0, len(q.segs)-1)
	for n := 1; n < len(q.segs); n++ {
		out = append(out, fromHandles(q.segs[:n]))
	}
	return out
}

// Child returns q extended by one segment.
func (q QName) Child(seg string) (QName, error) {
	return FromSegments(append(q.Segments(), seg))
}

// Suffix returns the last n segments. n is clamped to [1, Depth].
func (q QName) Suffix(n int) QName {
	if q.IsZero() {
		return QName{}
	}
	n = max(1, min(n, len(q.segs)))
	return fromHandles(q.segs[len(q.segs)-n:])
}

// HasSuffix reports whether the trailing segments of q equal s.
func (q QName) HasSuffix(s QName) bool {
	if s.IsZero() || len(s.segs) > len(q.segs) {
		return false
	}
	off := len(q.segs) - len(s.segs)
	for i, h := range s.segs {
		if q.segs[off+i] != h {
			return false
		}
	}
	return true
}

// Equal reports structural equality.
func (q QName) Equal(o QName) bool {
	if len(q.segs) != len(o.segs) {
		return false
	}
	for i := range q.segs {
		if q.segs[i] != o.segs[i] {
			return false
		}
	}
	return true
}

// IsDescendantOf reports whether anc is a strict prefix of q.
func (q QName) IsDescendantOf(anc QName) bool {
	if anc.IsZero() || len(anc.segs) >= len(q.segs) {
		return false
	}
	for i, h := range anc.segs {
		if q.segs[i] != h {
			return false
		}
	}
	return true
}

// IsEqualOrDescendantOf is IsDescendantOf including q itself.
func (q QName) IsEqualOrDescendantOf(anc QName) bool {
	return q.Equal(anc) || q.IsDescendantOf(anc)
}

// Compare orders names segment by segment; a strict prefix sorts first.
func Compare(a, b QName) int {
	n := min(len(a.segs), len(b.segs))
	for i := 0; i < n; i++ {
		if a.segs[i] == b.segs[i] {
			continue
		}
		if c := cmp.Compare(a.segs[i].Value(), b.segs[i].Value()); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a.segs), len(b.segs))
}

// Less reports whether q sorts before o.
func (q QName) Less(o QName) bool { return Compare(q, o) < 0 }

// MarshalText implements encoding.TextMarshaler.
func (q QName) MarshalText() ([]byte, error) {
	return []byte(q.str), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *QName) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*q = p
	return nil
}
