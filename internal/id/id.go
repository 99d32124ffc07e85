// Package id allocates and renumbers transaction numbers.
package id

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Sequence hands out increasing transaction numbers starting at 1.
type Sequence struct {
	last int
}

// Next returns the next unused number.
func (s *Sequence) Next() int {
	s.last++
	return s.last
}

// Observe records that n is in use so Next never returns it.
func (s *Sequence) Observe(n int) {
	s.last = max(s.last, n)
}

// Last returns the highest number handed out or observed.
func (s *Sequence) Last() int { return s.last }

// Key is what renumbering sorts on.
type Key struct {
	Date time.Time
	ID   int
}

// Renumber assigns 1..len(keys) ordered by (date, previous id). Ties keep
// input order. The result is indexed like keys.
func Renumber(keys []Key) []int {
	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := keys[a].Date.Compare(keys[b].Date); c != 0 {
			return c
		}
		return cmp.Compare(keys[a].ID, keys[b].ID)
	})

	out := make([]int, len(keys))
	for n, i := range order {
		out[i] = n + 1
	}
	return out
}

// Format renders a transaction number.
func Format(n int) string {
	return strconv.Itoa(n)
}

// Parse parses a transaction number. Numbers start at 1.
func Parse(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid txn number %q: %w", s, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid txn number %q: must be positive", s)
	}
	return n, nil
}
