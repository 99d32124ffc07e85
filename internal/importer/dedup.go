package importer

import (
	"fmt"
	"strings"

	"github.com/brightsidebudget/bsb/internal/model"
)

// KeyField is an optional part of the dedup key.
type KeyField string

const (
	FieldComment   KeyField = "comment"
	FieldReference KeyField = "reference"
	FieldStmtDate  KeyField = "stmt_date"
)

// ParseKeyField parses a key field name.
func ParseKeyField(s string) (KeyField, error) {
	switch f := KeyField(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldComment, FieldReference, FieldStmtDate:
		return f, nil
	}
	return "", fmt.Errorf("unknown dedup key field %q", s)
}

// DedupKey decides when an imported posting is already in the journal. The
// key is always (account, date, amount) plus Fields. Text fields are trimmed
// and have their inner whitespace collapsed; they are lower-cased unless
// CaseSensitive is set.
type DedupKey struct {
	Fields        []KeyField
	CaseSensitive bool
}

// DefaultDedupKey compares the statement description.
func DefaultDedupKey() DedupKey {
	return DedupKey{Fields: []KeyField{FieldReference}}
}

// Of returns the key of p.
func (k DedupKey) Of(p model.Posting) string {
	parts := []string{
		p.Account.Key(),
		model.FormatDate(model.Day(p.Date)),
		p.Amount.String(),
	}
	for _, f := range k.Fields {
		switch f {
		case FieldComment:
			parts = append(parts, k.normalize(p.Comment))
		case FieldReference:
			parts = append(parts, k.normalize(p.Reference))
		case FieldStmtDate:
			parts = append(parts, model.FormatDate(p.StatementDate()))
		}
	}
	return strings.Join(parts, "\x1f")
}

func (k DedupKey) normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if !k.CaseSensitive {
		s = strings.ToLower(s)
	}
	return s
}

// Dedup returns the candidates not already in existing. Each existing posting
// absorbs at most one matching candidate, so two identical rows in a fresh
// batch are both kept.
func Dedup(existing, candidates []model.Posting, key DedupKey) []model.Posting {
	known := make(map[string]int, len(existing))
	for _, p := range existing {
		known[key.Of(p)]++
	}

	var fresh []model.Posting
	for _, p := range candidates {
		k := key.Of(p)
		if known[k] > 0 {
			known[k]--
			continue
		}
		fresh = append(fresh, p)
	}
	return fresh
}
