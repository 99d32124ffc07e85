package importer

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/brightsidebudget/bsb/internal/apperr"
	"github.com/brightsidebudget/bsb/internal/journal"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// Pipeline imports bank postings into a journal.
type Pipeline struct {
	j            *journal.Journal
	classifier   Classifier
	key          DedupKey
	skipAsserted bool
	logger       *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithDedupKey replaces DefaultDedupKey.
func WithDedupKey(k DedupKey) PipelineOption {
	return func(p *Pipeline) {
		p.key = k
	}
}

// WithSkipAsserted drops candidates dated on or before the last balance
// assertion of the import account; that period is considered closed.
func WithSkipAsserted(on bool) PipelineOption {
	return func(p *Pipeline) {
		p.skipAsserted = on
	}
}

// NewPipeline returns a pipeline adding to j.
func NewPipeline(j *journal.Journal, c Classifier, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		j:          j,
		classifier: c,
		key:        DefaultDedupKey(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Import adds the new candidates on account to the journal and returns the
// inserted transactions. Candidates already in the journal are skipped, so
// importing the same batch twice changes nothing the second time. Nothing is
// inserted on error.
func (p *Pipeline) Import(account qname.QName, candidates []model.Posting) ([]*model.Txn, error) {
	if !p.j.Accounts().Exists(account) {
		return nil, fmt.Errorf("import account: %w: %s", apperr.ErrUnknownAccount, account)
	}

	cands := make([]model.Posting, 0, len(candidates))
	last, asserted := p.j.LastBAssertion(account)
	for _, c := range candidates {
		c.Account = account
		c.Date = model.Day(c.Date)
		if p.skipAsserted && asserted && !c.Date.After(last.Date) {
			continue
		}
		cands = append(cands, c)
	}

	var existing []model.Posting
	for _, e := range p.j.Postings() {
		if e.Account.Equal(account) {
			existing = append(existing, e)
		}
	}
	fresh := Dedup(existing, cands, p.key)
	p.logger.Info("new postings found",
		slog.String("account", account.String()),
		slog.Int("candidates", len(candidates)),
		slog.Int("new", len(fresh)))

	var txns []*model.Txn
	for _, c := range fresh {
		ts, err := p.classifier.Classify(c)
		if err != nil {
			return nil, fmt.Errorf("classifying: %w", err)
		}
		txns = append(txns, ts...)
	}

	trial := p.j.Clone()
	for _, t := range txns {
		if _, err := trial.AddTxn(t); err != nil {
			return nil, fmt.Errorf("importing: %w", err)
		}
	}

	added := make([]*model.Txn, 0, len(txns))
	for _, t := range txns {
		n, err := p.j.AddTxn(t)
		if err != nil {
			return added, fmt.Errorf("importing: %w", err)
		}
		got, _ := p.j.Txn(n)
		added = append(added, got)
		p.logger.Debug("txn imported",
			slog.Int("txn", n),
			slog.String("date", model.FormatDate(got.Date)),
			slog.String("amount", got.Postings[0].Amount.String()))
	}
	return added, nil
}

// ImportFile parses path with parser and imports it on account.
func (p *Pipeline) ImportFile(path string, parser Parser, account qname.QName) ([]*model.Txn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	ps, err := parser.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	p.logger.Info("bank file parsed",
		slog.String("file", filepath.Base(path)),
		slog.String("format", parser.Format()),
		slog.Int("postings", len(ps)))
	return p.Import(account, ps)
}

// AutoBalance makes every assertion on account hold, by statement date,
// posting the difference against counter.
func (p *Pipeline) AutoBalance(account, counter qname.QName) ([]*model.Txn, error) {
	return p.j.Reconcile(journal.AdjustOptions{
		Suspense:    counter,
		UseStmtDate: true,
		Comment:     "auto-balance",
	}, account)
}

// AutoStmtDate moves statement dates on account so its assertions hold by
// statement date. See journal.FixStatementDates.
func (p *Pipeline) AutoStmtDate(account qname.QName, windowDays int) (int, error) {
	return p.j.FixStatementDates(account, windowDays)
}

// DescriptionCount is a statement description and how often it occurs.
type DescriptionCount struct {
	Description string
	Count       int
}

// Uncategorized counts the statement descriptions of txns that were posted
// against fallback, most frequent first.
func Uncategorized(txns []*model.Txn, fallback qname.QName) []DescriptionCount {
	counts := map[string]int{}
	for _, t := range txns {
		if slices.ContainsFunc(t.Accounts(), fallback.Equal) {
			counts[t.Postings[0].Reference]++
		}
	}
	out := make([]DescriptionCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, DescriptionCount{Description: d, Count: n})
	}
	slices.SortFunc(out, func(a, b DescriptionCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Description, b.Description)
	})
	return out
}
