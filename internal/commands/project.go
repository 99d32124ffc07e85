package commands

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightsidebudget/bsb/internal/accounts"
	"github.com/brightsidebudget/bsb/internal/config"
	"github.com/brightsidebudget/bsb/internal/gitops"
	"github.com/brightsidebudget/bsb/internal/journal"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// project is a loaded bsb.yaml together with the directory it lives in.
type project struct {
	dir    string
	cfg    *config.Config
	logger *slog.Logger
}

// openProject loads the configuration named by the persistent flags.
func openProject(cmd *cobra.Command) (*project, error) {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return nil, err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if cfgPath == "" {
		cfgPath = filepath.Join(absDir, config.FileName)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return &project{
		dir:    absDir,
		cfg:    cfg,
		logger: newLogger(cmd.ErrOrStderr(), level),
	}, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// path resolves rel against the project directory.
func (p *project) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.dir, rel)
}

func (p *project) journalOptions() []journal.Option {
	return []journal.Option{
		journal.WithLogger(p.logger),
		journal.WithEnforce1N(p.cfg.Journal.Enforce1N),
		journal.WithAutoCreateParents(p.cfg.Journal.AutoCreateParents),
	}
}

func (p *project) loadJournal() (*journal.Journal, error) {
	j, err := journal.LoadDir(p.path(p.cfg.Journal.Dir), p.cfg.Journal.Headers(), p.journalOptions()...)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	return j, nil
}

// saveJournal writes j back to the ledger directory as is.
func (p *project) saveJournal(j *journal.Journal) error {
	snap, err := j.Export(journal.ExportOptions{Headers: p.cfg.Journal.Headers()})
	if err != nil {
		return err
	}
	return journal.SaveDir(p.path(p.cfg.Journal.Dir), snap)
}

// exportOptions turns the export section into journal options. Account
// names are resolved against reg, so short names work.
func (p *project) exportOptions(reg *accounts.Registry) (journal.ExportOptions, error) {
	c := p.cfg.Export
	opts := journal.ExportOptions{
		Enforce1N:          c.Enforce1N,
		AutoCreateParents:  c.AutoCreateParents,
		ShortNameLen:       c.ShortNameLen,
		ForceZeroTxn:       c.ForceZeroTxn,
		Renumber:           c.Renumber,
		ExtraColumns:       c.ExtraColumns,
		FirstFiscalMonth:   c.FirstFiscalMonth,
		InheritAccountTags: c.InheritAccountTags,
		Headers:            p.cfg.Journal.Headers(),
	}
	var err error
	if opts.Suspense, err = resolveOpt(reg, c.Suspense); err != nil {
		return opts, fmt.Errorf("export suspense: %w", err)
	}
	if opts.OpeningBalanceAccount, err = resolveOpt(reg, c.OpeningBalanceAccount); err != nil {
		return opts, fmt.Errorf("export opening balance account: %w", err)
	}
	if c.OpeningBalanceDate != "" {
		if opts.OpeningBalanceDate, err = model.ParseDate(c.OpeningBalanceDate); err != nil {
			return opts, fmt.Errorf("export opening balance date: %w", err)
		}
	}
	return opts, nil
}

func (p *project) checkOptions(reg *accounts.Registry) (journal.CheckOptions, error) {
	c := p.cfg.Check
	opts := journal.CheckOptions{
		VerifyBAssertions: c.VerifyBAssertions,
		UseStmtDate:       c.UseStmtDate,
		Require1N:         c.Require1N,
		MaxDecimals:       c.MaxDecimals,
		AccountNumbers:    c.AccountNumbers,
	}
	if len(c.NumberRanges) > 0 {
		opts.NumberRanges = make(map[string]journal.NumberRange, len(c.NumberRanges))
		for root, r := range c.NumberRanges {
			opts.NumberRanges[root] = journal.NumberRange{Min: r.Min, Max: r.Max}
		}
	}
	for _, name := range c.ForbiddenAccounts {
		// a forbidden account need not exist; unresolved names are kept as written
		q, err := qname.Parse(name)
		if err != nil {
			return opts, fmt.Errorf("forbidden account: %w", err)
		}
		if r, err := reg.Resolve(name); err == nil {
			q = r
		}
		opts.ForbiddenAccounts = append(opts.ForbiddenAccounts, q)
	}
	return opts, nil
}

// commit records the project directory in git when auto-commit is on and
// the project is a repository.
func (p *project) commit(w io.Writer, message string) error {
	if !p.cfg.Git.AutoCommit || !gitops.IsRepo(p.dir) {
		return nil
	}
	hash, err := gitops.CommitAll(p.dir, message, p.cfg.Git.AuthorName, p.cfg.Git.AuthorEmail)
	if err != nil {
		return err
	}
	if hash != "" {
		fmt.Fprintf(w, "Committed %s\n", hash)
	}
	return nil
}

func resolveOpt(reg *accounts.Registry, name string) (qname.QName, error) {
	if name == "" {
		return qname.QName{}, nil
	}
	return reg.Resolve(name)
}

func parseDateFlag(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	return model.ParseDate(v)
}
