package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightsidebudget/bsb/internal/config"
	"github.com/brightsidebudget/bsb/internal/importer"
	"github.com/brightsidebudget/bsb/internal/importlog"
	"github.com/brightsidebudget/bsb/internal/journal"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

func newImportCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import new bank files from the configured folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			return runImport(cmd.OutOrStdout(), p, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be imported without saving")

	return cmd
}

// importedFile is a bank file waiting to be moved to processed once the
// ledger is saved.
type importedFile struct {
	folder string
	entry  importlog.Entry
}

func runImport(out io.Writer, p *project, dryRun bool) error {
	if len(p.cfg.Imports) == 0 {
		return fmt.Errorf("no import section in %s", config.FileName)
	}
	j, err := p.loadJournal()
	if err != nil {
		return err
	}
	history, err := importlog.Read(p.dir)
	if err != nil {
		return err
	}

	var (
		added    []*model.Txn
		done     []importedFile
		fallback []qname.QName
	)
	for _, ic := range p.cfg.Imports {
		txns, files, fb, err := importAccount(p, j, ic, history)
		if err != nil {
			return fmt.Errorf("import %s: %w", ic.Account, err)
		}
		added = append(added, txns...)
		done = append(done, files...)
		if !fb.IsZero() {
			fallback = append(fallback, fb)
		}
	}

	fmt.Fprintf(out, "Imported %d transaction(s) from %d file(s)\n", len(added), len(done))
	for _, fb := range fallback {
		for _, dc := range importer.Uncategorized(added, fb) {
			fmt.Fprintf(out, "  %4d  %s -> %s\n", dc.Count, dc.Description, fb)
		}
	}
	if dryRun {
		return nil
	}

	if err := p.saveJournal(j); err != nil {
		return err
	}
	now := time.Now()
	entries := make([]importlog.Entry, 0, len(done))
	for _, f := range done {
		if err := importer.MarkProcessed(f.folder, f.entry.File); err != nil {
			return err
		}
		f.entry.Timestamp = now
		entries = append(entries, f.entry)
	}
	if err := importlog.Append(p.dir, entries); err != nil {
		return err
	}
	if len(added) == 0 {
		return nil
	}
	return p.commit(out, fmt.Sprintf("import: %d transaction(s)", len(added)))
}

// importAccount runs one import section against j. It returns the inserted
// txns, the files read and the fallback account of the classifier.
func importAccount(p *project, j *journal.Journal, ic config.ImportConfig, history []importlog.Entry) ([]*model.Txn, []importedFile, qname.QName, error) {
	reg := j.Accounts()
	account, err := reg.Resolve(ic.Account)
	if err != nil {
		return nil, nil, qname.QName{}, err
	}

	var parser importer.Parser
	if ic.Format == config.FormatCSV {
		parser = &importer.BankCSV{Name: ic.Account, Config: *ic.BankCSV}
	} else if parser = importer.DefaultRegistry().Get(ic.Format); parser == nil {
		return nil, nil, qname.QName{}, fmt.Errorf("unknown format %q", ic.Format)
	}

	var rules []importer.Rule
	if ic.Rules != "" {
		if rules, err = importer.LoadRulesFile(p.path(ic.Rules)); err != nil {
			return nil, nil, qname.QName{}, err
		}
	}
	fallback, err := resolveOpt(reg, ic.DefaultAccount)
	if err != nil {
		return nil, nil, qname.QName{}, fmt.Errorf("default account: %w", err)
	}
	classifier, err := importer.NewRuleClassifier(rules, reg, fallback)
	if err != nil {
		return nil, nil, qname.QName{}, err
	}
	key, err := ic.Dedup.Key()
	if err != nil {
		return nil, nil, qname.QName{}, err
	}
	pipeline := importer.NewPipeline(j, classifier,
		importer.WithLogger(p.logger.With("account", account.String())),
		importer.WithDedupKey(key),
		importer.WithSkipAsserted(ic.SkipAsserted),
	)

	folder := p.path(ic.Folder)
	files, err := importer.Scan(folder)
	if err != nil {
		return nil, nil, qname.QName{}, err
	}
	var (
		added []*model.Txn
		done  []importedFile
	)
	for _, f := range files {
		if importlog.Imported(history, account.String(), f.Name) {
			p.logger.Warn("file name already imported", "account", account.String(), "file", f.Name)
		}
		txns, err := pipeline.ImportFile(f.Path, parser, account)
		if err != nil {
			return nil, nil, qname.QName{}, err
		}
		added = append(added, txns...)
		done = append(done, importedFile{folder: folder, entry: importlog.Entry{
			Account: account.String(),
			File:    f.Name,
			Format:  parser.Format(),
			Added:   len(txns),
		}})
	}

	if ic.AutoStmtDate > 0 {
		moved, err := pipeline.AutoStmtDate(account, ic.AutoStmtDate)
		if err != nil {
			return nil, nil, qname.QName{}, err
		}
		p.logger.Debug("statement dates moved", "account", account.String(), "postings", moved)
	}
	if ic.AutoBalance != "" {
		counter, err := reg.Resolve(ic.AutoBalance)
		if err != nil {
			return nil, nil, qname.QName{}, fmt.Errorf("auto balance: %w", err)
		}
		txns, err := pipeline.AutoBalance(account, counter)
		if err != nil {
			return nil, nil, qname.QName{}, err
		}
		added = append(added, txns...)
	}
	return added, done, fallback, nil
}
