package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brightsidebudget/bsb/internal/journal"
	"github.com/brightsidebudget/bsb/internal/store"
)

func newExportCommand() *cobra.Command {
	var outDir, sqlitePath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a cleaned-up copy of the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			snap, err := p.exportSnapshot()
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = p.cfg.Export.Dir
			}
			dir := p.path(outDir)
			if err := journal.SaveDir(dir, snap); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Exported %d transaction(s) to %s\n", len(snap.Txns), dir)

			if sqlitePath == "" {
				sqlitePath = p.cfg.Journal.SQLite
			}
			if sqlitePath == "" {
				return nil
			}
			db, err := store.Open(p.path(sqlitePath), store.WithLogger(p.logger))
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Save(cmd.Context(), snap); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote snapshot to %s\n", p.path(sqlitePath))
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default export.dir)")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "also write the snapshot to this SQLite database (default journal.sqlite)")

	return cmd
}

func newRewriteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite",
		Short: "Apply the export options to the ledger in place",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			snap, err := p.exportSnapshot()
			if err != nil {
				return err
			}
			if err := journal.SaveDir(p.path(p.cfg.Journal.Dir), snap); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rewrote %d transaction(s)\n", len(snap.Txns))
			return p.commit(out, "rewrite: apply export options")
		},
	}
}

// exportSnapshot loads the ledger and exports it with the export section.
func (p *project) exportSnapshot() (*journal.Snapshot, error) {
	j, err := p.loadJournal()
	if err != nil {
		return nil, err
	}
	opts, err := p.exportOptions(j.Accounts())
	if err != nil {
		return nil, err
	}
	return j.Export(opts)
}
