package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brightsidebudget/bsb/internal/api"
	"github.com/brightsidebudget/bsb/internal/journal"
	"github.com/brightsidebudget/bsb/internal/store"
)

func newServeCommand() *cobra.Command {
	var addr, sqlitePath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only JSON queries over the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if sqlitePath == "" {
				sqlitePath = p.cfg.Journal.SQLite
			}
			j, err := p.serveJournal(ctx, sqlitePath)
			if err != nil {
				return err
			}

			if addr == "" {
				addr = p.cfg.Serve.Address
			}
			return api.Serve(ctx, addr, api.NewRouter(j, p.logger), p.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default serve.address)")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "read the ledger from this SQLite snapshot (default journal.sqlite)")

	return cmd
}

// serveJournal reads the SQLite snapshot when one is named, the ledger
// directory otherwise.
func (p *project) serveJournal(ctx context.Context, sqlitePath string) (*journal.Journal, error) {
	if sqlitePath == "" {
		return p.loadJournal()
	}
	db, err := store.Open(p.path(sqlitePath), store.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.Load(ctx, p.journalOptions()...)
}
