package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brightsidebudget/bsb/internal/journal"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			j, err := p.loadJournal()
			if err != nil {
				return err
			}
			opts, err := p.checkOptions(j.Accounts())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			errs := journal.Validate(j, opts)
			for _, e := range errs {
				fmt.Fprintln(out, e.Error())
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d problem(s)", len(errs))
			}
			fmt.Fprintf(out, "OK: %d accounts, %d transactions, %d balance assertions\n",
				j.Accounts().Len(), j.Len(), len(j.BAssertions()))
			return nil
		},
	}
}
