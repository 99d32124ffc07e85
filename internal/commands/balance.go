package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightsidebudget/bsb/internal/journal"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

func newBalanceCommand() *cobra.Command {
	var date, from string
	var stmt, flat, children bool

	cmd := &cobra.Command{
		Use:   "balance <account>...",
		Short: "Print account balances, or their flow with --from",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			j, err := p.loadJournal()
			if err != nil {
				return err
			}
			accts, err := resolveAccounts(j, args, children)
			if err != nil {
				return err
			}
			asOf, err := parseDateFlag(date, model.Day(time.Now()))
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}

			out := cmd.OutOrStdout()
			if from != "" {
				start, err := model.ParseDate(from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				for _, acct := range accts {
					flow, err := j.Flow(acct, start, asOf, !flat)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s %s..%s %s\n", acct, model.FormatDate(start), model.FormatDate(asOf), flow)
				}
				return nil
			}

			if stmt {
				for _, acct := range accts {
					b, err := j.StatementBalance(acct, asOf)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s %s %s\n", acct, model.FormatDate(asOf), b)
				}
				return nil
			}

			bals, err := j.Balances(cmd.Context(), accts, asOf)
			if err != nil {
				return err
			}
			for i, acct := range accts {
				fmt.Fprintf(out, "%s %s %s\n", acct, model.FormatDate(asOf), bals[i])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "as-of date, or exclusive end of the flow period (default today)")
	cmd.Flags().StringVar(&from, "from", "", "print the flow from this date instead of the balance")
	cmd.Flags().BoolVar(&stmt, "stmt", false, "use statement dates")
	cmd.Flags().BoolVar(&flat, "flat", false, "exclude sub-accounts from the flow")
	cmd.Flags().BoolVar(&children, "children", false, "report the direct sub-accounts of each account instead")

	return cmd
}

// resolveAccounts resolves full or short names, replacing each with its
// direct children when children is set.
func resolveAccounts(j *journal.Journal, names []string, children bool) ([]qname.QName, error) {
	reg := j.Accounts()
	var out []qname.QName
	for _, n := range names {
		acct, err := reg.Resolve(n)
		if err != nil {
			return nil, err
		}
		if !children {
			out = append(out, acct)
			continue
		}
		for _, c := range reg.Children(acct) {
			out = append(out, c.Name)
		}
	}
	return out, nil
}
