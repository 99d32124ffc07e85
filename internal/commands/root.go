package commands

import (
	"github.com/spf13/cobra"

	"github.com/brightsidebudget/bsb/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "bsb",
		Short:   "Personal double-entry ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("dir", ".", "project directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <dir>/bsb.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newInitCommand(),
		newCheckCommand(),
		newBalanceCommand(),
		newImportCommand(),
		newExportCommand(),
		newRewriteCommand(),
		newServeCommand(),
	)

	return rootCmd
}
