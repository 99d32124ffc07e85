package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/brightsidebudget/bsb/internal/accounts"
	"github.com/brightsidebudget/bsb/internal/config"
	"github.com/brightsidebudget/bsb/internal/gitops"
	"github.com/brightsidebudget/bsb/internal/journal"
)

func newInitCommand() *cobra.Command {
	var chart string
	var noGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledger project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, absDir, chart, noGit)
		},
	}

	cmd.Flags().StringVar(&chart, "chart", "personal", "starter chart of accounts (personal, personal_fr)")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "do not create a git repository")

	return cmd
}

func runInit(cmd *cobra.Command, dir, chart string, noGit bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	cfg := config.Default()
	if chart == "personal_fr" {
		cfg.Journal.Lang = "fr"
	}

	dirs := []string{
		cfg.Journal.Dir,
		"rules",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	j, err := journal.Load(accounts.DefaultChart(chart), nil, nil)
	if err != nil {
		return fmt.Errorf("building chart of accounts: %w", err)
	}
	snap, err := j.Export(journal.ExportOptions{Headers: cfg.Journal.Headers()})
	if err != nil {
		return err
	}
	if err := journal.SaveDir(filepath.Join(dir, cfg.Journal.Dir), snap); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "rules", "rules.yaml"), []byte("[]\n"), 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}

	gitignore := cfg.Export.Dir + "/\n*.sqlite\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	out := cmd.OutOrStdout()
	if noGit {
		fmt.Fprintf(out, "Initialized ledger at %s\n", dir)
		return nil
	}

	if err := gitops.Init(dir, cmd.ErrOrStderr()); err != nil {
		return err
	}
	hash, err := gitops.CommitAll(dir, "init: new ledger", cfg.Git.AuthorName, cfg.Git.AuthorEmail)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Fprintf(out, "Initialized ledger at %s (%s)\n", dir, hash)
	return nil
}
