package commands

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsidebudget/bsb/internal/config"
	"github.com/brightsidebudget/bsb/internal/importlog"
	"github.com/brightsidebudget/bsb/internal/journal"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/store"
)

const chaseFixture = "../../testdata/chase_checking.csv"

func runBSB(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), err
}

// newProject runs init --no-git in a fresh directory.
func newProject(t *testing.T, args ...string) string {
	t.Helper()
	dir := t.TempDir()
	_, err := runBSB(t, append([]string{"init", dir, "--no-git"}, args...)...)
	require.NoError(t, err)
	return dir
}

func editConfig(t *testing.T, dir string, fn func(*config.Config)) {
	t.Helper()
	path := filepath.Join(dir, config.FileName)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	fn(cfg)
	require.NoError(t, config.Save(path, cfg))
}

// withChaseImport configures a chase import on the checking account and
// drops the fixture into its folder.
func withChaseImport(t *testing.T, dir string) {
	t.Helper()
	rules := "- description_equals: [METRO GROCERY 0142]\n  second_account_name: Groceries\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules", "rules.yaml"), []byte(rules), 0o644))

	editConfig(t, dir, func(c *config.Config) {
		c.Imports = []config.ImportConfig{{
			Account:        "Checking",
			Folder:         "import/checking",
			Format:         config.FormatChase,
			Rules:          "rules/rules.yaml",
			DefaultAccount: "Uncategorized",
		}}
	})

	data, err := os.ReadFile(chaseFixture)
	require.NoError(t, err)
	folder := filepath.Join(dir, "import", "checking")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "jan.csv"), data, 0o644))
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := newProject(t)

	for _, d := range []string{"ledger", "rules", "import", filepath.Join("import", "processed")} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
	for _, f := range []string{journal.AccountsFile, journal.TransactionsFile, journal.BalancesFile} {
		_, err := os.Stat(filepath.Join(dir, "ledger", f))
		require.NoError(t, err, "ledger file %s should exist", f)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	for _, pattern := range []string{"export/", "*.sqlite", ".env"} {
		assert.Contains(t, string(data), pattern)
	}

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Journal.Lang)
}

func TestInit_French(t *testing.T) {
	dir := newProject(t, "--chart", "personal_fr")

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "fr", cfg.Journal.Lang)

	out, err := runBSB(t, "--dir", dir, "balance", "Chèque")
	require.NoError(t, err)
	assert.Contains(t, out, "Actifs:Banque:Chèque")
}

func TestInit_AlreadyExists(t *testing.T) {
	dir := newProject(t)
	_, err := runBSB(t, "init", dir, "--no-git")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInit_GitRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	out, err := runBSB(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized ledger")

	_, err = os.Stat(filepath.Join(dir, ".git"))
	require.NoError(t, err, ".git should exist")

	log := exec.Command("git", "log", "--format=%s|%an <%ae>", "-1")
	log.Dir = dir
	msg, err := log.Output()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "init:")
	assert.Contains(t, string(msg), "bsb <bsb@localhost>")
}

func TestCheck_Fresh(t *testing.T) {
	dir := newProject(t)
	out, err := runBSB(t, "--dir", dir, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "OK: 16 accounts, 0 transactions")
}

func TestCheck_NoConfig(t *testing.T) {
	_, err := runBSB(t, "--dir", t.TempDir(), "check")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestImport(t *testing.T) {
	dir := newProject(t)
	withChaseImport(t, dir)

	out, err := runBSB(t, "--dir", dir, "import")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 6 transaction(s) from 1 file(s)")
	assert.Contains(t, out, "RENT JANUARY -> Expenses:Uncategorized")
	assert.NotContains(t, out, "METRO GROCERY")

	_, err = os.Stat(filepath.Join(dir, "import", "checking", "jan.csv"))
	assert.True(t, os.IsNotExist(err), "imported file should be moved")
	_, err = os.Stat(filepath.Join(dir, "import", "checking", "processed", "jan.csv"))
	require.NoError(t, err)

	entries, err := importlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Assets:Bank:Checking", entries[0].Account)
	assert.Equal(t, "jan.csv", entries[0].File)
	assert.Equal(t, "chase", entries[0].Format)
	assert.Equal(t, 6, entries[0].Added)

	out, err = runBSB(t, "--dir", dir, "balance", "Checking", "--date", "2025-02-01")
	require.NoError(t, err)
	assert.Equal(t, "Assets:Bank:Checking 2025-02-01 757.41\n", out)

	out, err = runBSB(t, "--dir", dir, "balance", "Groceries", "--from", "2025-01-01", "--date", "2025-02-01")
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Groceries 2025-01-01..2025-02-01 127.19\n", out)

	out, err = runBSB(t, "--dir", dir, "import")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 transaction(s) from 0 file(s)")
}

func TestImport_DryRun(t *testing.T) {
	dir := newProject(t)
	withChaseImport(t, dir)

	out, err := runBSB(t, "--dir", dir, "import", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 6 transaction(s)")

	_, err = os.Stat(filepath.Join(dir, "import", "checking", "jan.csv"))
	require.NoError(t, err, "dry run keeps the file in place")

	out, err = runBSB(t, "--dir", dir, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "0 transactions")
}

func TestImport_NotConfigured(t *testing.T) {
	dir := newProject(t)
	_, err := runBSB(t, "--dir", dir, "import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no import section")
}

func TestCheck_ForbiddenAccount(t *testing.T) {
	dir := newProject(t)
	withChaseImport(t, dir)
	_, err := runBSB(t, "--dir", dir, "import")
	require.NoError(t, err)

	editConfig(t, dir, func(c *config.Config) {
		c.Check.ForbiddenAccounts = []string{"Uncategorized"}
	})
	out, err := runBSB(t, "--dir", dir, "check")
	require.Error(t, err)
	assert.Equal(t, "4 problem(s)", err.Error())
	assert.Contains(t, out, "posting on forbidden account Expenses:Uncategorized")
}

func TestBalance_Several(t *testing.T) {
	dir := newProject(t)
	withChaseImport(t, dir)
	_, err := runBSB(t, "--dir", dir, "import")
	require.NoError(t, err)

	out, err := runBSB(t, "--dir", dir, "balance", "Checking", "Groceries", "--date", "2025-02-01")
	require.NoError(t, err)
	assert.Equal(t, "Assets:Bank:Checking 2025-02-01 757.41\nExpenses:Groceries 2025-02-01 127.19\n", out)

	out, err = runBSB(t, "--dir", dir, "balance", "Expenses", "--children", "--date", "2025-02-01")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Expenses:Groceries 2025-02-01 127.19", lines[0])
	assert.Equal(t, "Expenses:Housing 2025-02-01 0", lines[1])
}

func TestCheck_AccountNumbers(t *testing.T) {
	dir := newProject(t)
	accts := "Account,Short length,number\n" +
		"Assets,,1000\n" +
		"Assets:Bank,,1100\n" +
		"Assets:Cash,,1100\n" +
		"Expenses,,5000\n" +
		"Expenses:Groceries,,1200\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger", journal.AccountsFile), []byte(accts), 0o644))

	out, err := runBSB(t, "--dir", dir, "check")
	require.NoError(t, err, out)

	editConfig(t, dir, func(c *config.Config) { c.Check.AccountNumbers = true })
	out, err = runBSB(t, "--dir", dir, "check")
	require.Error(t, err)
	assert.Equal(t, "2 problem(s)", err.Error())
	assert.Contains(t, out, "account number 1100 already used by Assets:Bank")
	assert.Contains(t, out, "account number 1200 outside 5000-5999 for Expenses")

	editConfig(t, dir, func(c *config.Config) {
		c.Check.NumberRanges = map[string]config.NumberRange{"Expenses": {Min: 1000, Max: 5999}}
	})
	out, err = runBSB(t, "--dir", dir, "check")
	require.Error(t, err)
	assert.Equal(t, "1 problem(s)", err.Error())
	assert.NotContains(t, out, "outside")
}

func TestBalance_UnknownAccount(t *testing.T) {
	dir := newProject(t)
	_, err := runBSB(t, "--dir", dir, "balance", "Nowhere")
	require.Error(t, err)
}

func TestExport(t *testing.T) {
	dir := newProject(t)
	withChaseImport(t, dir)
	_, err := runBSB(t, "--dir", dir, "import")
	require.NoError(t, err)

	out, err := runBSB(t, "--dir", dir, "export", "--sqlite", "ledger.sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 6 transaction(s)")

	exported, err := journal.LoadDir(filepath.Join(dir, "export"), model.EnglishHeaders())
	require.NoError(t, err)
	assert.Equal(t, 6, exported.Len())

	db, err := store.Open(filepath.Join(dir, "ledger.sqlite"))
	require.NoError(t, err)
	defer db.Close()
	j, err := db.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, j.Len())
	assert.Equal(t, 16, j.Accounts().Len())
}

func TestRewrite(t *testing.T) {
	dir := newProject(t)
	withChaseImport(t, dir)
	_, err := runBSB(t, "--dir", dir, "import")
	require.NoError(t, err)

	editConfig(t, dir, func(c *config.Config) {
		c.Export.OpeningBalanceDate = "2025-01-16"
		c.Export.OpeningBalanceAccount = "Opening Balances"
	})
	out, err := runBSB(t, "--dir", dir, "rewrite")
	require.NoError(t, err)
	assert.Contains(t, out, "Rewrote")

	out, err = runBSB(t, "--dir", dir, "balance", "Checking", "--date", "2025-02-01")
	require.NoError(t, err)
	assert.Equal(t, "Assets:Bank:Checking 2025-02-01 757.41\n", out)
}

func TestRewrite_ForceZeroTxnTwice(t *testing.T) {
	dir := newProject(t)
	withChaseImport(t, dir)
	_, err := runBSB(t, "--dir", dir, "import")
	require.NoError(t, err)

	balances := "Date,Account,Balance,Comment\n2025-02-01,Assets:Bank:Checking,757.41,\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger", journal.BalancesFile), []byte(balances), 0o644))
	editConfig(t, dir, func(c *config.Config) {
		c.Export.Suspense = "Suspense"
		c.Export.ForceZeroTxn = true
	})

	for range 2 {
		_, err = runBSB(t, "--dir", dir, "rewrite")
		require.NoError(t, err)
		out, err := runBSB(t, "--dir", dir, "check")
		require.NoError(t, err)
		assert.Contains(t, out, "7 transactions")
	}
}

func TestServeJournal(t *testing.T) {
	dir := newProject(t)
	withChaseImport(t, dir)
	_, err := runBSB(t, "--dir", dir, "import")
	require.NoError(t, err)
	_, err = runBSB(t, "--dir", dir, "export", "--sqlite", "ledger.sqlite")
	require.NoError(t, err)

	root := NewRootCommand()
	require.NoError(t, root.ParseFlags([]string{"--dir", dir}))
	p, err := openProject(root)
	require.NoError(t, err)

	fromCSV, err := p.serveJournal(context.Background(), "")
	require.NoError(t, err)
	fromDB, err := p.serveJournal(context.Background(), "ledger.sqlite")
	require.NoError(t, err)
	assert.Equal(t, fromCSV.Len(), fromDB.Len())
}
