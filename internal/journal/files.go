package journal

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/brightsidebudget/bsb/internal/accounts"
	"github.com/brightsidebudget/bsb/internal/model"
)

// File names inside a ledger directory.
const (
	AccountsFile     = "accounts.csv"
	TransactionsFile = "transactions.csv"
	BalancesFile     = "balances.csv"
)

// LoadDir reads a ledger directory. Missing files are treated as empty.
func LoadDir(dir string, h model.Headers, opts ...Option) (*Journal, error) {
	var (
		accts    []model.Account
		postings []model.PostingRecord
		bs       []model.BAssertion
	)
	err := readFile(filepath.Join(dir, AccountsFile), func(r io.Reader) (err error) {
		accts, err = accounts.ReadAccounts(r, h)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = readFile(filepath.Join(dir, TransactionsFile), func(r io.Reader) (err error) {
		postings, err = ReadPostings(r, h)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = readFile(filepath.Join(dir, BalancesFile), func(r io.Reader) (err error) {
		bs, err = ReadBAssertions(r, h)
		return err
	})
	if err != nil {
		return nil, err
	}
	return Load(accts, postings, bs, opts...)
}

// SaveDir writes snap as a ledger directory, creating it if needed.
func SaveDir(dir string, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}
	if err := writeFile(filepath.Join(dir, AccountsFile), func(w io.Writer) error {
		return accounts.WriteAccounts(w, snap.Accounts, snap.Headers)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, TransactionsFile), func(w io.Writer) error {
		return WriteTxns(w, snap)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, BalancesFile), func(w io.Writer) error {
		return WriteBAssertions(w, snap)
	})
}

func readFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeFile writes to a temp file and renames it over path.
func writeFile(path string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := fn(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
