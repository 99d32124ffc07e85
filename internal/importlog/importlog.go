// Package importlog keeps the history of imported bank files in
// logs/import-log.csv under the project directory.
package importlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Entry is one imported file.
type Entry struct {
	Timestamp time.Time
	Account   string
	File      string
	Format    string
	Added     int
}

// Header is the CSV header of the log.
var Header = []string{"timestamp", "account", "file", "format", "added"}

const (
	logDir     = "logs"
	logFile    = "import-log.csv"
	colTime    = 0
	colAccount = 1
	colFile    = 2
	colFormat  = 3
	colAdded   = 4
)

// Path returns the log file of the project at root.
func Path(root string) string {
	return filepath.Join(root, logDir, logFile)
}

func marshal(e Entry) []string {
	row := make([]string, len(Header))
	row[colTime] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colAccount] = e.Account
	row[colFile] = e.File
	row[colFormat] = e.Format
	row[colAdded] = strconv.Itoa(e.Added)
	return row
}

func unmarshal(rec []string) (Entry, error) {
	ts, err := time.Parse(time.RFC3339, rec[colTime])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", rec[colTime], err)
	}
	added, err := strconv.Atoi(rec[colAdded])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing added %q: %w", rec[colAdded], err)
	}
	return Entry{
		Timestamp: ts,
		Account:   rec[colAccount],
		File:      rec[colFile],
		Format:    rec[colFormat],
		Added:     added,
	}, nil
}

// Append adds entries to the log of the project at root, creating the file
// and its header if needed.
func Append(root string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	path := Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(Header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(marshal(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns the log of the project at root, oldest first. A missing log
// is empty.
func Read(root string) ([]Entry, error) {
	f, err := os.Open(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading import log: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		e, err := unmarshal(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Imported reports whether a file with this name was already imported on
// account.
func Imported(entries []Entry, account, file string) bool {
	for _, e := range entries {
		if e.Account == account && e.File == file {
			return true
		}
	}
	return false
}
