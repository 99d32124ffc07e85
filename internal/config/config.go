package config

import (
	"fmt"
	"log/slog"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/brightsidebudget/bsb/internal/importer"
	"github.com/brightsidebudget/bsb/internal/model"
)

// FileName is the configuration file at the root of a ledger project.
const FileName = "bsb.yaml"

// Import formats.
const (
	FormatChase = "chase"
	FormatCSV   = "csv"
)

// Config represents the top-level bsb.yaml configuration.
type Config struct {
	Journal  JournalConfig  `yaml:"journal"`
	Check    CheckConfig    `yaml:"check"`
	Export   ExportConfig   `yaml:"export"`
	Imports  []ImportConfig `yaml:"import,omitempty"`
	Git      GitConfig      `yaml:"git"`
	Serve    ServeConfig    `yaml:"serve"`
	LogLevel slog.Level     `yaml:"log_level"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Journal),
		validation.Field(&c.Check),
		validation.Field(&c.Export),
		validation.Field(&c.Imports),
		validation.Field(&c.Serve),
	)
}

// JournalConfig locates the ledger and sets the journal mode.
type JournalConfig struct {
	// Dir holds accounts.csv, transactions.csv and balances.csv, relative
	// to the project directory.
	Dir               string `yaml:"dir"`
	Lang              string `yaml:"lang"` // column headers: en or fr
	Enforce1N         bool   `yaml:"enforce_1n"`
	AutoCreateParents bool   `yaml:"auto_create_parents"`
	// SQLite, when set, is the snapshot database written by export and
	// read by serve.
	SQLite string `yaml:"sqlite,omitempty"`
}

// Validate validates the journal configuration.
func (c JournalConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Lang, validation.In("en", "fr")),
	)
}

// Headers returns the column labels for Lang.
func (c JournalConfig) Headers() model.Headers {
	return model.HeadersFor(c.Lang)
}

// CheckConfig selects the checks run by bsb check.
type CheckConfig struct {
	ForbiddenAccounts []string `yaml:"forbidden_accounts,omitempty"`
	VerifyBAssertions bool     `yaml:"verify_balance_assertions"`
	UseStmtDate       bool     `yaml:"use_stmt_date"`
	Require1N         bool     `yaml:"require_1n"`
	MaxDecimals       int      `yaml:"max_decimals"`
	// AccountNumbers checks the "number" tag of accounts against
	// NumberRanges, keyed by root account. Empty ranges use the defaults.
	AccountNumbers bool                   `yaml:"account_numbers"`
	NumberRanges   map[string]NumberRange `yaml:"number_ranges,omitempty"`
}

// Validate validates the check configuration.
func (c CheckConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ForbiddenAccounts, validation.Each(validation.Required)),
		validation.Field(&c.MaxDecimals, validation.Min(0)),
		validation.Field(&c.NumberRanges),
	)
}

// NumberRange is an inclusive range of account numbers.
type NumberRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Validate validates the range.
func (r NumberRange) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Min, validation.Min(0)),
		validation.Field(&r.Max, validation.Required, validation.Min(r.Min)),
	)
}

// ExportConfig shapes bsb export and bsb rewrite.
type ExportConfig struct {
	Dir                   string `yaml:"dir"`
	Enforce1N             bool   `yaml:"enforce_1n"`
	AutoCreateParents     bool   `yaml:"auto_create_parents"`
	ShortNameLen          int    `yaml:"short_name_len"`
	Suspense              string `yaml:"suspense,omitempty"`
	ForceZeroTxn          bool   `yaml:"force_zero_txn"`
	OpeningBalanceDate    string `yaml:"opening_balance_date,omitempty"`
	OpeningBalanceAccount string `yaml:"opening_balance_account,omitempty"`
	Renumber              bool   `yaml:"renumber"`
	ExtraColumns          bool   `yaml:"extra_columns"`
	FirstFiscalMonth      int    `yaml:"first_fiscal_month"`
	InheritAccountTags    bool   `yaml:"inherit_account_tags"`
}

// Validate validates the export configuration.
func (c ExportConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.ShortNameLen, validation.Min(0)),
		validation.Field(&c.OpeningBalanceDate, validation.Date(model.DateLayout)),
		validation.Field(&c.OpeningBalanceAccount, validation.Empty.When(c.OpeningBalanceDate == "")),
		validation.Field(&c.FirstFiscalMonth, validation.Required.When(c.ExtraColumns), validation.Min(1), validation.Max(12)),
	)
}

// ImportConfig describes one bank account fed from exported files.
type ImportConfig struct {
	// Account receives the bank postings. Short names are accepted.
	Account string `yaml:"account"`
	// Folder is scanned for CSV files; imported ones move to Folder/processed.
	Folder  string                  `yaml:"import_folder"`
	Format  string                  `yaml:"format"`
	BankCSV *importer.BankCSVConfig `yaml:"bank_csv,omitempty"`
	// Rules is a YAML rules file for the classifier.
	Rules          string `yaml:"rules,omitempty"`
	DefaultAccount string `yaml:"default_account,omitempty"`
	// AutoBalance names the counter account of balancing txns; empty
	// disables it.
	AutoBalance string `yaml:"auto_balance,omitempty"`
	// AutoStmtDate is the window in days for moving statement dates so
	// assertions hold; 0 disables it.
	AutoStmtDate int         `yaml:"auto_stmt_date,omitempty"`
	SkipAsserted bool        `yaml:"skip_asserted"`
	Dedup        DedupConfig `yaml:"dedup"`
}

// Validate validates the import configuration.
func (c ImportConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Account, validation.Required),
		validation.Field(&c.Folder, validation.Required),
		validation.Field(&c.Format, validation.Required, validation.In(FormatChase, FormatCSV)),
		validation.Field(&c.BankCSV, validation.Required.When(c.Format == FormatCSV), validation.Nil.When(c.Format != FormatCSV)),
		validation.Field(&c.AutoStmtDate, validation.Min(0)),
		validation.Field(&c.Dedup),
	)
}

// DedupConfig sets the import dedup key.
type DedupConfig struct {
	// Fields are added to (account, date, amount): comment, reference,
	// stmt_date. Empty means reference.
	Fields        []string `yaml:"fields,omitempty"`
	CaseSensitive bool     `yaml:"case_sensitive"`
}

// Validate validates the dedup configuration.
func (c DedupConfig) Validate() error {
	_, err := c.Key()
	return err
}

// Key builds the dedup key.
func (c DedupConfig) Key() (importer.DedupKey, error) {
	if len(c.Fields) == 0 {
		k := importer.DefaultDedupKey()
		k.CaseSensitive = c.CaseSensitive
		return k, nil
	}
	k := importer.DedupKey{CaseSensitive: c.CaseSensitive}
	for _, s := range c.Fields {
		f, err := importer.ParseKeyField(s)
		if err != nil {
			return importer.DedupKey{}, err
		}
		k.Fields = append(k.Fields, f)
	}
	return k, nil
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// ServeConfig configures the read-only HTTP API.
type ServeConfig struct {
	Address string `yaml:"address"`
}

// Validate validates the serve configuration.
func (c ServeConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Address, validation.Required),
	)
}

// Load reads a bsb.yaml file from disk. ${VAR} references are expanded from
// the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Journal: JournalConfig{
			Dir:  "ledger",
			Lang: "en",
		},
		Check: CheckConfig{
			VerifyBAssertions: true,
			MaxDecimals:       2,
		},
		Export: ExportConfig{
			Dir:              "export",
			Renumber:         true,
			FirstFiscalMonth: 1,
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "bsb",
			AuthorEmail: "bsb@localhost",
		},
		Serve: ServeConfig{
			Address: "127.0.0.1:8080",
		},
		LogLevel: slog.LevelInfo,
	}
}
