// Package config loads settleloop.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file at the ledger root.
const FileName = "settleloop.yaml"

// Environment variables that override the file.
const (
	EnvCurrentUser = "SETTLELOOP_CURRENT_USER"
	EnvState       = "SETTLELOOP_STATE"
	EnvLogLevel    = "SETTLELOOP_LOG_LEVEL"
)

var envKeys = []string{EnvCurrentUser, EnvState, EnvLogLevel}

// Config represents the top-level settleloop.yaml configuration.
type Config struct {
	Ledger     LedgerConfig     `yaml:"ledger"`
	Paths      PathsConfig      `yaml:"paths"`
	AutoSplit  AutoSplitConfig  `yaml:"autosplit"`
	Settlement SettlementConfig `yaml:"settlement"`
	Log        LogConfig        `yaml:"log"`
	Git        GitConfig        `yaml:"git"`
}

// LedgerConfig identifies the household and who is running the CLI.
type LedgerConfig struct {
	Name        string `yaml:"name"`
	Currency    string `yaml:"currency"`
	CurrentUser string `yaml:"current_user"`
}

// PathsConfig locates state, imports and logs. Relative paths are resolved
// against the ledger root.
type PathsConfig struct {
	State     string `yaml:"state"`
	Accounts  string `yaml:"accounts"`
	ImportDir string `yaml:"import_dir"`
	LogDir    string `yaml:"log_dir"`
}

// AutoSplitConfig tunes the transaction scan.
type AutoSplitConfig struct {
	ScanWindowDays int `yaml:"scan_window_days"`
}

// SettlementConfig controls deposits and reminders.
type SettlementConfig struct {
	DepositAccount        string `yaml:"deposit_account"`
	ReminderAfterHours    int    `yaml:"reminder_after_hours"`
	ReminderIntervalHours int    `yaml:"reminder_interval_hours"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// GitConfig is the author of the commits recorded when the ledger root is a
// git repository.
type GitConfig struct {
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// ReminderAfter is the delay between initiating a settlement and the first
// reminder.
func (s SettlementConfig) ReminderAfter() time.Duration {
	return time.Duration(s.ReminderAfterHours) * time.Hour
}

// ReminderInterval is the minimum gap between reminders to one member.
func (s SettlementConfig) ReminderInterval() time.Duration {
	return time.Duration(s.ReminderIntervalHours) * time.Hour
}

// Load reads a settleloop.yaml file from disk. Missing fields keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv reads path, then applies overrides from envFile (if it exists)
// and from the process environment, which wins.
func LoadWithEnv(path, envFile string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	env, err := readEnv(envFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(env)
	return cfg, nil
}

func readEnv(envFile string) (map[string]string, error) {
	env := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
		for k, v := range vals {
			env[k] = v
		}
	}
	for _, k := range envKeys {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env, nil
}

// ApplyEnv overrides fields from env. Empty values are ignored.
func (c *Config) ApplyEnv(env map[string]string) {
	if v := env[EnvCurrentUser]; v != "" {
		c.Ledger.CurrentUser = v
	}
	if v := env[EnvState]; v != "" {
		c.Paths.State = v
	}
	if v := env[EnvLogLevel]; v != "" {
		c.Log.Level = v
	}
}

// Validate rejects values the ledger cannot run with.
func (c *Config) Validate() error {
	if c.AutoSplit.ScanWindowDays <= 0 {
		return fmt.Errorf("autosplit.scan_window_days must be positive, got %d", c.AutoSplit.ScanWindowDays)
	}
	if c.Settlement.ReminderAfterHours < 0 || c.Settlement.ReminderIntervalHours < 0 {
		return fmt.Errorf("settlement reminder hours must not be negative")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
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

// Resolve returns p joined to root unless p is absolute.
func Resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// Default returns a Config with sensible defaults for a new ledger.
func Default(name string) *Config {
	return &Config{
		Ledger: LedgerConfig{
			Name:     name,
			Currency: "CAD",
		},
		Paths: PathsConfig{
			State:     "state.yaml",
			Accounts:  "accounts.csv",
			ImportDir: "import",
			LogDir:    "logs",
		},
		AutoSplit: AutoSplitConfig{
			ScanWindowDays: 30,
		},
		Settlement: SettlementConfig{
			DepositAccount:        "chequing-1",
			ReminderAfterHours:    48,
			ReminderIntervalHours: 24,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Git: GitConfig{
			AuthorName:  "SettleLoop",
			AuthorEmail: "ledger@settleloop.app",
		},
	}
}
