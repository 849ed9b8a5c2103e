package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("Household")
	cfg.Ledger.CurrentUser = "mem-001"
	cfg.Settlement.DepositAccount = "joint-1"

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg := Default("Household")

	assert.Equal(t, "Household", cfg.Ledger.Name)
	assert.Equal(t, "CAD", cfg.Ledger.Currency)
	assert.Empty(t, cfg.Ledger.CurrentUser)
	assert.Equal(t, "state.yaml", cfg.Paths.State)
	assert.Equal(t, 30, cfg.AutoSplit.ScanWindowDays)
	assert.Equal(t, "chequing-1", cfg.Settlement.DepositAccount)
	assert.Equal(t, 48*time.Hour, cfg.Settlement.ReminderAfter())
	assert.Equal(t, 24*time.Hour, cfg.Settlement.ReminderInterval())
	assert.Equal(t, "SettleLoop", cfg.Git.AuthorName)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("ledger:\n  name: Flat 4B\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Flat 4B", cfg.Ledger.Name)
	assert.Equal(t, 30, cfg.AutoSplit.ScanWindowDays)
	assert.Equal(t, "logs", cfg.Paths.LogDir)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"window", "autosplit:\n  scan_window_days: 0\n", "scan_window_days"},
		{"format", "log:\n  format: xml\n", "log.format"},
		{"reminders", "settlement:\n  reminder_after_hours: -1\n", "reminder hours"},
		{"syntax", "ledger: [", "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, Default("Household")))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SETTLELOOP_CURRENT_USER=mem-002\nSETTLELOOP_STATE=alt.yaml\n"), 0o644))
	t.Setenv(EnvState, "from-process.yaml")

	cfg, err := LoadWithEnv(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "mem-002", cfg.Ledger.CurrentUser)
	assert.Equal(t, "from-process.yaml", cfg.Paths.State, "process environment wins over .env")
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadWithEnv_MissingEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, Default("Household")))

	cfg, err := LoadWithEnv(path, filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "Household", cfg.Ledger.Name)
}

func TestApplyEnv_IgnoresEmpty(t *testing.T) {
	cfg := Default("Household")
	cfg.ApplyEnv(map[string]string{EnvLogLevel: "", EnvCurrentUser: "mem-009"})
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "mem-009", cfg.Ledger.CurrentUser)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("root", "state.yaml"), Resolve("root", "state.yaml"))
	assert.Equal(t, "/abs/state.yaml", Resolve("root", "/abs/state.yaml"))
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default("Household")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Household")
	assert.Contains(t, contents, "scan_window_days: 30")
	assert.Contains(t, contents, "deposit_account: chequing-1")
	assert.Contains(t, contents, "format: console")
}
