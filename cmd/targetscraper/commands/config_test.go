package commands

import (
	"damadam-scraper/internal/scrapers/damadam"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func lookupFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := vars[key]
		return value, ok
	}
}

func TestOverlayEnv(t *testing.T) {
	cfg := defaultConfig()
	cfg.Damadam.Accounts = []damadam.Credentials{{Username: "fromfile", Password: "secret"}}

	err := cfg.overlayEnv(lookupFrom(map[string]string{
		"DAMADAM_USERNAME":     "primary",
		"DAMADAM_PASSWORD":     "pw1",
		"DAMADAM_USERNAME_2":   "backup",
		"DAMADAM_PASSWORD_2":   "pw2",
		"GOOGLE_SHEET_URL":     "https://docs.google.com/spreadsheets/d/abc123/edit",
		"RUN_BUDGET":           "20m",
		"MAX_PROFILES_PER_RUN": "50",
		"BATCH_SIZE":           "",
		"MIN_DELAY":            "1.5",
		"MAX_DELAY":            "2",
		"SHEET_WRITE_DELAY":    "0.8",
	}))
	require.NoError(t, err)

	require.Equal(t, []damadam.Credentials{
		{Username: "primary", Password: "pw1"},
		{Username: "backup", Password: "pw2"},
	}, cfg.Damadam.Accounts)
	require.Equal(t, "https://docs.google.com/spreadsheets/d/abc123/edit", cfg.Sheets.Spreadsheet)
	require.Equal(t, 20*time.Minute, cfg.Run.Budget.Std())
	require.Equal(t, 50, cfg.Run.MaxTargets)
	require.Equal(t, 20, cfg.Run.BatchSize)
	require.Equal(t, 1500*time.Millisecond, cfg.Run.MinDelay.Std())
	require.Equal(t, 2*time.Second, cfg.Run.MaxDelay.Std())
	require.Equal(t, 800*time.Millisecond, cfg.Sheets.WriteDelay.Std())
}

func TestOverlayEnvKeepsFileAccountsWithoutEnv(t *testing.T) {
	cfg := defaultConfig()
	cfg.Damadam.Accounts = []damadam.Credentials{{Username: "fromfile", Password: "secret"}}

	require.NoError(t, cfg.overlayEnv(lookupFrom(nil)))
	require.Equal(t, []damadam.Credentials{{Username: "fromfile", Password: "secret"}}, cfg.Damadam.Accounts)
}

func TestOverlayEnvRejectsBadNumbers(t *testing.T) {
	cfg := defaultConfig()
	err := cfg.overlayEnv(lookupFrom(map[string]string{"BATCH_SIZE": "many"}))
	require.ErrorContains(t, err, "BATCH_SIZE")
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.Error(t, cfg.validate())

	cfg.Sheets.Spreadsheet = "abc123"
	cfg.Sheets.CredentialsJson = "{}"
	require.NoError(t, cfg.validate())
	require.True(t, cfg.formulas())

	cfg.RowStore = rowStoreSqlite
	require.NoError(t, cfg.validate())
	require.False(t, cfg.formulas())

	cfg.RowStore = "excel"
	require.ErrorContains(t, cfg.validate(), "excel")

	cfg.RowStore = rowStoreSqlite
	cfg.Daemon.AllowedHours = []int{3, 24}
	require.ErrorContains(t, cfg.validate(), "24")
}

func TestLoadConfigMergesFile(t *testing.T) {
	for _, key := range []string{"ROW_STORE", "SQLITE_PATH", "RUN_BUDGET", "BATCH_SIZE", "MIN_DELAY"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	err := os.WriteFile(path, []byte(`{
		// local sqlite run
		row_store: "sqlite",
		sqlite: { path: "targets.db" },
		run: { budget: "10m", batch_size: 5 },
		daemon: { allowed_hours: [3, 13] },
	}`), 0600)
	require.NoError(t, err)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, rowStoreSqlite, cfg.RowStore)
	require.Equal(t, "targets.db", cfg.Sqlite.Path)
	require.Equal(t, 10*time.Minute, cfg.Run.Budget.Std())
	require.Equal(t, 5, cfg.Run.BatchSize)
	require.Equal(t, 400*time.Millisecond, cfg.Run.MinDelay.Std())
	require.Equal(t, []int{3, 13}, cfg.Daemon.AllowedHours)
	require.Equal(t, "0 * * * *", cfg.Daemon.Schedule)
}
