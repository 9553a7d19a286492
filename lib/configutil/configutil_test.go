package configutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	SheetUrl string   `json:"sheet_url"`
	Budget   Duration `json:"budget"`
	Accounts []string `json:"accounts"`
	Batch    int      `json:"batch"`
}

func TestReadConfigMergesLocalOverride(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		// base config
		sheet_url: "https://docs.google.com/spreadsheets/d/base",
		budget: "50m",
		batch: 20,
	}`), 0666)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		sheet_url: "https://docs.google.com/spreadsheets/d/local",
	}`), 0666)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://docs.google.com/spreadsheets/d/local", cfg.SheetUrl)
	require.Equal(t, 50*time.Minute, cfg.Budget.Std())
	require.Equal(t, 20, cfg.Batch)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvOverlay(t *testing.T) {
	env := map[string]string{
		"SHEET":  "https://example.com/sheet",
		"BATCH":  "5",
		"DELAY":  "0.8",
		"BUDGET": "45m",
		"BLANK":  "   ",
		"BROKEN": "many",
	}
	lookup := func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}

	sheet := "unchanged"
	blank := "kept"
	batch := 20
	broken := 1
	var delay, budget Duration

	e := NewEnv(lookup)
	e.String("SHEET", &sheet)
	e.String("BLANK", &blank)
	e.Int("BATCH", &batch)
	e.Int("BROKEN", &broken)
	e.Seconds("DELAY", &delay)
	e.Seconds("BUDGET", &budget)

	require.Equal(t, "https://example.com/sheet", sheet)
	require.Equal(t, "kept", blank)
	require.Equal(t, 5, batch)
	require.Equal(t, 1, broken)
	require.Equal(t, 800*time.Millisecond, delay.Std())
	require.Equal(t, 45*time.Minute, budget.Std())

	require.Error(t, e.Err())
	require.Contains(t, e.Err().Error(), "BROKEN")
}
