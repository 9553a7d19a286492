package commands

import (
	"damadam-scraper/internal/scrapers/damadam"
	"damadam-scraper/internal/targetscraper"
	"damadam-scraper/lib/configutil"
	"errors"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
)

const (
	rowStoreSheets = "sheets"
	rowStoreSqlite = "sqlite"
)

type SheetsConfig struct {
	// spreadsheet url or id
	Spreadsheet string `json:"spreadsheet"`
	// path to a service account json file, CredentialsJson takes precedence
	CredentialsFile string              `json:"credentials_file"`
	CredentialsJson string              `json:"credentials_json"`
	WriteDelay      configutil.Duration `json:"write_delay"`
	// write link columns as IMAGE/HYPERLINK formulas
	Formulas *bool `json:"formulas"`
}

type SqliteConfig struct {
	Path string `json:"path"`
}

type DamadamConfig struct {
	BaseUrl  string                `json:"base_url"`
	Accounts []damadam.Credentials `json:"accounts"`
	// badger directory used to reuse login sessions across runs, empty keeps
	// sessions in memory
	SessionDir        string              `json:"session_dir"`
	SessionTtl        configutil.Duration `json:"session_ttl"`
	RequestsPerSecond float64             `json:"requests_per_second"`
	Timeout           configutil.Duration `json:"timeout"`
	// dumps every http request into this directory when set
	DumpDir string `json:"dump_dir"`
}

type RunConfig struct {
	Budget        configutil.Duration `json:"budget"`
	MinTargetCost configutil.Duration `json:"min_target_cost"`
	MaxTargets    int                 `json:"max_targets"`
	MinDelay      configutil.Duration `json:"min_delay"`
	MaxDelay      configutil.Duration `json:"max_delay"`
	BatchSize     int                 `json:"batch_size"`
	BatchPause    configutil.Duration `json:"batch_pause"`
}

type DaemonConfig struct {
	Schedule     string `json:"schedule"`
	AllowedHours []int  `json:"allowed_hours"`
	RunOnStart   bool   `json:"run_on_start"`
}

type Config struct {
	// sheets or sqlite
	RowStore string        `json:"row_store"`
	Sheets   SheetsConfig  `json:"sheets"`
	Sqlite   SqliteConfig  `json:"sqlite"`
	Damadam  DamadamConfig `json:"damadam"`
	Run      RunConfig     `json:"run"`
	Daemon   DaemonConfig  `json:"daemon"`
}

func defaultConfig() Config {
	return Config{
		RowStore: rowStoreSheets,
		Sheets: SheetsConfig{
			WriteDelay: configutil.Duration(800 * time.Millisecond),
		},
		Sqlite: SqliteConfig{
			Path: "<dev_state>/rowstore.db",
		},
		Damadam: DamadamConfig{
			BaseUrl:           damadam.DefaultBaseUrl,
			SessionDir:        "<dev_state>/sessions",
			SessionTtl:        configutil.Duration(24 * time.Hour),
			RequestsPerSecond: 2,
			Timeout:           configutil.Duration(30 * time.Second),
		},
		Run: RunConfig{
			Budget:        configutil.Duration(55 * time.Minute),
			MinTargetCost: configutil.Duration(10 * time.Second),
			MinDelay:      configutil.Duration(400 * time.Millisecond),
			MaxDelay:      configutil.Duration(600 * time.Millisecond),
			BatchSize:     20,
			BatchPause:    configutil.Duration(5 * time.Second),
		},
		Daemon: DaemonConfig{
			Schedule: "0 * * * *",
		},
	}
}

// overlayAccount replaces the account at index when the environment
// provides a username for it.
func overlayAccount(env *configutil.Env, accounts []damadam.Credentials, index int, suffix string) []damadam.Credentials {
	var cred damadam.Credentials
	if index < len(accounts) {
		cred = accounts[index]
	}
	env.String("DAMADAM_USERNAME"+suffix, &cred.Username)
	env.String("DAMADAM_PASSWORD"+suffix, &cred.Password)
	if cred.Username == "" {
		return accounts
	}
	for len(accounts) <= index {
		accounts = append(accounts, damadam.Credentials{})
	}
	accounts[index] = cred
	return accounts
}

func (c *Config) overlayEnv(lookup func(string) (string, bool)) error {
	env := configutil.NewEnv(lookup)

	c.Damadam.Accounts = overlayAccount(env, c.Damadam.Accounts, 0, "")
	c.Damadam.Accounts = overlayAccount(env, c.Damadam.Accounts, 1, "_2")
	env.Seconds("PAGE_LOAD_TIMEOUT", &c.Damadam.Timeout)

	env.String("ROW_STORE", &c.RowStore)
	env.String("GOOGLE_SHEET_URL", &c.Sheets.Spreadsheet)
	env.String("GOOGLE_CREDENTIALS_JSON", &c.Sheets.CredentialsJson)
	env.Seconds("SHEET_WRITE_DELAY", &c.Sheets.WriteDelay)
	env.String("SQLITE_PATH", &c.Sqlite.Path)

	env.Seconds("RUN_BUDGET", &c.Run.Budget)
	env.Int("MAX_PROFILES_PER_RUN", &c.Run.MaxTargets)
	env.Int("BATCH_SIZE", &c.Run.BatchSize)
	env.Seconds("MIN_DELAY", &c.Run.MinDelay)
	env.Seconds("MAX_DELAY", &c.Run.MaxDelay)

	return env.Err()
}

func (c Config) validate() error {
	var errs []error
	switch c.RowStore {
	case rowStoreSheets:
		if c.Sheets.Spreadsheet == "" {
			errs = append(errs, errors.New("sheets.spreadsheet (GOOGLE_SHEET_URL) is required"))
		}
		if c.Sheets.CredentialsJson == "" && c.Sheets.CredentialsFile == "" {
			errs = append(errs, errors.New("sheets.credentials_json (GOOGLE_CREDENTIALS_JSON) is required"))
		}
	case rowStoreSqlite:
		if c.Sqlite.Path == "" {
			errs = append(errs, errors.New("sqlite.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown row_store %q", c.RowStore))
	}
	if c.Run.MaxDelay.Std() < c.Run.MinDelay.Std() {
		errs = append(errs, errors.New("run.max_delay is smaller than run.min_delay"))
	}
	for _, hour := range c.Daemon.AllowedHours {
		if hour < 0 || hour > 23 {
			errs = append(errs, fmt.Errorf("daemon.allowed_hours: %d is not an hour", hour))
		}
	}
	return errors.Join(errs...)
}

// mergeConfig lays the values set in a config file over the defaults, zero
// values in the file keep the default.
func mergeConfig(dst *Config, fromFile Config) error {
	err := mergo.Merge(dst, fromFile, mergo.WithOverride)
	if err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	return nil
}

// loadConfig reads the config file (a missing file is fine, the environment
// alone can configure a run) and overlays the environment.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	fromFile, err := configutil.ReadConfig[Config](path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	default:
		err = mergeConfig(&cfg, fromFile)
		if err != nil {
			return Config{}, err
		}
	}

	err = cfg.overlayEnv(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func (c Config) runOptions() targetscraper.RunOptions {
	return targetscraper.RunOptions{
		Budget:        c.Run.Budget.Std(),
		MinTargetCost: c.Run.MinTargetCost.Std(),
		MinDelay:      c.Run.MinDelay.Std(),
		MaxDelay:      c.Run.MaxDelay.Std(),
		BatchSize:     c.Run.BatchSize,
		BatchPause:    c.Run.BatchPause.Std(),
	}
}

func (c Config) daemonOptions() targetscraper.DaemonOptions {
	return targetscraper.DaemonOptions{
		Schedule:     c.Daemon.Schedule,
		AllowedHours: c.Daemon.AllowedHours,
		RunOnStart:   c.Daemon.RunOnStart,
	}
}

// formulas defaults to on for sheets, sqlite has nothing to evaluate them.
func (c Config) formulas() bool {
	if c.Sheets.Formulas != nil {
		return *c.Sheets.Formulas
	}
	return c.RowStore == rowStoreSheets
}
