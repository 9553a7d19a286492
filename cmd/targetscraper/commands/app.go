package commands

import (
	"context"
	devenv "damadam-scraper/dev/env"
	"damadam-scraper/internal/components/chrono"
	"damadam-scraper/internal/components/telemetry"
	"damadam-scraper/internal/rowstore"
	"damadam-scraper/internal/rowstore/sheets"
	"damadam-scraper/internal/rowstore/sqlitestore"
	"damadam-scraper/internal/scrapers/damadam"
	"damadam-scraper/internal/targetscraper"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// app holds everything a command needs, built from the config.
type app struct {
	cfg     Config
	clock   chrono.API
	tel     telemetry.API
	store   rowstore.Store
	fetcher *damadam.Fetcher

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		err := a.closers[i]()
		if err != nil {
			slog.Warn("failed to close resource", "err", err)
		}
	}
}

func newApp() (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:   cfg,
		clock: chrono.NewStandardImpl(),
		tel:   telemetry.SlogAPI{},
	}, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.RowStore {
	case rowStoreSqlite:
		path, err := devenv.ResolvePath(a.cfg.Sqlite.Path)
		if err != nil {
			return err
		}
		store, err := sqlitestore.Open(path)
		if err != nil {
			return fmt.Errorf("open sqlite row store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.store = store
		return nil
	case rowStoreSheets:
		credentials := []byte(a.cfg.Sheets.CredentialsJson)
		if len(credentials) == 0 {
			path, err := devenv.ResolvePath(a.cfg.Sheets.CredentialsFile)
			if err != nil {
				return err
			}
			contents, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read service account credentials: %w", err)
			}
			credentials = contents
		}
		store, err := sheets.New(ctx, credentials, sheets.Options{
			Spreadsheet: a.cfg.Sheets.Spreadsheet,
			WriteDelay:  a.cfg.Sheets.WriteDelay.Std(),
		}, a.tel)
		if err != nil {
			return err
		}
		a.store = store
		return nil
	}
	return fmt.Errorf("unknown row_store %q", a.cfg.RowStore)
}

// login creates the damadam client and logs in, trying stored sessions
// before the configured accounts.
func (a *app) login(ctx context.Context) error {
	cfg := a.cfg.Damadam
	if len(cfg.Accounts) == 0 {
		return errors.New("no damadam account configured (DAMADAM_USERNAME, DAMADAM_PASSWORD)")
	}

	var sessions *damadam.SessionStore
	if cfg.SessionDir != "" {
		dir, err := devenv.ResolvePath(cfg.SessionDir)
		if err != nil {
			return err
		}
		sessions, err = damadam.OpenSessionStore(dir, cfg.SessionTtl.Std())
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		a.closers = append(a.closers, sessions.Close)
	}

	var output telemetry.MessageOutput
	if cfg.DumpDir != "" {
		dir, err := devenv.ResolvePath(cfg.DumpDir)
		if err != nil {
			return err
		}
		fsOutput, err := telemetry.NewFilesystemOutput(dir)
		if err != nil {
			return fmt.Errorf("create http dump directory: %w", err)
		}
		output = fsOutput
	}

	client, err := damadam.NewClient(damadam.ClientOptions{
		BaseUrl:           cfg.BaseUrl,
		Accounts:          cfg.Accounts,
		Sessions:          sessions,
		Output:            output,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout.Std(),
	}, a.tel)
	if err != nil {
		return fmt.Errorf("create damadam client: %w", err)
	}

	loginCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	err = client.Login(loginCtx)
	if err != nil {
		return err
	}
	slog.Info("logged in to damadam", "account", client.Account())

	a.fetcher = damadam.NewFetcher(client, a.clock, a.tel)
	return nil
}

func (a *app) scanner() *targetscraper.Scanner {
	scanner := targetscraper.NewScanner(a.store, a.tel)
	scanner.MaxTargets = a.cfg.Run.MaxTargets
	return scanner
}

func (a *app) coordinator() *targetscraper.Coordinator {
	processor := targetscraper.NewProcessor(a.store, a.fetcher, a.clock, a.tel)
	processor.Formulas = a.cfg.formulas()
	return targetscraper.NewCoordinator(
		a.store,
		a.scanner(),
		processor,
		a.clock,
		a.tel,
		a.cfg.runOptions(),
	)
}
