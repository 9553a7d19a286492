package main

import (
	"context"
	devenv "damadam-scraper/dev/env"
	"damadam-scraper/internal/rowstore"
	"damadam-scraper/internal/rowstore/sqlitestore"
	"damadam-scraper/internal/targetscraper"
	"fmt"
	"log/slog"
	"os"
)

// CreateRowStore creates the sqlite row store used by `row_store: "sqlite"`
// and queues the seed nicknames in its Target table.
func CreateRowStore(ctx context.Context, seed []string) error {
	path, err := devenv.ResolvePath("<dev_state>/rowstore.db")
	if err != nil {
		return err
	}

	fmt.Println("preparing row store at", path)
	store, err := sqlitestore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	err = targetscraper.EnsureTables(ctx, store)
	if err != nil {
		return err
	}
	for _, nickname := range seed {
		err = store.AppendRow(ctx, rowstore.TableTarget, []string{
			nickname,
			targetscraper.StatusPending.String(),
			"",
			targetscraper.SourceManual,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

const damadamConfigTemplate = `{
  // an account used by the tests that talk to damadam.pk
  username: "",
  password: "",
  // a nickname that is known to exist
  nickname: "",
}
`

// CreateConfigTemplates writes empty state configs, tests that need them skip
// until they are filled in.
func CreateConfigTemplates() error {
	path, err := devenv.GetStateFilePath("damadam_config.template.json5")
	if err != nil {
		return err
	}
	_, err = os.Stat(path)
	if err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(damadamConfigTemplate), 0600)
}

func PrintConfigLocations() {
	slog.Info("tests that talk to damadam.pk read dev/.state/damadam_config.json5, copy the template next to it and fill it in. they are skipped until then.")
}
