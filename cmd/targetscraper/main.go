package main

import (
	"context"
	"damadam-scraper/cmd/targetscraper/commands"
	"damadam-scraper/internal/components/telemetry"
	"damadam-scraper/lib/serviceutil"
	"errors"
	"log/slog"
	"os"
	"time"
)

func run() int {
	ctx := serviceutil.SignalContext()

	providers, err := telemetry.SetupFromEnv(context.Background(), "targetscraper")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to setup otel, continuing without it", "err", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := providers.Shutdown(shutdownCtx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}()

	return commands.ExecuteContext(ctx)
}

func main() {
	os.Exit(run())
}
