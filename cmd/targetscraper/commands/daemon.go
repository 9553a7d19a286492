package commands

import (
	"damadam-scraper/internal/components/chrono"
	"damadam-scraper/internal/components/telemetry"
	"damadam-scraper/internal/targetscraper"
	"damadam-scraper/lib/serviceutil"
	"log/slog"

	"github.com/spf13/cobra"
)

var runOnStart bool

func init() {
	daemonCmd.Flags().BoolVar(&runOnStart, "now", false, "Also run immediately if the current hour is allowed.")
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon [--now]",
	Short: "Runs on the configured schedule until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		a, err := newApp()
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		defer a.Close()

		err = a.openStore(ctx)
		if err != nil {
			a.Close()
			serviceutil.Fatal("failed to open row store", err)
		}
		err = a.login(ctx)
		if err != nil {
			a.Close()
			serviceutil.Fatal("failed to login to damadam", err)
		}

		telemetry.InstrumentPerfStats(ctx)

		opts := a.cfg.daemonOptions()
		opts.RunOnStart = opts.RunOnStart || runOnStart
		cron := chrono.NewStandardCron(a.clock.Location(), a.tel)
		daemon := targetscraper.NewDaemon(a.coordinator(), cron, a.clock, a.tel, opts)

		slog.Info("daemon started", "schedule", opts.Schedule, "allowed_hours", opts.AllowedHours)
		err = daemon.Start(ctx)
		if err != nil {
			a.Close()
			serviceutil.Fatal("failed to start daemon", err)
		}
		slog.Info("daemon stopped")
	},
}
