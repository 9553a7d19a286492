package commands

import (
	"damadam-scraper/lib/serviceutil"
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Processes the pending targets once within the configured time budget.",
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

		stats, err := a.coordinator().Run(ctx)
		if err != nil {
			a.Close()
			serviceutil.Fatal("run failed", err)
		}
		renderStats(stats)
		slog.Info("run finished", "run_id", stats.RunId, "stop_reason", stats.StopReason)
	},
}
