package commands

import (
	"damadam-scraper/internal/targetscraper"
	"damadam-scraper/lib/serviceutil"
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Creates the tables a run needs and writes their headers.",
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
		err = targetscraper.EnsureTables(ctx, a.store)
		if err != nil {
			a.Close()
			serviceutil.Fatal("failed to setup tables", err)
		}
		slog.Info("tables ready", "row_store", a.cfg.RowStore)
	},
}
