package commands

import (
	"damadam-scraper/internal/scrapers/damadam"
	"damadam-scraper/lib/serviceutil"
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <nickname>...",
	Short: "Fetches and prints profiles without touching the spreadsheet.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		a, err := newApp()
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		defer a.Close()

		err = a.login(ctx)
		if err != nil {
			a.Close()
			serviceutil.Fatal("failed to login to damadam", err)
		}

		for _, nickname := range args {
			record, err := a.fetcher.Fetch(ctx, nickname)
			if err != nil {
				slog.Error("fetch failed", "nickname", nickname, "kind", damadam.KindOf(err), "err", err)
				continue
			}
			renderRecord(record)
		}
	},
}
