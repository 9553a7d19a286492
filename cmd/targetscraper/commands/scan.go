package commands

import (
	"damadam-scraper/lib/serviceutil"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Prints the worklist the next run would process without changing anything.",
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

		result, err := a.scanner().Scan(ctx)
		if err != nil {
			a.Close()
			serviceutil.Fatal("failed to scan targets", err)
		}

		renderTargets("Pending", result.Pending)
		renderTargets("Interrupted (left in Processing)", result.Interrupted)
		renderTargets("Duplicates (skipped)", result.Duplicates)
		fmt.Printf(
			"%d pending, %d interrupted, %d duplicates\n",
			len(result.Pending),
			len(result.Interrupted),
			len(result.Duplicates),
		)
	},
}
