package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"ga4skill/internal/store"

	"github.com/spf13/cobra"
)

var (
	historyDB    string
	historyURL   string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded audit runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyDB, "db", "artifacts/ga4-history.db", "History database")
	historyCmd.Flags().StringVar(&historyURL, "url", "", "Only runs for this URL")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	h, err := store.Open(historyDB)
	if err != nil {
		return err
	}
	defer h.Close()

	runs, err := h.Recent(historyURL, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tSOURCE\tDURATION\tURL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			badge(r.Status), r.Source, r.Duration.Round(time.Millisecond), r.URL)
	}
	return tw.Flush()
}
