package cmd

import (
	"fmt"

	"github.com/analogrelay/go-ffi-boundary/internal/benchstore"
	"github.com/spf13/cobra"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded benchmark runs",
	Long:  `Prints the runs recorded with "bench --record", newest first, as a markdown table.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cmd.Flags().GetString("db")
		if err != nil {
			return fmt.Errorf("failed to get db: %w", err)
		}
		op, err := cmd.Flags().GetString("op")
		if err != nil {
			return fmt.Errorf("failed to get op: %w", err)
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return fmt.Errorf("failed to get limit: %w", err)
		}

		store, err := benchstore.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List(cmd.Context(), op, limit)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}
		fmt.Fprintf(w, "| Started | Run | Operation | Workers | Total Ops | Errors | Duration (ms) | Ops/sec | Latency (ms) |\n")
		fmt.Fprintf(w, "|---------|-----|-----------|---------|-----------|--------|---------------|---------|--------------|\n")
		for _, r := range runs {
			fmt.Fprintf(w, "| %s | %s | %s | %d | %d | %d | %d | %.2f | %.6f |\n",
				r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
				r.ID,
				r.Op,
				r.Workers,
				r.TotalOps,
				r.Errors,
				r.Elapsed.Milliseconds(),
				r.OpsPerSecond,
				r.LatencyMs)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringP("db", "d", "ffibench.db", "SQLite history database")
	historyCmd.Flags().StringP("op", "o", "", "Only list runs of this operation")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list (0 for all)")
}
