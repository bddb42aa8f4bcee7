package cli

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/ledgerscan/internal/control"
)

var (
	watchInterval time.Duration
	watchCount    int
	watchCSV      string
)

var watchCmd = &cobra.Command{
	Use:   "watch <address>",
	Short: "Sync an address on an interval and serve /health and /metrics",
	Args:  cobra.ExactArgs(1),
	RunE:  withSignals(runWatch),
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Minute, "time between syncs")
	watchCmd.Flags().IntVar(&watchCount, "count", 0, "number of recent transactions (default from config)")
	watchCmd.Flags().StringVar(&watchCSV, "csv", "", "ledger file (default <address[:8]>_<YYYYMMDD>.csv)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	app, cfg, log, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	limit := watchCount
	if limit <= 0 {
		limit = cfg.API.Count
	}

	err = app.Watch(cmd.Context(), control.WatchConfig{
		Address:    args[0],
		Limit:      limit,
		Interval:   watchInterval,
		LedgerPath: watchCSV,
	})
	if err != nil {
		log.Error("Watch failed", "error", err)
		return err
	}
	log.Info("Watcher stopped gracefully")
	return nil
}
