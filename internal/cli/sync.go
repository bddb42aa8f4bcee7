package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vietddude/ledgerscan/internal/control"
	"github.com/vietddude/ledgerscan/internal/core/domain"
)

var (
	syncCount int
	syncCSV   string
)

var syncCmd = &cobra.Command{
	Use:   "sync <address>",
	Short: "Fetch balance, history and price, and update the ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  withSignals(runSync),
}

func init() {
	syncCmd.Flags().IntVar(&syncCount, "count", 0, "number of recent transactions (default from config)")
	syncCmd.Flags().StringVar(&syncCSV, "csv", "", "ledger file (default <address[:8]>_<YYYYMMDD>.csv)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	address := args[0]
	if err := domain.ValidateAddress(address); err != nil {
		return err
	}

	app, cfg, log, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	limit := syncCount
	if limit <= 0 {
		limit = cfg.API.Count
	}

	log.Info("Fetching data for address", "address", address, "count", limit)
	rep := app.Tracker().Sync(cmd.Context(), control.SyncRequest{
		Address: address,
		Limit:   limit,
		Ledger:  app.Ledger(address, syncCSV),
		Mirror:  app.Mirror(address),
	})

	if ctx := cmd.Context(); ctx.Err() != nil {
		log.Info("Interrupted by user")
		return ctx.Err()
	}

	control.LogReport(log, rep)
	if err := rep.Err(); err != nil {
		return fmt.Errorf("sync finished with failures: %w", err)
	}
	return nil
}
