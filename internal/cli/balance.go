package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vietddude/ledgerscan/internal/core/domain"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Print the ETH balance of an address",
	Args:  cobra.ExactArgs(1),
	RunE:  withSignals(runBalance),
}

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Print the current ETH price in USD",
	Args:  cobra.NoArgs,
	RunE:  withSignals(runPrice),
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(priceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	if err := domain.ValidateAddress(args[0]); err != nil {
		return err
	}

	app, _, log, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	balance, err := app.Tracker().FetchBalance(cmd.Context(), args[0])
	if err != nil {
		log.Error("Failed to fetch balance", "error", err)
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s ETH\n", balance.StringFixed(6))
	return nil
}

func runPrice(cmd *cobra.Command, args []string) error {
	app, _, log, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	price, err := app.Tracker().FetchPrice(cmd.Context())
	if err != nil {
		log.Error("Failed to fetch price", "error", err)
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "$%s\n", price.StringFixed(2))
	return nil
}
