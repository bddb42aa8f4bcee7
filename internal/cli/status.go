package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/ledgerscan/internal/core/domain"
	"github.com/vietddude/ledgerscan/internal/indexing/aggregate"
	"github.com/vietddude/ledgerscan/internal/infra/storage/csvfile"
)

var statusAddress string

var statusCmd = &cobra.Command{
	Use:   "status <ledger.csv>",
	Short: "Summarize a persisted ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddress, "address", "", "address to total received/sent for")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if _, _, err := loadConfig(cmd); err != nil {
		return err
	}
	if statusAddress != "" {
		if err := domain.ValidateAddress(statusAddress); err != nil {
			return err
		}
	}

	sum, err := summarize(cmd.Context(), csvfile.NewLedger(args[0]), statusAddress)
	if err != nil {
		return err
	}
	return sum.write(cmd.OutOrStdout())
}

type ledgerSummary struct {
	Location string
	Rows     int
	Failed   int
	First    string
	Last     string
	Address  string
	Totals   domain.Totals
}

func summarize(ctx context.Context, ledger *csvfile.Ledger, address string) (ledgerSummary, error) {
	recs, err := ledger.Records(ctx)
	if err != nil {
		return ledgerSummary{}, err
	}

	sum := ledgerSummary{Location: ledger.Location(), Rows: len(recs), Address: address}
	for _, r := range recs {
		if r.Failed() {
			sum.Failed++
		}
	}
	if len(recs) > 0 {
		sum.First = recs[0].Hash
		sum.Last = recs[len(recs)-1].Hash
	}
	if address != "" {
		sum.Totals = aggregate.Totals(recs, address)
	}
	return sum, nil
}

func (s ledgerSummary) write(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "LEDGER\t%s\n", s.Location)
	_, _ = fmt.Fprintf(w, "ROWS\t%d\n", s.Rows)
	_, _ = fmt.Fprintf(w, "FAILED\t%d\n", s.Failed)
	if s.Rows > 0 {
		_, _ = fmt.Fprintf(w, "FIRST\t%s\n", s.First)
		_, _ = fmt.Fprintf(w, "LAST\t%s\n", s.Last)
	}
	if s.Address != "" {
		_, _ = fmt.Fprintf(w, "RECEIVED\t%s ETH\n", s.Totals.Received.StringFixed(4))
		_, _ = fmt.Fprintf(w, "SENT\t%s ETH\n", s.Totals.Sent.StringFixed(4))
	}
	return w.Flush()
}
