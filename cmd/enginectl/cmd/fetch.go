package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dailyTrader/internal/adapters/binanceclient"
	"dailyTrader/internal/utils"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download futures klines to CSV",
	Long: `Fetch downloads closed klines for every symbol in parallel and writes one CSV
per symbol in the format backtest reads. Only public endpoints are used.

Example:
  enginectl fetch --symbols BTCUSDT,ETHUSDT --interval 1m --days 30 --out data`,
	RunE: runFetch,
}

var (
	fetchSymbols  []string
	fetchInterval string
	fetchDays     int
	fetchOut      string
	fetchTestnet  bool
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringSliceVar(&fetchSymbols, "symbols", []string{"BTCUSDT"}, "symbols to download")
	fetchCmd.Flags().StringVarP(&fetchInterval, "interval", "i", "1m", "kline interval")
	fetchCmd.Flags().IntVar(&fetchDays, "days", 90, "how many days back from now")
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "data", "output directory")
	fetchCmd.Flags().BoolVar(&fetchTestnet, "testnet", false, "use the futures testnet")
}

func runFetch(cmd *cobra.Command, args []string) error {
	if fetchDays <= 0 {
		return fmt.Errorf("--days must be positive")
	}
	log := newLogger()
	client, err := binanceclient.New(binanceclient.Config{UseTestnet: fetchTestnet, Logger: log})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(fetchOut, 0755); err != nil {
		return fmt.Errorf("create %s: %w", fetchOut, err)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -fetchDays)
	out := cmd.OutOrStdout()

	g, ctx := errgroup.WithContext(cmd.Context())
	for _, s := range fetchSymbols {
		symbol := strings.ToUpper(strings.TrimSpace(s))
		g.Go(func() error {
			klines, err := client.GetKlinesRange(ctx, symbol, fetchInterval, start, end)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", symbol, err)
			}
			filename := filepath.Join(fetchOut, fmt.Sprintf("%s_%s_%s_to_%s.csv", symbol, fetchInterval, start.Format("20060102"), end.Format("20060102")))
			if err := utils.WriteKlinesToCSV(klines, filename); err != nil {
				return fmt.Errorf("write %s: %w", filename, err)
			}
			fmt.Fprintf(out, "%s: %d klines -> %s\n", symbol, len(klines), filename)
			return nil
		})
	}
	return g.Wait()
}
