package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"dailyTrader/config"
	"dailyTrader/internal/adapters/csvsink"
	"dailyTrader/internal/domain"
	"dailyTrader/internal/strategy/backtesting"
	"dailyTrader/internal/utils"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a kline CSV through a paper-traded engine",
	Long: `Backtest feeds every closed kline of a CSV file to the engine exactly as the
live service does: snapshot, strategy signal, sizing, limits, paper fill and
lifecycle sweep. Nothing is written to the database.

Example:
  enginectl backtest -k data/BTCUSDT_1m.csv -c engine.yaml --samples-csv out/samples.csv`,
	RunE: runBacktest,
}

var (
	btKlinesPath string
	btConfigPath string
	btSymbol     string
	btMode       string
	btSlippage   float64
	btFrom       string
	btTo         string
	btSamplesCSV string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btKlinesPath, "klines", "k", "", "path to kline CSV written by fetch (required)")
	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "c", "", "engine YAML config (defaults when empty)")
	backtestCmd.Flags().StringVarP(&btSymbol, "symbol", "s", "", "symbol to trade (defaults to the CSV's symbol)")
	backtestCmd.Flags().StringVarP(&btMode, "mode", "m", "", "override trading mode (production, learning)")
	backtestCmd.Flags().Float64Var(&btSlippage, "slippage-bps", 2, "adverse slippage on every paper fill")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "first kline close to evaluate (RFC3339 or YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "last kline close to evaluate (RFC3339 or YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btSamplesCSV, "samples-csv", "", "write the kept decision samples to this CSV")

	backtestCmd.MarkFlagRequired("klines")
}

func parseWhen(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(domain.DateLayout, s)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	eng, err := config.LoadEngineConfig(btConfigPath)
	if err != nil {
		return err
	}
	if btMode != "" {
		eng.Mode = domain.TradingMode(btMode)
		if err := eng.Validate(); err != nil {
			return err
		}
	}

	klines, err := utils.ReadKlinesFromCSV(btKlinesPath)
	if err != nil {
		return fmt.Errorf("read klines: %w", err)
	}
	if len(klines) == 0 {
		return fmt.Errorf("no klines in %s", btKlinesPath)
	}
	symbol := btSymbol
	if symbol == "" {
		symbol = klines[0].Symbol
	}

	bc := backtesting.BacktestConfig{Engine: eng, Symbol: symbol, SlippageBps: btSlippage}
	if bc.StartTime, err = parseWhen(btFrom); err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	if bc.EndTime, err = parseWhen(btTo); err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := backtesting.Backtest(ctx, bc, klines, newLogger())
	if err != nil {
		return err
	}

	if btSamplesCSV != "" {
		sink, err := csvsink.Open(btSamplesCSV)
		if err != nil {
			return err
		}
		for _, s := range res.Samples {
			if err := sink.Append(ctx, s); err != nil {
				sink.Close()
				return err
			}
		}
		if err := sink.Close(); err != nil {
			return err
		}
	}

	printBacktest(cmd.OutOrStdout(), eng, res)
	return nil
}

func printBacktest(w io.Writer, eng config.EngineConfig, res *backtesting.BacktestResult) {
	m := res.Metrics
	fmt.Fprintf(w, "Backtest %s (%s, %s mode)\n", res.Symbol, res.Strategy, eng.Mode)
	fmt.Fprintf(w, "  ticks evaluated     %d\n", res.Ticks)
	fmt.Fprintf(w, "  closed trades       %d (open at end: %d)\n", m.TotalTrades, res.OpenAtEnd)
	fmt.Fprintf(w, "  win rate            %.2f%%\n", m.WinRate*100)
	fmt.Fprintf(w, "  expectancy          %.3fR (best %.2fR, worst %.2fR)\n", m.ExpectancyR, m.BestR, m.WorstR)
	fmt.Fprintf(w, "  profit factor       %.2f\n", m.ProfitFactor)
	fmt.Fprintf(w, "  max drawdown        %.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(w, "  sharpe (per trade)  %.3f\n", res.SharpeRatio)
	fmt.Fprintf(w, "  final equity        %s (start %.2f)\n", res.FinalState.Equity.StringFixed(2), eng.InitialCapital)

	fmt.Fprintln(w, "  outcomes:")
	for _, o := range domain.Outcomes {
		fmt.Fprintf(w, "    %-22s %d\n", o, res.Outcomes[o])
	}
	if len(m.CloseReasons) > 0 {
		reasons := make([]string, 0, len(m.CloseReasons))
		for r := range m.CloseReasons {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		fmt.Fprintln(w, "  close reasons:")
		for _, r := range reasons {
			fmt.Fprintf(w, "    %-22s %d\n", r, m.CloseReasons[domain.CloseReason(r)])
		}
	}
}
