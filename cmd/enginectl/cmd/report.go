package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dailyTrader/internal/strategy/analytics"
)

var reportCapital float64

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Performance of the stored trade history",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo(repo)

		trades, err := repo.FindAll(cmd.Context())
		if err != nil {
			return err
		}
		m := analytics.AnalyzePerformance(trades, reportCapital)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "trades          %d (%d won, %d lost)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades)
		fmt.Fprintf(out, "win rate        %.2f%%\n", m.WinRate*100)
		fmt.Fprintf(out, "expectancy      %.3fR (avg win %.2fR, avg loss %.2fR)\n", m.ExpectancyR, m.AverageWinR, m.AverageLossR)
		fmt.Fprintf(out, "excursions      MFE %.2fR, MAE %.2fR\n", m.AverageMFE, m.AverageMAE)
		fmt.Fprintf(out, "SQN             %.2f\n", m.SQN)
		fmt.Fprintf(out, "profit factor   %.2f\n", m.ProfitFactor)
		fmt.Fprintf(out, "total profit    %.2f\n", m.TotalProfit)
		fmt.Fprintf(out, "max drawdown    %.2f%%\n", m.MaxDrawdown*100)
		fmt.Fprintf(out, "avg hold        %s\n", m.AverageHoldTime)
		for _, mr := range m.GetMonthlyReturns() {
			fmt.Fprintf(out, "  %s  %10.2f\n", mr.Month.Format("2006-01"), mr.Return)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().Float64Var(&reportCapital, "capital", 10000, "starting equity the history is measured from")
}
