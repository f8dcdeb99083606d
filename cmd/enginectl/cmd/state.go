package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show or reset the persisted risk ledger",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted risk ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo(repo)

		s, err := repo.LoadState(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if s == nil {
			fmt.Fprintln(out, "no saved state")
			return nil
		}
		fmt.Fprintf(out, "equity          %s\n", s.Equity.String())
		fmt.Fprintf(out, "initial equity  %s\n", s.InitialEquity.String())
		fmt.Fprintf(out, "peak equity     %s\n", s.PeakEquity.String())
		fmt.Fprintf(out, "daily pnl       %s\n", s.DailyPnL.String())
		fmt.Fprintf(out, "trades today    %d\n", s.TradesToday)
		fmt.Fprintf(out, "drawdown        %.2f%% (max %.2f%%)\n", s.CurrentDrawdown()*100, s.MaxDrawdown*100)
		fmt.Fprintf(out, "trading day     %s\n", s.LastResetDate)
		fmt.Fprintf(out, "saved at        %s\n", s.SavedAt.Format(time.RFC3339))
		if verr := state.Validate(*s); verr != nil {
			fmt.Fprintf(out, "WARNING: %v\n", verr)
		}
		return nil
	},
}

var resetCapital float64

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace the persisted ledger with a fresh account",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo(repo)

		store, err := state.NewStore(repo, resetCapital, newLogger())
		if err != nil {
			return err
		}
		if err := store.Save(cmd.Context(), domain.DefaultRiskState(resetCapital, time.Now().UTC())); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "risk state reset to %.2f\n", resetCapital)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd, stateResetCmd)
	stateResetCmd.Flags().Float64Var(&resetCapital, "capital", 10000, "starting equity of the fresh account")
}
