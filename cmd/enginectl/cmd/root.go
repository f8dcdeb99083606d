package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"dailyTrader/internal/adapters/logger"
	"dailyTrader/internal/adapters/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "enginectl",
	Short: "Operate the risk and position lifecycle engine offline",
	Long: `enginectl runs the engine against historical data and inspects what the
live runner persisted.

Commands:
  backtest  Replay a kline CSV through a paper-traded engine
  fetch     Download futures klines to CSV
  state     Show or reset the persisted risk ledger
  samples   Summarise or export the decision log
  report    Performance of the stored trade history`,
	SilenceUsage: true,
}

var (
	dbPath   string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/engine.db", "path to the engine SQLite database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "log level (DEBUG, INFO, WARN, ERROR)")
}

func newLogger() *logger.StdLogger {
	return logger.NewStdLogger(logger.ParseLevel(logLevel))
}

// openRepo opens the database named by --db. The caller closes it.
func openRepo() (*sqlite.Repository, error) {
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: dbPath, Logger: newLogger()})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	return repo, nil
}

func closeRepo(repo *sqlite.Repository) {
	if err := repo.Close(); err != nil {
		newLogger().Error(context.Background(), err, "Error closing database repository")
	}
}
