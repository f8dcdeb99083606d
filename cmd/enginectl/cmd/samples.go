package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dailyTrader/internal/adapters/csvsink"
	"dailyTrader/internal/domain"
)

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Summarise or export the decision log",
	Long: `Samples counts the stored decision samples by outcome. With --csv every sample
is also appended to a CSV file for offline analysis.`,
	RunE: runSamples,
}

var (
	samplesCSV  string
	samplesHead int
)

func init() {
	rootCmd.AddCommand(samplesCmd)
	samplesCmd.Flags().StringVar(&samplesCSV, "csv", "", "export every sample to this CSV")
	samplesCmd.Flags().IntVar(&samplesHead, "head", 0, "print the first N samples")
}

func runSamples(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer closeRepo(repo)

	counts, err := repo.CountByOutcome(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	total := 0
	for _, o := range domain.Outcomes {
		total += counts[o]
	}
	fmt.Fprintf(out, "%d decision samples\n", total)
	for _, o := range domain.Outcomes {
		pct := 0.0
		if total > 0 {
			pct = float64(counts[o]) / float64(total) * 100
		}
		fmt.Fprintf(out, "  %-22s %8d  %5.1f%%\n", o, counts[o], pct)
	}

	if samplesHead > 0 {
		head, err := repo.FindSamples(ctx, samplesHead)
		if err != nil {
			return err
		}
		for _, s := range head {
			fmt.Fprintf(out, "%s %s %-8s %-22s %s\n", s.Timestamp.Format("2006-01-02T15:04:05Z07:00"), s.Symbol, s.ExecutedAction, s.Outcome, s.Reason)
		}
	}

	if samplesCSV == "" {
		return nil
	}
	all, err := repo.FindSamples(ctx, 0)
	if err != nil {
		return err
	}
	sink, err := csvsink.Open(samplesCSV)
	if err != nil {
		return err
	}
	for _, s := range all {
		if err := sink.Append(ctx, s); err != nil {
			sink.Close()
			return err
		}
	}
	if err := sink.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "exported %d samples to %s\n", len(all), samplesCSV)
	return nil
}
