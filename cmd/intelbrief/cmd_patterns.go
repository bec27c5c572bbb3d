package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/intelbrief/internal/coord"
	"github.com/abelbrown/intelbrief/internal/correlation"
	"github.com/abelbrown/intelbrief/internal/report"
)

var patternsFlags struct {
	days int
}

var patternsCmd = &cobra.Command{
	Use:   "patterns [target]",
	Short: "Detect escalation patterns and event relationships",
	Long: `Looks for escalation sequences and related events among the events
stored in the last --days days, optionally restricted to one location.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPatterns,
}

func init() {
	patternsCmd.Flags().IntVar(&patternsFlags.days, "days", 90, "How many days of events to examine")
}

func runPatterns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	now := time.Now().UTC()
	events, err := st.EventsBetween(ctx, lookback(now, patternsFlags.days), now)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		events = coord.EventsFor(args[0], events)
	}

	report.Patterns(cmd.OutOrStdout(), correlation.DetectPatterns(events), correlation.Relationships(events))
	return nil
}
