package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/intelbrief/internal/coord"
	"github.com/abelbrown/intelbrief/internal/report"
	"github.com/abelbrown/intelbrief/internal/scoring"
	"github.com/abelbrown/intelbrief/internal/store"
)

var assessFlags struct {
	stored bool
}

var assessCmd = &cobra.Command{
	Use:   "assess <target>",
	Short: "Score a location from its stored events",
	Long: `Scores the stability of a location from the events stored within the
configured look-back window, saves the assessment and prints it.

With --stored the most recent saved assessment is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().BoolVar(&assessFlags.stored, "stored", false, "Print the latest saved assessment without rescoring")
}

func runAssess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	target := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if assessFlags.stored {
		a, err := st.LatestAssessment(ctx, target)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no assessment stored for %s", target)
		}
		if err != nil {
			return err
		}
		report.Assessment(cmd.OutOrStdout(), a)
		return nil
	}

	now := time.Now().UTC()
	stored, err := st.EventsByLocation(ctx, target, 0)
	if err != nil {
		return err
	}
	events := coord.EventsFor(target, since(stored, lookback(now, cfg.Scoring.LookbackDays)))

	a, err := scoring.New(cfg.ForScoring(), st).Assess(ctx, target, events)
	if err != nil {
		return err
	}
	if err := st.SaveAssessment(ctx, a); err != nil {
		return err
	}
	report.Assessment(cmd.OutOrStdout(), a)
	return nil
}
