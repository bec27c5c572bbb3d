package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/intelbrief/internal/brief"
	"github.com/abelbrown/intelbrief/internal/model"
	"github.com/abelbrown/intelbrief/internal/report"
	"github.com/abelbrown/intelbrief/internal/store"
)

var briefFlags struct {
	analyst bool
}

var briefCmd = &cobra.Command{
	Use:   "brief <target>",
	Short: "Write a situation brief for a location",
	Long: `Writes a brief from the latest stored assessment, the location's most
recent events and its assessment history. A location that was never
assessed gets a placeholder brief.`,
	Args: cobra.ExactArgs(1),
	RunE: runBrief,
}

func init() {
	briefCmd.Flags().BoolVar(&briefFlags.analyst, "analyst", false, "Write the longer analyst brief")
}

func runBrief(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	target := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	in := brief.Input{
		Target: target,
		Kind:   cfg.BriefKind(),
		Now:    time.Now().UTC(),
	}
	if briefFlags.analyst {
		in.Kind = model.BriefAnalyst
	}

	a, err := st.LatestAssessment(ctx, target)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	default:
		in.Assessment = &a
	}

	limit := cfg.Briefs.Events
	if limit <= 0 {
		limit = 20
	}
	if in.Events, err = st.EventsByLocation(ctx, target, limit); err != nil {
		return err
	}
	if in.History, err = st.Snapshots(ctx, target, lookback(in.Now, cfg.Scoring.LookbackDays)); err != nil {
		return err
	}

	b := brief.Generate(in)
	if err := st.SaveBrief(ctx, b); err != nil {
		return err
	}
	report.Brief(cmd.OutOrStdout(), b)
	return nil
}
