package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/intelbrief/internal/correlation"
	"github.com/abelbrown/intelbrief/internal/logging"
	"github.com/abelbrown/intelbrief/internal/report"
	"github.com/abelbrown/intelbrief/internal/store"
)

var correlateFlags struct {
	days int
}

var correlateCmd = &cobra.Command{
	Use:   "correlate <event-id>",
	Short: "Find stored events correlated with an event",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorrelate,
}

func init() {
	correlateCmd.Flags().IntVar(&correlateFlags.days, "days", correlation.DefaultWindowDays, "Search window in days on each side of the event")
}

func runCorrelate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ref, err := st.GetEvent(ctx, args[0])
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no event with id %s", args[0])
	}
	if err != nil {
		return err
	}

	cs, err := correlation.New(st).FindCorrelated(ctx, ref, correlateFlags.days)
	if err != nil {
		return err
	}
	n, err := st.SaveCorrelations(ctx, cs, time.Now())
	if err != nil {
		return err
	}
	logging.Debug("correlations saved", "event", ref.ID, "count", n)

	report.Correlations(cmd.OutOrStdout(), ref, cs)
	return nil
}
