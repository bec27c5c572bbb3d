package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/intelbrief/internal/report"
)

var eventsFlags struct {
	limit int
}

var eventsCmd = &cobra.Command{
	Use:   "events <target>",
	Short: "List the most recent stored events for a location",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsFlags.limit, "limit", "n", 20, "Maximum number of events to list")
}

func runEvents(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	events, err := st.EventsByLocation(cmd.Context(), args[0], eventsFlags.limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No events stored for %s.\n", args[0])
		return nil
	}
	report.Events(cmd.OutOrStdout(), events, time.Now())
	return nil
}
