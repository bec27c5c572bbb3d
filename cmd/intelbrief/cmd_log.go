package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abelbrown/intelbrief/internal/otel"
	"github.com/abelbrown/intelbrief/internal/report"
)

var logFlags struct {
	tail    int
	kind    string
	level   string
	comp    string
	runID   string
	target  string
	rawJSON bool
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent pipeline run events",
	Args:  cobra.NoArgs,
	RunE:  runLog,
}

func init() {
	f := logCmd.Flags()
	f.IntVarP(&logFlags.tail, "tail", "n", 50, "Number of recent lines to show")
	f.StringVar(&logFlags.kind, "kind", "", "Filter by event kind prefix (e.g. 'fetch')")
	f.StringVar(&logFlags.level, "level", "", "Minimum level: debug, info, warn, error")
	f.StringVar(&logFlags.comp, "comp", "", "Filter by component name")
	f.StringVar(&logFlags.runID, "run", "", "Filter by run ID")
	f.StringVar(&logFlags.target, "target", "", "Filter by target location")
	f.BoolVar(&logFlags.rawJSON, "json", false, "Output raw JSON lines")
}

func runLog(cmd *cobra.Command, _ []string) error {
	path := cfg.EventLogPath()
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("event log not found at %s (run the pipeline first): %w", path, err)
	}
	defer f.Close()

	lines, err := otel.ReadTail(f, logFlags.tail, otel.Filter{
		KindPrefix: logFlags.kind,
		MinLevel:   otel.Level(logFlags.level),
		Comp:       logFlags.comp,
		RunID:      logFlags.runID,
		Target:     logFlags.target,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, l := range lines {
		if logFlags.rawJSON {
			fmt.Fprintln(w, string(l.Raw))
			continue
		}
		report.LogLine(w, l.Event)
	}
	return nil
}
