package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abelbrown/intelbrief/internal/config"
	"github.com/abelbrown/intelbrief/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	verbose    bool
}

// cfg is loaded once per invocation by the root PersistentPreRunE.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "intelbrief",
	Short: "Geopolitical stability monitoring from open news sources",
	Long: `intelbrief ingests news feeds and ACLED data, clusters reports into
events, scores the stability of monitored locations and writes briefs
that keep reported facts apart from assessment.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(*cobra.Command, []string) { logging.Close() },
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&rootFlags.configPath, "config", "c", defaultConfigPath(), "Path to the YAML config file")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Also write log lines to stderr")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(briefCmd)
	rootCmd.AddCommand(correlateCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.Version = version
}

func loadConfig(_ *cobra.Command, _ []string) error {
	c, err := config.Load(rootFlags.configPath)
	if err != nil {
		return err
	}
	if rootFlags.logLevel != "" {
		c.Logging.Level = rootFlags.logLevel
	}
	cfg = c

	return logging.Init(logging.Options{
		Dir:    cfg.LogDir(),
		Level:  cfg.Logging.Level,
		Stderr: rootFlags.verbose,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
