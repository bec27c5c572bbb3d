package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/abelbrown/intelbrief/internal/coord"
	"github.com/abelbrown/intelbrief/internal/fetch"
	"github.com/abelbrown/intelbrief/internal/logging"
	"github.com/abelbrown/intelbrief/internal/metrics"
	"github.com/abelbrown/intelbrief/internal/otel"
	"github.com/abelbrown/intelbrief/internal/report"
)

var runFlags struct {
	once        bool
	interval    time.Duration
	metricsAddr string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingestion and scoring pipeline",
	Long: `Fetches every configured source, clusters the reports into events,
scores each monitored location and writes briefs.

With --once a single pass runs and its summary is printed. Otherwise the
pipeline repeats every --interval until interrupted.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runFlags.once, "once", false, "Run a single pass and exit")
	f.DurationVar(&runFlags.interval, "interval", 0, "Time between passes (default from config)")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (default from config)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	events, closeEvents, err := openEventLog()
	if err != nil {
		return err
	}
	defer closeEvents()

	sources, err := fetch.FromConfig(cfg.Sources, cfg.Ingestion)
	if err != nil {
		logging.Warn("some sources could not be configured", "err", err)
	}
	if len(sources) == 0 {
		return errors.New("no usable sources configured")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	addr := cfg.Metrics.Addr
	if runFlags.metricsAddr != "" {
		addr = runFlags.metricsAddr
	}
	if addr != "" {
		srv := metrics.NewServer(addr, reg)
		go func() {
			if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server failed", "addr", addr, "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logging.Info("serving metrics", "addr", addr)
	}

	c := coord.New(cfg, st, sources, coord.WithMetrics(m), coord.WithEventLog(events))

	if runFlags.once {
		sum := otel.NewSummary(0)
		events.SetSummary(sum)

		res, err := c.Run(ctx)
		closeEvents()

		w := cmd.OutOrStdout()
		report.Run(w, res)
		report.EventSummary(w, sum)
		return err
	}

	interval := cfg.Ingestion.Interval
	if runFlags.interval > 0 {
		interval = runFlags.interval
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	logging.Info("pipeline started", "sources", len(sources), "locations", len(cfg.Locations), "interval", interval)
	c.Start(ctx, interval)
	<-ctx.Done()
	c.Wait()
	logging.Info("pipeline stopped")
	return nil
}
