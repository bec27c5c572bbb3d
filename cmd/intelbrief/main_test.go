package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/abelbrown/intelbrief/internal/model"
	"github.com/abelbrown/intelbrief/internal/otel"
	"github.com/abelbrown/intelbrief/internal/store"
)

// setup writes a config pointing the database and logs into a temp dir
// and returns the config path.
func setup(t *testing.T, extra ...string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "intelbrief.db")
	conf := "monitored_locations:\n  - Freedonia\n  - Sylvania\n" +
		"storage:\n  path: " + dbPath + "\n" +
		"logging:\n  level: warn\n  dir: " + filepath.Join(dir, "logs") + "\n" +
		strings.Join(extra, "")
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatal(err)
	}
	return path, dbPath
}

func seed(t *testing.T, dbPath string, events ...model.Event) {
	t.Helper()
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	if _, err := st.SaveEvents(context.Background(), events); err != nil {
		t.Fatalf("seed events: %v", err)
	}
}

func event(id string, kind model.EventKind, loc, summary string, age time.Duration) model.Event {
	at := time.Now().UTC().Add(-age)
	return model.Event{
		ID:              id,
		Kind:            kind,
		Timestamp:       at,
		Location:        loc,
		Summary:         summary,
		Confidence:      0.8,
		ConfidenceLabel: model.ConfidenceHigh,
		Sources: []model.Citation{
			{Title: summary, URL: "https://example.com/" + id, SourceName: "Wire", Tier: model.TierA, Published: at},
		},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// execute runs the root command with fresh flag values and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestEventsCommand(t *testing.T) {
	conf, db := setup(t)
	seed(t, db,
		event("ev1", model.KindElection, "Freedonia", "Freedonia holds a general vote", 2*time.Hour),
		event("ev2", model.KindSanctions, "Sylvania", "Sylvania faces new export bans", 3*time.Hour),
	)

	out, err := execute(t, "--config", conf, "events", "Freedonia")
	if err != nil {
		t.Fatalf("events: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Freedonia holds a general vote") {
		t.Errorf("output missing Freedonia event:\n%s", out)
	}
	if strings.Contains(out, "Sylvania") {
		t.Errorf("output contains another location's event:\n%s", out)
	}
}

func TestEventsCommandEmpty(t *testing.T) {
	conf, _ := setup(t)

	out, err := execute(t, "--config", conf, "events", "Freedonia")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if !strings.Contains(out, "No events stored for Freedonia") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestAssessCommand(t *testing.T) {
	conf, db := setup(t)
	seed(t, db, event("ev1", model.KindArmedConflict, "Freedonia", "Fighting reported near the border", time.Hour))

	if _, err := execute(t, "--config", conf, "assess", "--stored", "Freedonia"); err == nil {
		t.Error("assess --stored before any assessment should fail")
	}

	out, err := execute(t, "--config", conf, "assess", "Freedonia")
	if err != nil {
		t.Fatalf("assess: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Stability: Freedonia") || !strings.Contains(out, "ev1") {
		t.Errorf("assessment output incomplete:\n%s", out)
	}

	out, err = execute(t, "--config", conf, "assess", "--stored", "Freedonia")
	if err != nil {
		t.Fatalf("assess --stored: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Stability: Freedonia") {
		t.Errorf("stored assessment not printed:\n%s", out)
	}
}

func TestBriefCommand(t *testing.T) {
	conf, db := setup(t)

	out, err := execute(t, "--config", conf, "brief", "Freedonia")
	if err != nil {
		t.Fatalf("brief: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No data available") {
		t.Errorf("expected placeholder brief:\n%s", out)
	}

	seed(t, db, event("ev1", model.KindElection, "Freedonia", "Freedonia holds a general vote", time.Hour))
	if _, err := execute(t, "--config", conf, "assess", "Freedonia"); err != nil {
		t.Fatalf("assess: %v", err)
	}

	out, err = execute(t, "--config", conf, "brief", "--analyst", "Freedonia")
	if err != nil {
		t.Fatalf("brief --analyst: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Analyst brief: Freedonia") {
		t.Errorf("expected analyst brief title:\n%s", out)
	}
	if !strings.Contains(out, "https://example.com/ev1") {
		t.Errorf("expected citation of ev1:\n%s", out)
	}

	st, err := store.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, err := st.LatestBrief(context.Background(), "Freedonia", model.BriefAnalyst); err != nil {
		t.Errorf("brief not saved: %v", err)
	}
}

func TestCorrelateCommand(t *testing.T) {
	conf, db := setup(t)
	seed(t, db,
		event("ev1", model.KindArmedConflict, "Freedonia", "Shelling reported in the capital", 2*time.Hour),
		event("ev2", model.KindArmedConflict, "Freedonia", "Shelling reported in the capital again", time.Hour),
	)

	out, err := execute(t, "--config", conf, "correlate", "ev1")
	if err != nil {
		t.Fatalf("correlate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Correlated with ev1") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := execute(t, "--config", conf, "correlate", "missing"); err == nil {
		t.Error("correlate on unknown event should fail")
	}
}

func TestPatternsCommand(t *testing.T) {
	conf, db := setup(t)
	seed(t, db,
		event("ev1", model.KindCivilUnrest, "Freedonia", "Crowds gather in the capital", 48*time.Hour),
		event("ev2", model.KindArmedConflict, "Freedonia", "Troops clash with militia", 24*time.Hour),
	)

	out, err := execute(t, "--config", conf, "patterns", "Freedonia")
	if err != nil {
		t.Fatalf("patterns: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Patterns") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestLogCommand(t *testing.T) {
	conf, _ := setup(t)

	if _, err := execute(t, "--config", conf, "log"); err == nil {
		t.Fatal("log without an event file should fail")
	}

	// The first execute loaded cfg, so the event log path is known.
	path := cfg.EventLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	l := otel.NewLogger(f)
	l.Emit(otel.Event{Kind: otel.KindFetchError, Level: otel.LevelError, Comp: "coord", Source: "Wire", Err: "boom"})
	l.Emit(otel.Event{Kind: otel.KindRunComplete, Comp: "coord", Msg: "done"})
	l.Close()
	f.Close()

	out, err := execute(t, "--config", conf, "log", "--level", "error", "--json")
	if err != nil {
		t.Fatalf("log: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], `"fetch.error"`) {
		t.Errorf("expected only the fetch error line, got:\n%s", out)
	}
}

const feed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Wire</title>
<item><guid>a1</guid><title>Freedonia holds a general election</title><link>https://example.com/a1</link><description>Voters in Freedonia went to the polls.</description></item>
</channel></rss>`

func TestRunOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	conf, db := setup(t,
		"ingestion:\n  max_retries: 0\n  rate_per_second: 0\n",
		"sources:\n  - name: Wire\n    type: rss\n    tier: A\n    url: "+srv.URL+"\n",
	)

	out, err := execute(t, "--config", conf, "run", "--once")
	if err != nil {
		t.Fatalf("run --once: %v\n%s", err, out)
	}
	for _, want := range []string{"Run complete", "Wire", "Freedonia", "Run events", "run.start", "run.complete"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	st, err := store.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	n, err := st.CountEvents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("stored %d events, want 1", n)
	}
}
