// Package coord runs the intelbrief pipeline: fetch every source, store the
// raw items, cluster them, extract events, score the monitored locations,
// write briefs and look for escalation patterns.
//
// A Coordinator is the single writer of its store. Runs never overlap: Start
// drives them sequentially from one goroutine, and Run is not meant to be
// called concurrently with itself.
package coord

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/intelbrief/internal/brief"
	"github.com/abelbrown/intelbrief/internal/cluster"
	"github.com/abelbrown/intelbrief/internal/config"
	"github.com/abelbrown/intelbrief/internal/correlation"
	"github.com/abelbrown/intelbrief/internal/extract"
	"github.com/abelbrown/intelbrief/internal/fetch"
	"github.com/abelbrown/intelbrief/internal/logging"
	"github.com/abelbrown/intelbrief/internal/metrics"
	"github.com/abelbrown/intelbrief/internal/model"
	"github.com/abelbrown/intelbrief/internal/otel"
	"github.com/abelbrown/intelbrief/internal/scoring"
	"github.com/abelbrown/intelbrief/internal/store"
)

const (
	// defaultFetchTimeout is the timeout for each individual fetch.
	defaultFetchTimeout = 30 * time.Second

	// defaultConcurrency limits parallel fetch operations.
	defaultConcurrency = 5

	// defaultBriefEvents is how many recent events a brief is written from.
	defaultBriefEvents = 20
)

// Coordinator owns one pipeline and the store it writes to.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	store     *store.Store
	sources   []fetch.Source // IMMUTABLE: set at construction, never modified
	locations []string
	clusterer *cluster.Engine
	extractor *extract.Extractor
	scorer    *scoring.Engine

	concurrency  int
	fetchTimeout time.Duration
	briefs       bool
	briefKind    model.BriefKind
	briefEvents  int
	lookbackDays int

	metrics *metrics.Metrics
	events  *otel.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records pipeline metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithEventLog emits run events to l.
func WithEventLog(l *otel.Logger) Option {
	return func(c *Coordinator) { c.events = l }
}

// WithClock replaces time.Now for the coordinator and the engines it builds.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New builds a coordinator from cfg. The store doubles as the scoring
// history.
func New(cfg config.Config, st *store.Store, sources []fetch.Source, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        st,
		sources:      append([]fetch.Source(nil), sources...),
		locations:    append([]string(nil), cfg.Locations...),
		concurrency:  cfg.Ingestion.Concurrency,
		fetchTimeout: cfg.Ingestion.Timeout,
		briefs:       cfg.Briefs.Enabled,
		briefKind:    cfg.BriefKind(),
		briefEvents:  cfg.Briefs.Events,
		lookbackDays: cfg.Scoring.LookbackDays,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrency
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = defaultFetchTimeout
	}
	if c.briefEvents <= 0 {
		c.briefEvents = defaultBriefEvents
	}
	if c.events == nil {
		c.events = otel.NewNullLogger()
	}

	c.clusterer = cluster.New(cfg.ForCluster())
	c.extractor = extract.New(cfg.ForExtract(), extract.WithClock(c.now))
	c.scorer = scoring.New(cfg.ForScoring(), st, scoring.WithClock(c.now))
	return c
}

// SourceResult is the outcome of fetching one source.
type SourceResult struct {
	Name  string
	Items int
	Err   error
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	Started     time.Time
	Duration    time.Duration
	Sources     []SourceResult
	Fetched     int
	NewItems    int
	Clusters    int
	Events      []model.Event
	Assessments []model.Assessment
	Briefs      []model.Brief
	Patterns    []model.Pattern
}

// FailedSources returns the number of sources whose fetch failed.
func (r RunResult) FailedSources() int {
	n := 0
	for _, s := range r.Sources {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Start runs the pipeline immediately, then every interval until ctx is
// cancelled. Call Wait after cancelling.
func (c *Coordinator) Start(ctx context.Context, interval time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.runLogged(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.runLogged(ctx)
			}
		}
	}()
}

// Wait blocks until the background goroutine exits.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) runLogged(ctx context.Context) {
	if _, err := c.Run(ctx); err != nil && ctx.Err() == nil {
		logging.Error("pipeline run failed", "err", err)
	}
}

// Run executes one full pipeline pass. Source failures are isolated and
// reported in the result; storage failures abort the run.
func (c *Coordinator) Run(ctx context.Context) (res RunResult, err error) {
	res.Started = c.now()
	c.events.Emit(otel.Event{Kind: otel.KindRunStart, Comp: "coord", Count: len(c.sources)})
	defer func() {
		res.Duration = c.now().Sub(res.Started)
		c.metrics.RunFinished(res.Duration, err == nil)
		ev := otel.Event{
			Kind:  otel.KindRunComplete,
			Comp:  "coord",
			Dur:   res.Duration,
			Count: len(res.Events),
			Extra: map[string]any{
				"fetched":        res.Fetched,
				"new_items":      res.NewItems,
				"clusters":       res.Clusters,
				"assessments":    len(res.Assessments),
				"patterns":       len(res.Patterns),
				"failed_sources": res.FailedSources(),
			},
		}
		if err != nil {
			ev.Level = otel.LevelError
			ev.Err = err.Error()
		}
		c.events.Emit(ev)
	}()

	items, results := c.fetchAll(ctx)
	res.Sources = results
	res.Fetched = len(items)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	newItems, err := c.store.SaveRawItems(ctx, items)
	if err != nil {
		c.storeError(err)
		return res, fmt.Errorf("save raw items: %w", err)
	}
	res.NewItems = newItems
	c.metrics.Stored(newItems)

	start := time.Now()
	clusters := c.clusterer.Cluster(items)
	res.Clusters = len(clusters)
	c.events.Emit(otel.Event{Kind: otel.KindClusterComplete, Comp: "coord", Dur: time.Since(start), Count: len(clusters)})

	start = time.Now()
	res.Events = c.extractor.ExtractAll(clusters)
	c.metrics.Clustered(len(clusters), len(clusters)-len(res.Events))
	for _, ev := range res.Events {
		c.metrics.Event(string(ev.Kind))
	}
	c.events.Emit(otel.Event{Kind: otel.KindExtractComplete, Comp: "coord", Dur: time.Since(start), Count: len(res.Events)})

	if _, err := c.store.SaveEvents(ctx, res.Events); err != nil {
		c.storeError(err)
		return res, fmt.Errorf("save events: %w", err)
	}

	for _, loc := range c.locations {
		a, err := c.assess(ctx, loc, res.Events)
		if err != nil {
			return res, err
		}
		res.Assessments = append(res.Assessments, a)

		if c.briefs {
			b, err := c.writeBrief(ctx, a)
			if err != nil {
				return res, err
			}
			res.Briefs = append(res.Briefs, b)
		}
	}

	res.Patterns = correlation.DetectPatterns(res.Events)
	for _, p := range res.Patterns {
		c.metrics.Pattern(p.Type)
		c.events.Emit(otel.Event{
			Level:  otel.LevelWarn,
			Kind:   otel.KindPatternDetected,
			Comp:   "coord",
			Target: p.Location,
			Count:  len(p.EventIDs),
			Msg:    p.Type,
		})
	}
	return res, nil
}

// fetchAll fetches all sources in parallel and returns their items with
// duplicates (by ID) removed. Each fetch has its own timeout.
func (c *Coordinator) fetchAll(ctx context.Context) ([]model.RawItem, []SourceResult) {
	results := make([]SourceResult, len(c.sources))
	batches := make([][]model.RawItem, len(c.sources))

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for i, src := range c.sources {
		g.Go(func() error {
			results[i].Name = src.Name()
			if ctx.Err() != nil {
				results[i].Err = ctx.Err()
				return nil
			}
			batches[i], results[i].Err = c.fetchSource(ctx, src)
			results[i].Items = len(batches[i])
			return nil // never fail the group - errors reported per-source
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	var items []model.RawItem
	for _, batch := range batches {
		for _, it := range batch {
			if seen[it.ID] {
				continue
			}
			seen[it.ID] = true
			items = append(items, it)
		}
	}
	return items, results
}

// fetchSource fetches a single source with timeout.
func (c *Coordinator) fetchSource(ctx context.Context, src fetch.Source) ([]model.RawItem, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	start := time.Now()
	items, err := src.Fetch(fetchCtx)
	if err != nil {
		c.metrics.FetchFailed(src.Name())
		c.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindFetchError, Comp: "fetch", Source: src.Name(), Dur: time.Since(start), Err: err.Error()})
		logging.Warn("fetch failed", "source", src.Name(), "err", err)
		return nil, err
	}

	c.metrics.Fetched(src.Name(), len(items))
	c.events.Emit(otel.Event{Kind: otel.KindFetchComplete, Comp: "fetch", Source: src.Name(), Dur: time.Since(start), Count: len(items)})
	return items, nil
}

// assess scores loc from the run's events whose location contains it.
func (c *Coordinator) assess(ctx context.Context, loc string, events []model.Event) (model.Assessment, error) {
	relevant := EventsFor(loc, events)

	a, err := c.scorer.Assess(ctx, loc, relevant)
	if err != nil {
		c.storeError(err)
		return model.Assessment{}, fmt.Errorf("assess %s: %w", loc, err)
	}
	if err := c.store.SaveAssessment(ctx, a); err != nil {
		c.storeError(err)
		return model.Assessment{}, fmt.Errorf("save assessment for %s: %w", loc, err)
	}

	c.metrics.Assessed(loc, a.Overall)
	c.events.Emit(otel.Event{Kind: otel.KindScoreComplete, Comp: "coord", Target: loc, Score: a.Overall, Count: len(relevant)})
	return a, nil
}

// writeBrief writes and stores a brief for a fresh assessment, using the
// target's most recent stored events.
func (c *Coordinator) writeBrief(ctx context.Context, a model.Assessment) (model.Brief, error) {
	recent, err := c.store.EventsByLocation(ctx, a.Target, c.briefEvents)
	if err != nil {
		c.storeError(err)
		return model.Brief{}, fmt.Errorf("load events for %s brief: %w", a.Target, err)
	}
	since := a.GeneratedAt.AddDate(0, 0, -c.lookbackDays)
	history, err := c.store.Snapshots(ctx, a.Target, since)
	if err != nil {
		c.storeError(err)
		return model.Brief{}, fmt.Errorf("load history for %s brief: %w", a.Target, err)
	}

	b := brief.Generate(brief.Input{
		Target:     a.Target,
		Kind:       c.briefKind,
		Assessment: &a,
		Events:     recent,
		History:    history,
		Now:        a.GeneratedAt,
	})
	if err := c.store.SaveBrief(ctx, b); err != nil {
		c.storeError(err)
		return model.Brief{}, fmt.Errorf("save brief for %s: %w", a.Target, err)
	}
	c.events.Emit(otel.Event{Kind: otel.KindBriefGenerated, Comp: "coord", Target: a.Target, Count: len(b.Citations)})
	return b, nil
}

func (c *Coordinator) storeError(err error) {
	c.events.Error(otel.KindStoreError, "store", err)
	logging.Error("store operation failed", "err", err)
}

// EventsFor returns the events whose location contains target,
// case-insensitively, ordered by timestamp.
func EventsFor(target string, events []model.Event) []model.Event {
	t := strings.ToLower(target)
	var out []model.Event
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Location), t) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
