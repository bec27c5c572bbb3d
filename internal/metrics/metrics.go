// Package metrics exposes pipeline counters and gauges to Prometheus.
//
// Collectors are registered on an injected Registerer so tests and embedders
// can use private registries. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "intelbrief"

// Metrics holds the pipeline collectors.
type Metrics struct {
	itemsFetched     *prometheus.CounterVec
	fetchErrors      *prometheus.CounterVec
	itemsNew         prometheus.Counter
	clusters         prometheus.Counter
	rejectedClusters prometheus.Counter
	events           *prometheus.CounterVec
	assessments      *prometheus.CounterVec
	overall          *prometheus.GaugeVec
	patterns         *prometheus.CounterVec
	runDuration      prometheus.Histogram
	lastSuccessTS    prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		itemsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_fetched_total",
			Help:      "Raw items returned by each source",
		}, []string{"source"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed fetches by source",
		}, []string{"source"}),
		itemsNew: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_stored_total",
			Help:      "Raw items stored for the first time",
		}),
		clusters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusters_total",
			Help:      "Clusters formed from fetched items",
		}),
		rejectedClusters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusters_rejected_total",
			Help:      "Clusters that matched no event rule or location",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events extracted by kind",
		}, []string{"kind"}),
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Assessments generated by target",
		}, []string{"target"}),
		overall: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stability_score",
			Help:      "Latest overall stability score by target",
		}, []string{"target"}),
		patterns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patterns_detected_total",
			Help:      "Correlation patterns detected by type",
		}, []string{"type"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Time spent in one pipeline run",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		lastSuccessTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last completed run",
		}),
	}
	reg.MustRegister(
		m.itemsFetched, m.fetchErrors, m.itemsNew,
		m.clusters, m.rejectedClusters, m.events,
		m.assessments, m.overall, m.patterns,
		m.runDuration, m.lastSuccessTS,
	)
	return m
}

func (m *Metrics) Fetched(source string, n int) {
	if m == nil {
		return
	}
	m.itemsFetched.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) FetchFailed(source string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) Stored(n int) {
	if m == nil {
		return
	}
	m.itemsNew.Add(float64(n))
}

// Clustered records the clusters formed and how many of them produced no event.
func (m *Metrics) Clustered(clusters, rejected int) {
	if m == nil {
		return
	}
	m.clusters.Add(float64(clusters))
	m.rejectedClusters.Add(float64(rejected))
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

// Assessed records an assessment and its overall score.
func (m *Metrics) Assessed(target string, overall float64) {
	if m == nil {
		return
	}
	m.assessments.WithLabelValues(target).Inc()
	m.overall.WithLabelValues(target).Set(overall)
}

func (m *Metrics) Pattern(kind string) {
	if m == nil {
		return
	}
	m.patterns.WithLabelValues(kind).Inc()
}

// RunFinished records a run's duration; ok marks a run without fatal errors.
func (m *Metrics) RunFinished(d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
	if ok {
		m.lastSuccessTS.Set(float64(time.Now().Unix()))
	}
}

// Server serves /metrics and /healthz.
type Server struct {
	server *http.Server
}

// NewServer builds the metrics endpoint for the collectors in g.
func NewServer(addr string, g prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{server: &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}}
}

func (s *Server) Handler() http.Handler              { return s.server.Handler }
func (s *Server) Serve() error                       { return s.server.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }
