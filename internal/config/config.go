// Package config loads intelbrief's YAML configuration and converts it into
// the per-component configuration values the pipeline is built from.
//
// Components never read configuration themselves; cmd/intelbrief loads a
// Config once and hands each component its own slice of it.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abelbrown/intelbrief/internal/cluster"
	"github.com/abelbrown/intelbrief/internal/extract"
	"github.com/abelbrown/intelbrief/internal/model"
	"github.com/abelbrown/intelbrief/internal/scoring"
)

//go:embed default.yaml
var defaultYAML []byte

// Environment variables that override file settings.
const (
	EnvDB         = "INTELBRIEF_DB"
	EnvACLEDKey   = "ACLED_API_KEY"
	EnvACLEDEmail = "ACLED_EMAIL"
)

// ClusteringConfig holds the similarity clustering thresholds.
type ClusteringConfig struct {
	SimilarityThreshold  float64       `yaml:"similarity_threshold"`
	TimeWindow           time.Duration `yaml:"time_window"`
	ContentPrefix        int           `yaml:"content_prefix"`
	MaxSourcesPerCluster int           `yaml:"max_sources_per_cluster"`
}

// DimensionConfig is one weighted stability dimension.
type DimensionConfig struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// ScoringConfig holds the stability scoring settings.
type ScoringConfig struct {
	Dimensions      []DimensionConfig `yaml:"dimensions"`
	MinConfidence   float64           `yaml:"min_confidence"`
	LookbackDays    int               `yaml:"lookback_days"`
	DeltaPeriods    []int             `yaml:"delta_periods"` // exactly three: 7d, 30d, 90d slots
	DefaultSeverity float64           `yaml:"default_severity"`
}

// EventKindConfig holds the severity and dimension weights of one event kind.
type EventKindConfig struct {
	Severity   float64            `yaml:"severity"`
	Dimensions map[string]float64 `yaml:"dimensions"`
}

// IngestionConfig controls scheduling and HTTP behaviour for every source.
type IngestionConfig struct {
	Interval      time.Duration `yaml:"interval"`    // between scheduled runs
	Concurrency   int           `yaml:"concurrency"` // sources fetched at once
	Timeout       time.Duration `yaml:"timeout"`     // per source
	UserAgent     string        `yaml:"user_agent"`
	RatePerSecond float64       `yaml:"rate_per_second"` // per source request rate
	Burst         int           `yaml:"burst"`
	MaxRetries    int           `yaml:"max_retries"`
	Backoff       time.Duration `yaml:"backoff"`     // initial backoff
	MaxBackoff    time.Duration `yaml:"max_backoff"` // cap
}

// SourceConfig describes one ingestion source.
type SourceConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"` // "rss" | "acled" | "worldbank"
	URL      string `yaml:"url"`
	Tier     string `yaml:"tier"`
	Language string `yaml:"language"`
	Disabled bool   `yaml:"disabled"`

	// ACLED only
	Days   int    `yaml:"days"`  // look-back window of the query
	Limit  int    `yaml:"limit"` // max rows per request
	APIKey string `yaml:"api_key"`
	Email  string `yaml:"email"`

	// World Bank only; defaults to the monitored locations
	Countries []string `yaml:"countries"`
	Years     int      `yaml:"years"` // indicator years back from the current one
}

// BriefsConfig controls brief generation after each run.
type BriefsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Kind    string `yaml:"kind"`   // executive | analyst
	Events  int    `yaml:"events"` // recent events considered per brief
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. ":9108"; empty disables the endpoint
}

// LoggingConfig holds log level and directory.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Config is the complete application configuration.
type Config struct {
	Locations  []string                   `yaml:"monitored_locations"`
	Clustering ClusteringConfig           `yaml:"clustering"`
	Scoring    ScoringConfig              `yaml:"scoring"`
	EventKinds map[string]EventKindConfig `yaml:"event_kinds"`
	Ingestion  IngestionConfig            `yaml:"ingestion"`
	Sources    []SourceConfig             `yaml:"sources"`
	Briefs     BriefsConfig               `yaml:"briefs"`
	Storage    StorageConfig              `yaml:"storage"`
	Metrics    MetricsConfig              `yaml:"metrics"`
	Logging    LoggingConfig              `yaml:"logging"`
}

// Default returns the embedded default configuration.
func Default() Config {
	var c Config
	if err := yaml.Unmarshal(defaultYAML, &c); err != nil {
		panic(fmt.Sprintf("parse default.yaml: %v", err))
	}
	return c
}

// Load reads the defaults, overlays the file at path and applies the
// environment. An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &c); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	c.applyEnv()
	c.applySourceDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if p := os.Getenv(EnvDB); p != "" {
		c.Storage.Path = p
	}
	key, email := os.Getenv(EnvACLEDKey), os.Getenv(EnvACLEDEmail)
	for i := range c.Sources {
		if c.Sources[i].Type != "acled" {
			continue
		}
		if key != "" {
			c.Sources[i].APIKey = key
		}
		if email != "" {
			c.Sources[i].Email = email
		}
	}
}

// applySourceDefaults points World Bank sources without a country list at
// the monitored locations.
func (c *Config) applySourceDefaults() {
	for i := range c.Sources {
		if c.Sources[i].Type == "worldbank" && len(c.Sources[i].Countries) == 0 {
			c.Sources[i].Countries = append([]string(nil), c.Locations...)
		}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error

	if len(c.Locations) == 0 {
		errs = append(errs, errors.New("monitored_locations: at least one location required"))
	}
	cl := c.Clustering
	if cl.SimilarityThreshold <= 0 || cl.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("clustering.similarity_threshold: %v not in (0, 1]", cl.SimilarityThreshold))
	}
	if cl.TimeWindow <= 0 {
		errs = append(errs, fmt.Errorf("clustering.time_window: must be positive, got %v", cl.TimeWindow))
	}

	sc := c.Scoring
	for _, d := range sc.Dimensions {
		if d.Name == "" {
			errs = append(errs, errors.New("scoring.dimensions: empty name"))
		}
		if d.Weight < 0 {
			errs = append(errs, fmt.Errorf("scoring.dimensions.%s: negative weight %v", d.Name, d.Weight))
		}
	}
	if sc.MinConfidence < 0 || sc.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("scoring.min_confidence: %v not in [0, 1]", sc.MinConfidence))
	}
	if sc.LookbackDays <= 0 {
		errs = append(errs, fmt.Errorf("scoring.lookback_days: must be positive, got %d", sc.LookbackDays))
	}
	if len(sc.DeltaPeriods) != 3 {
		errs = append(errs, fmt.Errorf("scoring.delta_periods: want 3 periods, got %d", len(sc.DeltaPeriods)))
	}

	for name, k := range c.EventKinds {
		if _, err := model.ParseEventKind(name); err != nil {
			errs = append(errs, fmt.Errorf("event_kinds: %w", err))
		}
		if k.Severity < 0 || k.Severity > 1 {
			errs = append(errs, fmt.Errorf("event_kinds.%s.severity: %v not in [0, 1]", name, k.Severity))
		}
		for dim, w := range k.Dimensions {
			if w < 0 {
				errs = append(errs, fmt.Errorf("event_kinds.%s.dimensions.%s: negative weight %v", name, dim, w))
			}
		}
	}

	for _, s := range c.Sources {
		if s.Name == "" {
			errs = append(errs, errors.New("sources: source without name"))
		}
		if _, err := model.ParseTier(s.Tier); err != nil {
			errs = append(errs, fmt.Errorf("sources.%s: %w", s.Name, err))
		}
		switch s.Type {
		case "rss", "acled", "worldbank":
		default:
			errs = append(errs, fmt.Errorf("sources.%s: unknown type %q", s.Name, s.Type))
		}
	}

	switch model.BriefKind(c.Briefs.Kind) {
	case "", model.BriefExecutive, model.BriefAnalyst:
	default:
		errs = append(errs, fmt.Errorf("briefs.kind: unknown kind %q", c.Briefs.Kind))
	}

	return errors.Join(errs...)
}

// ForCluster returns the clustering engine configuration.
func (c Config) ForCluster() cluster.Config {
	return cluster.Config{
		SimilarityThreshold: c.Clustering.SimilarityThreshold,
		TimeWindow:          c.Clustering.TimeWindow,
		ContentPrefix:       c.Clustering.ContentPrefix,
	}
}

// ForExtract returns the event extraction configuration.
func (c Config) ForExtract() extract.Config {
	return extract.Config{
		Locations:            append([]string(nil), c.Locations...),
		MaxSourcesPerCluster: c.Clustering.MaxSourcesPerCluster,
	}
}

// ForScoring returns the scoring engine configuration.
func (c Config) ForScoring() scoring.Config {
	sc := scoring.Config{
		Kinds:           make(map[model.EventKind]scoring.KindWeights, len(c.EventKinds)),
		MinConfidence:   c.Scoring.MinConfidence,
		LookbackDays:    c.Scoring.LookbackDays,
		DefaultSeverity: c.Scoring.DefaultSeverity,
	}
	for _, d := range c.Scoring.Dimensions {
		sc.Dimensions = append(sc.Dimensions, scoring.Dimension{Name: d.Name, Weight: d.Weight})
	}
	copy(sc.DeltaPeriods[:], c.Scoring.DeltaPeriods)
	for name, k := range c.EventKinds {
		dims := make(map[string]float64, len(k.Dimensions))
		for d, w := range k.Dimensions {
			dims[d] = w
		}
		sc.Kinds[model.EventKind(name)] = scoring.KindWeights{Severity: k.Severity, Dimensions: dims}
	}
	return sc
}

// BriefKind returns the configured brief kind, defaulting to executive.
func (c Config) BriefKind() model.BriefKind {
	if c.Briefs.Kind == "" {
		return model.BriefExecutive
	}
	return model.BriefKind(c.Briefs.Kind)
}

// DataDir returns ~/.intelbrief.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".intelbrief")
}

// DBPath returns the SQLite database path.
func (c Config) DBPath() string {
	if c.Storage.Path != "" {
		return expandHome(c.Storage.Path)
	}
	return filepath.Join(DataDir(), "intelbrief.db")
}

// LogDir returns the directory for daily log files.
func (c Config) LogDir() string {
	if c.Logging.Dir != "" {
		return expandHome(c.Logging.Dir)
	}
	return filepath.Join(DataDir(), "logs")
}

// EventLogPath returns the JSONL run event log path.
func (c Config) EventLogPath() string {
	return filepath.Join(c.LogDir(), "events.jsonl")
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, p[2:])
	}
	return p
}
