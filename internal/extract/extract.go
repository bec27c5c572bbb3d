// Package extract turns clusters of raw items into typed, located events.
//
// Classification is a fixed ordered rule table (first match wins); location
// is the first monitored location named in the text. Clusters that cannot be
// classified or located are dropped without a diagnostic.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/abelbrown/intelbrief/internal/entity"
	"github.com/abelbrown/intelbrief/internal/model"
)

const maxSummaryLen = 500

// Config controls extraction.
type Config struct {
	Locations            []string // monitored locations, in tie-break order
	MaxSourcesPerCluster int      // citations kept per event; <= 0 means 10
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithClock overrides the time source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(x *Extractor) { x.now = now }
}

// WithClassifier replaces the built-in rule table.
func WithClassifier(c *Classifier) Option {
	return func(x *Extractor) { x.classifier = c }
}

// Extractor builds events from clusters. Safe for concurrent use.
type Extractor struct {
	cfg        Config
	classifier *Classifier
	resolver   *entity.Resolver
	now        func() time.Time
}

// New returns an extractor for cfg.
func New(cfg Config, opts ...Option) *Extractor {
	if cfg.MaxSourcesPerCluster <= 0 {
		cfg.MaxSourcesPerCluster = 10
	}
	x := &Extractor{
		cfg:      cfg,
		resolver: entity.NewResolver(cfg.Locations),
		now:      time.Now,
	}
	for _, o := range opts {
		o(x)
	}
	if x.classifier == nil {
		x.classifier = NewClassifier()
	}
	return x
}

// Extract builds the event for one cluster. It reports false when the cluster
// is empty, unclassifiable or names no monitored location.
func (x *Extractor) Extract(c model.Cluster) (model.Event, bool) {
	if c.Len() == 0 {
		return model.Event{}, false
	}
	anchor := c.Anchor()
	text := anchor.Title + " " + anchor.Content

	kind, ok := x.classifier.Classify(text)
	if !ok {
		return model.Event{}, false
	}
	location, ok := x.Locate(text)
	if !ok {
		return model.Event{}, false
	}

	ts := anchor.EffectiveTime()
	now := x.now()

	ev := model.Event{
		ID:            EventID(kind, location, ts, anchor.ID),
		Kind:          kind,
		Timestamp:     ts,
		Location:      location,
		Summary:       Summarize(anchor),
		Entities:      x.resolver.IDs(text),
		Sources:       x.citations(c),
		ImpactTags:    x.classifier.ImpactTags(kind, anchor.Content),
		EvidenceLinks: evidence(c),
		CreatedAt:     now,
	}
	ev.SetConfidence(Confidence(c), now)
	return ev, true
}

// ExtractAll extracts every cluster, skipping those that yield no event.
func (x *Extractor) ExtractAll(clusters []model.Cluster) []model.Event {
	var events []model.Event
	for _, c := range clusters {
		if ev, ok := x.Extract(c); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Locate returns the first configured location that appears in text,
// compared case-insensitively as a substring.
func (x *Extractor) Locate(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, loc := range x.cfg.Locations {
		if loc != "" && strings.Contains(lower, strings.ToLower(loc)) {
			return loc, true
		}
	}
	return "", false
}

// Summarize builds an event summary from the anchor title and the first
// sentence of its content, capped at 500 runes.
func Summarize(anchor model.RawItem) string {
	summary := anchor.Title
	if anchor.Content != "" {
		first := strings.TrimSpace(strings.SplitN(anchor.Content, ".", 2)[0])
		if first != "" && !strings.Contains(strings.ToLower(summary), strings.ToLower(first)) {
			summary += ". " + first
		}
	}
	return truncate(summary, maxSummaryLen)
}

// EventID derives an event identifier from its kind, location, timestamp and
// anchor item, so re-extracting an unchanged cluster yields the same ID.
func EventID(kind model.EventKind, location string, ts time.Time, anchorID string) string {
	key := string(kind) + "|" + location + "|" + ts.UTC().Format(time.RFC3339Nano) + "|" + anchorID
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:8])
}

func (x *Extractor) citations(c model.Cluster) []model.Citation {
	n := c.Len()
	if n > x.cfg.MaxSourcesPerCluster {
		n = x.cfg.MaxSourcesPerCluster
	}
	out := make([]model.Citation, n)
	for i := 0; i < n; i++ {
		out[i] = c.Items[i].Citation()
	}
	return out
}

func evidence(c model.Cluster) []string {
	var links []string
	for _, it := range c.Items {
		if it.URL != "" {
			links = append(links, it.URL)
		}
	}
	return links
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
