// Package cluster groups raw items that report the same happening.
//
// Grouping is a single greedy pass over items sorted by time: the earliest
// unassigned item becomes an anchor and absorbs every later unassigned item
// that is close in time and textually similar to it. Membership is therefore
// order-dependent and not transitive: B may join A's cluster, C may be similar
// to B, yet C starts its own cluster if it is not similar to A.
package cluster

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/abelbrown/intelbrief/internal/model"
)

// sameHostThreshold is the content similarity required for two items from
// the same host to be grouped when neither title nor content passes the
// configured threshold.
const sameHostThreshold = 0.5

// Config controls cluster admission.
type Config struct {
	SimilarityThreshold float64       // Jaccard similarity that must be exceeded
	TimeWindow          time.Duration // max |Δt| between anchor and member
	ContentPrefix       int           // runes of content compared; <= 0 means 500
}

// DefaultConfig returns the stock clustering parameters.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.6,
		TimeWindow:          24 * time.Hour,
		ContentPrefix:       500,
	}
}

// Engine clusters batches of items. It holds no state between calls.
type Engine struct {
	cfg Config
}

// New returns a clustering engine for cfg.
func New(cfg Config) *Engine {
	if cfg.ContentPrefix <= 0 {
		cfg.ContentPrefix = 500
	}
	return &Engine{cfg: cfg}
}

// prepared caches the word sets of one item so the quadratic pass does not
// re-tokenize.
type prepared struct {
	item    model.RawItem
	at      time.Time
	title   map[string]struct{}
	content map[string]struct{}
	host    string
}

// Cluster partitions items into clusters. Every input item appears in exactly
// one output cluster; each cluster's first item is its anchor. Empty input
// returns nil.
func (e *Engine) Cluster(items []model.RawItem) []model.Cluster {
	if len(items) == 0 {
		return nil
	}

	prep := make([]prepared, len(items))
	for i, it := range items {
		prep[i] = prepared{
			item:    it,
			at:      it.EffectiveTime(),
			title:   wordSet(it.Title),
			content: wordSet(prefix(it.Content, e.cfg.ContentPrefix)),
			host:    hostOf(it.URL),
		}
	}
	sort.SliceStable(prep, func(i, j int) bool {
		return prep[i].at.Before(prep[j].at)
	})

	assigned := make([]bool, len(prep))
	var clusters []model.Cluster

	for i := range prep {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		anchor := prep[i]
		members := []model.RawItem{anchor.item}

		for j := i + 1; j < len(prep); j++ {
			if assigned[j] {
				continue
			}
			if e.admits(anchor, prep[j]) {
				assigned[j] = true
				members = append(members, prep[j].item)
			}
		}
		clusters = append(clusters, model.Cluster{Items: members})
	}
	return clusters
}

// Similar reports whether b would be admitted into a cluster anchored at a.
func (e *Engine) Similar(a, b model.RawItem) bool {
	pa := prepared{item: a, at: a.EffectiveTime(), title: wordSet(a.Title), content: wordSet(prefix(a.Content, e.cfg.ContentPrefix)), host: hostOf(a.URL)}
	pb := prepared{item: b, at: b.EffectiveTime(), title: wordSet(b.Title), content: wordSet(prefix(b.Content, e.cfg.ContentPrefix)), host: hostOf(b.URL)}
	return e.admits(pa, pb)
}

func (e *Engine) admits(anchor, cand prepared) bool {
	dt := cand.at.Sub(anchor.at)
	if dt < 0 {
		dt = -dt
	}
	if dt > e.cfg.TimeWindow {
		return false
	}

	if Jaccard(anchor.title, cand.title) > e.cfg.SimilarityThreshold {
		return true
	}
	contentSim := Jaccard(anchor.content, cand.content)
	if contentSim > e.cfg.SimilarityThreshold {
		return true
	}
	return anchor.host != "" && anchor.host == cand.host && contentSim > sameHostThreshold
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Either set being empty yields 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// WordSet lower-cases s and splits it on whitespace.
func WordSet(s string) map[string]struct{} {
	return wordSet(s)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
