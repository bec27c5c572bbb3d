// Package model defines the values that flow through the intelbrief pipeline.
//
// Data moves strictly forward: RawItem -> Cluster -> Event -> Assessment.
// Nothing in this package performs I/O; persistence lives in internal/store.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Tier is the credibility ranking of a source. A is the most credible.
type Tier string

const (
	TierA Tier = "A" // official sources, verified datasets
	TierB Tier = "B" // tier-1 media, reputable NGOs
	TierC Tier = "C" // regional outlets with known reliability
	TierD Tier = "D" // social or unverified
)

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierA, TierB, TierC, TierD:
		return true
	}
	return false
}

// ParseTier parses a tier letter, case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown source tier %q", s)
	}
	return t, nil
}

// RawItem is a single fetched piece of content. Immutable once created.
type RawItem struct {
	ID         string
	URL        string
	Title      string
	Content    string
	SourceName string
	Tier       Tier
	Language   string
	Published  time.Time // zero when the source did not report one
	Retrieved  time.Time
	Metadata   map[string]any
}

// EffectiveTime is the published time when known, otherwise the retrieval time.
func (r RawItem) EffectiveTime() time.Time {
	if !r.Published.IsZero() {
		return r.Published
	}
	return r.Retrieved
}

// Citation converts the item into the citation form stored on events.
func (r RawItem) Citation() Citation {
	return Citation{
		URL:        r.URL,
		Title:      r.Title,
		SourceName: r.SourceName,
		Tier:       r.Tier,
		Published:  r.Published,
		Retrieved:  r.Retrieved,
	}
}

// Citation identifies one item that contributed to an event.
type Citation struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	SourceName string    `json:"source_name"`
	Tier       Tier      `json:"tier"`
	Published  time.Time `json:"published_at,omitempty"`
	Retrieved  time.Time `json:"retrieved_at,omitempty"`
}

// Cluster is a non-empty group of items judged to report the same happening.
// Items[0] is the anchor: the earliest item, around which the others were admitted.
type Cluster struct {
	Items []RawItem
}

// Anchor returns the primary item of the cluster.
// Calling Anchor on an empty cluster panics.
func (c Cluster) Anchor() RawItem {
	return c.Items[0]
}

// Len returns the number of items in the cluster.
func (c Cluster) Len() int {
	return len(c.Items)
}
