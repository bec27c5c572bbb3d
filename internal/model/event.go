package model

import (
	"fmt"
	"time"
)

// EventKind is the closed taxonomy of geopolitical event categories.
type EventKind string

const (
	KindGovernmentChange         EventKind = "government_change"
	KindElection                 EventKind = "election"
	KindSanctions                EventKind = "sanctions"
	KindArmedConflict            EventKind = "armed_conflict"
	KindCeasefire                EventKind = "ceasefire"
	KindTerroristAttack          EventKind = "terrorist_attack"
	KindCivilUnrest              EventKind = "civil_unrest"
	KindBorderIncident           EventKind = "border_incident"
	KindTradeRestriction         EventKind = "trade_restriction"
	KindEconomicCrisis           EventKind = "economic_crisis"
	KindInfrastructureDisruption EventKind = "infrastructure_disruption"
	KindNaturalDisaster          EventKind = "natural_disaster"
	KindDiplomaticRupture        EventKind = "diplomatic_rupture"
	KindMilitaryMobilization     EventKind = "military_mobilization"
	KindCyberIncident            EventKind = "cyber_incident"
	KindLegalChange              EventKind = "legal_change"
	KindStrategicInvestment      EventKind = "strategic_investment"
)

var allKinds = []EventKind{
	KindGovernmentChange,
	KindElection,
	KindSanctions,
	KindArmedConflict,
	KindCeasefire,
	KindTerroristAttack,
	KindCivilUnrest,
	KindBorderIncident,
	KindTradeRestriction,
	KindEconomicCrisis,
	KindInfrastructureDisruption,
	KindNaturalDisaster,
	KindDiplomaticRupture,
	KindMilitaryMobilization,
	KindCyberIncident,
	KindLegalChange,
	KindStrategicInvestment,
}

// AllEventKinds returns every kind in declaration order.
func AllEventKinds() []EventKind {
	out := make([]EventKind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k belongs to the taxonomy.
func (k EventKind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseEventKind validates a kind name.
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown event kind %q", s)
	}
	return k, nil
}

// ConfidenceLabel is the categorical bucket derived from a numeric confidence.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "High"
	ConfidenceMedium ConfidenceLabel = "Medium"
	ConfidenceLow    ConfidenceLabel = "Low"
)

// LabelFor buckets a confidence value: High >= 0.7, Medium >= 0.4, else Low.
func LabelFor(c float64) ConfidenceLabel {
	switch {
	case c >= 0.7:
		return ConfidenceHigh
	case c >= 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ClampConfidence limits c to [0, 1].
func ClampConfidence(c float64) float64 {
	return Clamp(c, 0, 1)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Event is a typed, located happening derived from one cluster.
//
// ID is content-derived (kind, location, timestamp, anchor item), so extracting
// the same cluster twice yields the same ID and storage can upsert.
type Event struct {
	ID              string
	Kind            EventKind
	Timestamp       time.Time
	Location        string
	Summary         string
	Entities        []string
	Sources         []Citation
	Confidence      float64
	ConfidenceLabel ConfidenceLabel
	ImpactTags      []string
	EvidenceLinks   []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SetConfidence clamps c, updates the label and bumps UpdatedAt.
func (e *Event) SetConfidence(c float64, now time.Time) {
	e.Confidence = ClampConfidence(c)
	e.ConfidenceLabel = LabelFor(e.Confidence)
	e.UpdatedAt = now
}

// HasTag reports whether the event carries the given impact tag.
func (e Event) HasTag(tag string) bool {
	for _, t := range e.ImpactTags {
		if t == tag {
			return true
		}
	}
	return false
}
