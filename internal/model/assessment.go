package model

import "time"

// Baseline is the stability value of a dimension with no qualifying events.
const Baseline = 70.0

// SubScore is the score of one stability dimension.
type SubScore struct {
	Name     string   `json:"name"`
	Value    float64  `json:"value"`
	Delta7d  float64  `json:"delta_7d"`
	Delta30d float64  `json:"delta_30d"`
	Delta90d float64  `json:"delta_90d"`
	Drivers  []string `json:"drivers"`
}

// Assessment is an immutable snapshot of a target's stability.
// Higher scores mean more stable.
type Assessment struct {
	ID          string
	Target      string
	Overall     float64
	SubScores   []SubScore
	Delta7d     float64
	Delta30d    float64
	Delta90d    float64
	Drivers     []string
	Confidence  float64
	GeneratedAt time.Time
}

// SubScore returns the named dimension, if present.
func (a Assessment) SubScore(name string) (SubScore, bool) {
	for _, s := range a.SubScores {
		if s.Name == name {
			return s, true
		}
	}
	return SubScore{}, false
}

// Snapshot returns the historical log row for this assessment.
func (a Assessment) Snapshot() Snapshot {
	dims := make(map[string]float64, len(a.SubScores))
	for _, s := range a.SubScores {
		dims[s.Name] = s.Value
	}
	return Snapshot{
		AssessmentID: a.ID,
		Target:       a.Target,
		Overall:      a.Overall,
		SubScores:    dims,
		GeneratedAt:  a.GeneratedAt,
	}
}

// Snapshot is one row of the append-only historical log, used only for
// delta lookups.
type Snapshot struct {
	AssessmentID string
	Target       string
	Overall      float64
	SubScores    map[string]float64
	GeneratedAt  time.Time
}

// Correlation is the pairwise relation between a reference event and another.
type Correlation struct {
	EventID    string
	OtherID    string
	Score      float64
	Correlated bool
}

// PatternEscalation marks a civil unrest event followed by armed conflict.
const PatternEscalation = "escalation"

// Pattern is a detected sequence of events in one location.
type Pattern struct {
	Type          string
	Location      string
	Sequence      []EventKind
	TimeframeDays int
	EventIDs      []string
}

// Relationship links two locations that share event kinds.
type Relationship struct {
	LocationA   string
	LocationB   string
	Type        string
	Strength    float64
	CommonKinds []EventKind
}

// BriefKind selects how much detail a brief carries.
type BriefKind string

const (
	BriefExecutive BriefKind = "executive"
	BriefAnalyst   BriefKind = "analyst"
)

// Brief is a situation summary separating facts from assessment.
type Brief struct {
	ID                string
	Target            string
	Kind              BriefKind
	WhatChanged       string
	WhyItMatters      string
	WhatToWatch       string
	Citations         []Citation
	ConfidenceMarkers map[string]ConfidenceLabel
	GeneratedAt       time.Time
}
