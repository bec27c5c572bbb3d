// Package brief writes situation briefs that keep reported facts (what
// changed) apart from assessment (why it matters, what to watch).
package brief

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/intelbrief/internal/model"
)

const (
	executiveEvents = 3
	analystEvents   = 5
	maxCitations    = 10
	maxKeyScores    = 3
	maxWatchKinds   = 3
)

// Input is everything a brief is written from. Events should be the
// target's most recent events; History its snapshots, oldest first.
type Input struct {
	Target     string
	Kind       model.BriefKind
	Assessment *model.Assessment // nil when the target was never assessed
	Events     []model.Event
	History    []model.Snapshot
	Now        time.Time
}

// highImpactKinds are the kinds counted as high impact when reported with
// high confidence.
var highImpactKinds = map[model.EventKind]bool{
	model.KindArmedConflict:    true,
	model.KindSanctions:        true,
	model.KindGovernmentChange: true,
}

// Generate writes a brief. Without an assessment it returns a placeholder
// brief with low confidence.
func Generate(in Input) model.Brief {
	if in.Kind == "" {
		in.Kind = model.BriefExecutive
	}
	b := model.Brief{
		ID:          "brief_" + in.Target + "_" + uuid.NewString(),
		Target:      in.Target,
		Kind:        in.Kind,
		GeneratedAt: in.Now,
	}

	if in.Assessment == nil {
		b.WhatChanged = "No data available for this region at this time."
		b.WhyItMatters = "Insufficient data to assess current conditions."
		b.WhatToWatch = "Continue monitoring for new information."
		b.ConfidenceMarkers = map[string]model.ConfidenceLabel{"overall_assessment": model.ConfidenceLow}
		return b
	}

	b.WhatChanged = whatChanged(in.Events, in.Kind)
	b.WhyItMatters = whyItMatters(*in.Assessment, in.Events, in.History)
	b.WhatToWatch = whatToWatch(*in.Assessment, in.Events)
	b.Citations = citations(in.Events)
	b.ConfidenceMarkers = markers(*in.Assessment, in.Events)
	return b
}

func whatChanged(events []model.Event, kind model.BriefKind) string {
	if len(events) == 0 {
		return "No significant events reported in the recent period."
	}

	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })

	limit := executiveEvents
	if kind == model.BriefAnalyst {
		limit = analystEvents
	}
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	facts := make([]string, 0, len(sorted))
	for _, ev := range sorted {
		fact := fmt.Sprintf("On %s, %s", ev.Timestamp.Format("2006-01-02"), ev.Summary)
		if ev.Location != "" {
			fact += fmt.Sprintf(" (Location: %s)", ev.Location)
		}
		fact += fmt.Sprintf(" [Confidence: %s] (Sources: %d)", ev.ConfidenceLabel, len(ev.Sources))
		facts = append(facts, fact)
	}
	return strings.Join(facts, ". ") + "."
}

// Trend describes a seven-day change in words: strength and direction.
func Trend(delta7d float64) (strength, direction string) {
	switch {
	case delta7d < -10:
		return "significant", "declining"
	case delta7d < -5:
		return "moderate", "declining"
	case delta7d > 10:
		return "significant", "improving"
	case delta7d > 5:
		return "moderate", "improving"
	default:
		return "moderate", "stable"
	}
}

func whyItMatters(a model.Assessment, events []model.Event, history []model.Snapshot) string {
	var sb strings.Builder

	strength, direction := Trend(a.Delta7d)
	fmt.Fprintf(&sb, "Overall stability score: %.1f/100 (trend: %s %s). ", a.Overall, strength, direction)

	if len(history) > 1 {
		oldest := history[0].Overall
		switch diff := a.Overall - oldest; {
		case diff < -10:
			fmt.Fprintf(&sb, "Score has declined %.1f points over the past 90 days. ", -diff)
		case diff > 10:
			fmt.Fprintf(&sb, "Score has improved %.1f points over the past 90 days. ", diff)
		}
	}

	var key []string
	for _, s := range a.SubScores {
		if math.Abs(s.Delta7d) <= 3 {
			continue
		}
		dir := "improving"
		if s.Delta7d < 0 {
			dir = "declining"
		}
		key = append(key, fmt.Sprintf("%s (%.1f, %s Δ%+.1f)", s.Name, s.Value, dir, s.Delta7d))
	}
	if len(key) > maxKeyScores {
		key = key[:maxKeyScores]
	}
	if len(key) > 0 {
		fmt.Fprintf(&sb, "Notable changes in: %s. ", strings.Join(key, ", "))
	}

	high := 0
	for _, ev := range events {
		if ev.Confidence > 0.7 && highImpactKinds[ev.Kind] {
			high++
		}
	}
	if high > 0 {
		fmt.Fprintf(&sb, "Recent high-impact events (%d) suggest ongoing volatility. ", high)
	}

	switch {
	case a.Overall < 50:
		sb.WriteString("Current conditions suggest elevated risk levels requiring close monitoring. ")
	case a.Overall > 80:
		sb.WriteString("Current conditions indicate relative stability, though continued monitoring is advised. ")
	}

	return strings.TrimSpace(sb.String())
}

func whatToWatch(a model.Assessment, events []model.Event) string {
	var items []string

	if len(a.Drivers) > 0 {
		items = append(items, "Monitor developments related to recent events that are driving score changes.")
	}
	for _, s := range a.SubScores {
		if s.Value < 60 {
			items = append(items, fmt.Sprintf("Watch for changes in %s indicators (current: %.1f/100).", s.Name, s.Value))
		}
	}

	seen := make(map[model.EventKind]bool)
	var kinds []string
	for _, ev := range events {
		if seen[ev.Kind] {
			continue
		}
		seen[ev.Kind] = true
		kinds = append(kinds, strings.ReplaceAll(string(ev.Kind), "_", " "))
	}
	if len(kinds) > maxWatchKinds {
		kinds = kinds[:maxWatchKinds]
	}
	if len(kinds) > 0 {
		items = append(items, fmt.Sprintf("Continue monitoring for: %s.", strings.Join(kinds, ", ")))
	}

	if len(items) == 0 {
		return "Continue standard monitoring protocols."
	}
	return strings.Join(items, " ")
}

// citations collects up to ten citations, first occurrence per URL.
func citations(events []model.Event) []model.Citation {
	seen := make(map[string]bool)
	var out []model.Citation
	for _, ev := range events {
		for _, c := range ev.Sources {
			if seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			out = append(out, c)
			if len(out) == maxCitations {
				return out
			}
		}
	}
	return out
}

func markers(a model.Assessment, events []model.Event) map[string]model.ConfidenceLabel {
	m := map[string]model.ConfidenceLabel{
		"overall_assessment": model.LabelFor(a.Confidence),
	}
	if len(events) > 0 {
		var sum float64
		for _, ev := range events {
			sum += ev.Confidence
		}
		m["events"] = model.LabelFor(sum / float64(len(events)))
	}
	return m
}
