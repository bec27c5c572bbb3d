package correlation

import (
	"sort"
	"strings"

	"github.com/abelbrown/intelbrief/internal/model"
)

// escalationDays bounds the whole-day gap between the two events of an
// escalation.
const escalationDays = 30

// DetectPatterns flags, per location, every civil unrest event immediately
// followed in time by an armed conflict event less than 30 whole days later.
// Locations are reported in sorted order.
func DetectPatterns(events []model.Event) []model.Pattern {
	byLoc := groupByLocation(events)

	var patterns []model.Pattern
	for _, loc := range sortedKeys(byLoc) {
		evs := byLoc[loc]
		sort.SliceStable(evs, func(i, j int) bool { return evs[i].Timestamp.Before(evs[j].Timestamp) })

		for i := 0; i+1 < len(evs); i++ {
			first, next := evs[i], evs[i+1]
			if first.Kind != model.KindCivilUnrest || next.Kind != model.KindArmedConflict {
				continue
			}
			days := int(next.Timestamp.Sub(first.Timestamp).Hours() / 24)
			if days >= escalationDays {
				continue
			}
			patterns = append(patterns, model.Pattern{
				Type:          model.PatternEscalation,
				Location:      loc,
				Sequence:      []model.EventKind{model.KindCivilUnrest, model.KindArmedConflict},
				TimeframeDays: days,
				EventIDs:      []string{first.ID, next.ID},
			})
		}
	}
	return patterns
}

// RelationshipShared is the relationship type for locations with common
// event kinds.
const RelationshipShared = "shared_events"

// Relationships links every pair of locations that have at least one event
// kind in common. Strength is the number of shared kinds over the larger
// location's kind count. Pairs are ordered by location name.
func Relationships(events []model.Event) []model.Relationship {
	kinds := make(map[string]map[model.EventKind]bool)
	for _, ev := range events {
		loc := strings.TrimSpace(ev.Location)
		if loc == "" {
			continue
		}
		if kinds[loc] == nil {
			kinds[loc] = make(map[model.EventKind]bool)
		}
		kinds[loc][ev.Kind] = true
	}

	locs := sortedKeys(kinds)
	var out []model.Relationship
	for i := 0; i < len(locs); i++ {
		for j := i + 1; j < len(locs); j++ {
			a, b := kinds[locs[i]], kinds[locs[j]]
			var common []model.EventKind
			for _, k := range model.AllEventKinds() {
				if a[k] && b[k] {
					common = append(common, k)
				}
			}
			if len(common) == 0 {
				continue
			}
			denom := len(a)
			if len(b) > denom {
				denom = len(b)
			}
			out = append(out, model.Relationship{
				LocationA:   locs[i],
				LocationB:   locs[j],
				Type:        RelationshipShared,
				Strength:    float64(len(common)) / float64(denom),
				CommonKinds: common,
			})
		}
	}
	return out
}

func groupByLocation(events []model.Event) map[string][]model.Event {
	out := make(map[string][]model.Event)
	for _, ev := range events {
		out[ev.Location] = append(out[ev.Location], ev)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
