// Package correlation relates events to each other: pairwise correlation
// scores, escalation patterns within a location, and locations that share
// event kinds.
package correlation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/intelbrief/internal/entity"
	"github.com/abelbrown/intelbrief/internal/model"
)

const (
	sameLocationWeight = 0.3
	sameKindWeight     = 0.3
	sameDayWeight      = 0.2
	sameWeekWeight     = 0.1
	sharedEntityWeight = 0.2

	// Threshold is the score a pair must exceed to count as correlated.
	Threshold = 0.5

	// DefaultWindowDays is the candidate window on each side of a reference event.
	DefaultWindowDays = 30
)

// EventSource supplies stored events by time.
type EventSource interface {
	EventsBetween(ctx context.Context, start, end time.Time) ([]model.Event, error)
}

// Engine finds correlated events in an EventSource.
type Engine struct {
	src EventSource
}

// New returns an engine reading candidates from src.
func New(src EventSource) *Engine {
	return &Engine{src: src}
}

// Score returns the capped correlation score between two events.
func Score(a, b model.Event) float64 {
	var score float64
	if strings.EqualFold(a.Location, b.Location) {
		score += sameLocationWeight
	}
	if a.Kind == b.Kind {
		score += sameKindWeight
	}

	dt := a.Timestamp.Sub(b.Timestamp)
	if dt < 0 {
		dt = -dt
	}
	switch {
	case dt < 24*time.Hour:
		score += sameDayWeight
	case dt < 7*24*time.Hour:
		score += sameWeekWeight
	}

	if entity.Overlaps(a.Entities, b.Entities) {
		score += sharedEntityWeight
	}
	return model.Clamp(score, 0, 1)
}

// Correlate scores b against a.
func Correlate(a, b model.Event) model.Correlation {
	s := Score(a, b)
	return model.Correlation{EventID: a.ID, OtherID: b.ID, Score: s, Correlated: s > Threshold}
}

// FindCorrelated returns the events within windowDays of ref that correlate
// with it, in the order the source returned them. windowDays <= 0 uses the
// default of 30.
func (e *Engine) FindCorrelated(ctx context.Context, ref model.Event, windowDays int) ([]model.Correlation, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	window := time.Duration(windowDays) * 24 * time.Hour
	pool, err := e.src.EventsBetween(ctx, ref.Timestamp.Add(-window), ref.Timestamp.Add(window))
	if err != nil {
		return nil, fmt.Errorf("load candidates for %s: %w", ref.ID, err)
	}

	var out []model.Correlation
	for _, other := range pool {
		if other.ID == ref.ID {
			continue
		}
		if c := Correlate(ref, other); c.Correlated {
			out = append(out, c)
		}
	}
	return out, nil
}
