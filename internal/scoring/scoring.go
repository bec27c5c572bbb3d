// Package scoring turns a target's events into a stability assessment.
//
// Every dimension starts at a baseline of 70 and only loses points: each
// qualifying event subtracts severity × dimension weight × confidence × 20.
// Deltas compare against the nearest historical snapshot to each horizon;
// there is no interpolation. Every call appends a snapshot, ad hoc or not.
package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/intelbrief/internal/model"
)

const (
	impactScale      = 20.0
	overallDrivers   = 5
	dimensionDrivers = 3
	noEventsConf     = 0.3
	manyEvents       = 5
	manyEventsBonus  = 0.1
)

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine computes assessments. It is safe for concurrent use as long as the
// History is; concurrent assessments of the same target may interleave their
// snapshot appends.
type Engine struct {
	cfg     Config
	history History
	now     func() time.Time
}

// New returns a scoring engine reading and appending snapshots in history.
func New(cfg Config, history History, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, history: history, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Assess scores target from events and appends the resulting snapshot to
// the history. History errors are the only failure.
func (e *Engine) Assess(ctx context.Context, target string, events []model.Event) (model.Assessment, error) {
	now := e.now().UTC()

	qualifying := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.Confidence >= e.cfg.MinConfidence {
			qualifying = append(qualifying, ev)
		}
	}

	since := now.AddDate(0, 0, -e.cfg.LookbackDays)
	history, err := e.history.Snapshots(ctx, target, since)
	if err != nil {
		return model.Assessment{}, fmt.Errorf("load history for %s: %w", target, err)
	}
	anchors := e.horizonSnapshots(history, now)

	subs := make([]model.SubScore, len(e.cfg.Dimensions))
	for i, dim := range e.cfg.Dimensions {
		value := model.Clamp(model.Baseline-e.impact(dim.Name, qualifying), 0, 100)
		sub := model.SubScore{
			Name:    dim.Name,
			Value:   value,
			Drivers: e.dimensionDrivers(dim.Name, qualifying),
		}
		sub.Delta7d = dimensionDelta(anchors[0], dim.Name, value)
		sub.Delta30d = dimensionDelta(anchors[1], dim.Name, value)
		sub.Delta90d = dimensionDelta(anchors[2], dim.Name, value)
		subs[i] = sub
	}

	overall := e.overall(subs)
	a := model.Assessment{
		ID:          "assess_" + target + "_" + uuid.NewString(),
		Target:      target,
		Overall:     overall,
		SubScores:   subs,
		Delta7d:     overallDelta(anchors[0], overall),
		Delta30d:    overallDelta(anchors[1], overall),
		Delta90d:    overallDelta(anchors[2], overall),
		Drivers:     e.overallDrivers(qualifying),
		Confidence:  assessmentConfidence(qualifying),
		GeneratedAt: now,
	}

	if err := e.history.AppendSnapshot(ctx, a.Snapshot()); err != nil {
		return model.Assessment{}, fmt.Errorf("append history for %s: %w", target, err)
	}
	return a, nil
}

// impact is the total points a dimension loses to events.
func (e *Engine) impact(dim string, events []model.Event) float64 {
	var total float64
	for _, ev := range events {
		severity, weights := e.cfg.kind(ev.Kind)
		w := weights[dim]
		if w == 0 {
			continue
		}
		total += severity * w * ev.Confidence * impactScale
	}
	return total
}

// overall is the weighted mean of sub-score values, or the baseline when the
// weights sum to zero.
func (e *Engine) overall(subs []model.SubScore) float64 {
	var total, weights float64
	for i, s := range subs {
		w := e.cfg.Dimensions[i].Weight
		total += s.Value * w
		weights += w
	}
	if weights == 0 {
		return model.Baseline
	}
	return model.Clamp(total/weights, 0, 100)
}

// horizonSnapshots picks, for each delta period, the snapshot generated
// closest to now minus that period. Entries are nil when history is empty.
func (e *Engine) horizonSnapshots(history []model.Snapshot, now time.Time) [3]*model.Snapshot {
	var out [3]*model.Snapshot
	if len(history) == 0 {
		return out
	}
	for i, days := range e.cfg.DeltaPeriods {
		target := now.AddDate(0, 0, -days)
		best := math.Inf(1)
		for j := range history {
			diff := math.Abs(history[j].GeneratedAt.Sub(target).Seconds())
			if diff < best {
				best = diff
				out[i] = &history[j]
			}
		}
	}
	return out
}

func overallDelta(s *model.Snapshot, current float64) float64 {
	if s == nil {
		return 0
	}
	return current - s.Overall
}

// dimensionDelta is 0 when there is no snapshot or the snapshot predates
// the dimension.
func dimensionDelta(s *model.Snapshot, dim string, current float64) float64 {
	if s == nil {
		return 0
	}
	past, ok := s.SubScores[dim]
	if !ok {
		return 0
	}
	return current - past
}

type ranked struct {
	id    string
	score float64
}

// topIDs sorts by descending score; equal scores keep input order.
func topIDs(rs []ranked, limit int) []string {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].score > rs[j].score })
	if len(rs) > limit {
		rs = rs[:limit]
	}
	if len(rs) == 0 {
		return nil
	}
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.id
	}
	return out
}

func (e *Engine) overallDrivers(events []model.Event) []string {
	rs := make([]ranked, 0, len(events))
	for _, ev := range events {
		severity, _ := e.cfg.kind(ev.Kind)
		rs = append(rs, ranked{id: ev.ID, score: severity * ev.Confidence})
	}
	return topIDs(rs, overallDrivers)
}

func (e *Engine) dimensionDrivers(dim string, events []model.Event) []string {
	var rs []ranked
	for _, ev := range events {
		severity, weights := e.cfg.kind(ev.Kind)
		w := weights[dim]
		if w == 0 {
			continue
		}
		rs = append(rs, ranked{id: ev.ID, score: severity * w * ev.Confidence})
	}
	return topIDs(rs, dimensionDrivers)
}

// assessmentConfidence is the mean event confidence, boosted for five or
// more events, or 0.3 when nothing qualified.
func assessmentConfidence(events []model.Event) float64 {
	if len(events) == 0 {
		return noEventsConf
	}
	var sum float64
	for _, ev := range events {
		sum += ev.Confidence
	}
	conf := sum / float64(len(events))
	if len(events) >= manyEvents {
		conf += manyEventsBonus
	}
	return model.ClampConfidence(conf)
}
