// Package otel records the pipeline's run events.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// events asynchronously via a buffered channel and background drain goroutine.
// An optional Summary tallies the events in memory so a run can report on
// itself without re-reading the file.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// rank orders levels for minimum-level filtering. Unknown levels rank as debug.
func (l Level) rank() int {
	switch l {
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 0
	}
}

// EventKind identifies the category of a run event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Run lifecycle
	KindRunStart    EventKind = "run.start"
	KindRunComplete EventKind = "run.complete"

	// Ingestion
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchError    EventKind = "fetch.error"

	// Analysis
	KindClusterComplete EventKind = "cluster.complete"
	KindExtractComplete EventKind = "extract.complete"
	KindScoreComplete   EventKind = "score.complete"
	KindPatternDetected EventKind = "correlate.pattern"
	KindBriefGenerated  EventKind = "brief.complete"

	// Store
	KindStoreError EventKind = "store.error"
)

// Event is the universal run record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time   time.Time      `json:"t"`
	Level  Level          `json:"level,omitempty"`
	Kind   EventKind      `json:"kind"`
	Comp   string         `json:"comp,omitempty"`   // component: "coord", "fetch", "store", "cli"
	RunID  string         `json:"run_id,omitempty"` // same for every event of one process
	Dur    time.Duration  `json:"-"`                // not serialized directly
	DurMs  float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count  int            `json:"count,omitempty"`
	Source string         `json:"source,omitempty"`
	Target string         `json:"target,omitempty"`
	Score  float64        `json:"score,omitempty"`
	Err    string         `json:"err,omitempty"`
	Msg    string         `json:"msg,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
