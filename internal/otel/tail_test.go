package otel

import (
	"strings"
	"testing"
	"time"
)

const sampleLog = `{"t":"2026-03-01T10:00:00Z","level":"info","kind":"run.start","comp":"coord","run_id":"r1"}
{"t":"2026-03-01T10:00:01Z","level":"warn","kind":"fetch.error","comp":"fetch","run_id":"r1","source":"bbc","err":"timeout"}
not json
{"t":"2026-03-01T10:00:02Z","level":"info","kind":"fetch.complete","comp":"fetch","run_id":"r1","source":"reuters","count":12}
{"t":"2026-03-01T10:00:03Z","level":"info","kind":"score.complete","comp":"coord","run_id":"r2","target":"Country A","score":64.2}
`

func TestReadTailFilters(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		filter Filter
		want   []EventKind
	}{
		{"all", 10, Filter{}, []EventKind{KindRunStart, KindFetchError, KindFetchComplete, KindScoreComplete}},
		{"last two", 2, Filter{}, []EventKind{KindFetchComplete, KindScoreComplete}},
		{"kind prefix", 10, Filter{KindPrefix: "fetch"}, []EventKind{KindFetchError, KindFetchComplete}},
		{"min level", 10, Filter{MinLevel: LevelWarn}, []EventKind{KindFetchError}},
		{"component", 10, Filter{Comp: "coord"}, []EventKind{KindRunStart, KindScoreComplete}},
		{"run id", 10, Filter{RunID: "r2"}, []EventKind{KindScoreComplete}},
		{"target", 10, Filter{Target: "country a"}, []EventKind{KindScoreComplete}},
		{"zero lines", 0, Filter{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := ReadTail(strings.NewReader(sampleLog), tt.n, tt.filter)
			if err != nil {
				t.Fatalf("ReadTail: %v", err)
			}
			if len(lines) != len(tt.want) {
				t.Fatalf("got %d lines, want %d", len(lines), len(tt.want))
			}
			for i, l := range lines {
				if l.Event.Kind != tt.want[i] {
					t.Errorf("line %d kind = %s, want %s", i, l.Event.Kind, tt.want[i])
				}
			}
		})
	}
}

func TestFormat(t *testing.T) {
	ev := Event{
		Time:   time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC),
		Level:  LevelWarn,
		Kind:   KindFetchError,
		Comp:   "fetch",
		Source: "bbc",
		Err:    "timeout",
		DurMs:  30000,
	}
	got := Format(ev)
	for _, want := range []string{"10:00:01.000", "WARN", "fetch.error", "src=bbc", "err=timeout", "(30000ms)"} {
		if !strings.Contains(got, want) {
			t.Errorf("Format() = %q, missing %q", got, want)
		}
	}
}
