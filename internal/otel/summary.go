package otel

import (
	"maps"
	"sync"
)

// defaultProblemLimit bounds how many warnings and errors a Summary keeps.
const defaultProblemLimit = 50

// Summary tallies the events a Logger writes during one run and keeps the
// latest warnings and errors for the end-of-run report.
// Goroutine-safe.
type Summary struct {
	mu       sync.Mutex
	counts   map[EventKind]int
	problems []Event
	limit    int
	omitted  int
}

// NewSummary returns a Summary that keeps at most limit problem events.
// A non-positive limit uses the default.
func NewSummary(limit int) *Summary {
	if limit <= 0 {
		limit = defaultProblemLimit
	}
	return &Summary{counts: make(map[EventKind]int), limit: limit}
}

// Record counts e and keeps it if it is a warning or an error. When the
// limit is reached the oldest problem is discarded.
func (s *Summary) Record(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[e.Kind]++
	if e.Level != LevelWarn && e.Level != LevelError {
		return
	}
	if len(s.problems) == s.limit {
		s.problems = append(s.problems[:0], s.problems[1:]...)
		s.omitted++
	}
	s.problems = append(s.problems, e)
}

// Counts returns the number of events recorded per kind.
func (s *Summary) Counts() map[EventKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.counts)
}

// Problems returns the kept warnings and errors, oldest first, and how many
// older ones were discarded.
func (s *Summary) Problems() ([]Event, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.problems...), s.omitted
}
