package otel

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Filter selects events from a JSONL log. Zero values match everything.
type Filter struct {
	KindPrefix string
	MinLevel   Level
	Comp       string
	RunID      string
	Target     string
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Event) bool {
	if f.KindPrefix != "" && !strings.HasPrefix(string(e.Kind), f.KindPrefix) {
		return false
	}
	if f.MinLevel != "" && e.Level.rank() < f.MinLevel.rank() {
		return false
	}
	if f.Comp != "" && e.Comp != f.Comp {
		return false
	}
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if f.Target != "" && !strings.EqualFold(e.Target, f.Target) {
		return false
	}
	return true
}

// Line is one decoded log line together with its raw bytes.
type Line struct {
	Event Event
	Raw   []byte
}

// ReadTail returns the last n lines of r that match f, oldest first.
// Lines that are not valid JSON are skipped.
func ReadTail(r io.Reader, n int, f Filter) ([]Line, error) {
	if n <= 0 {
		return nil, nil
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	ring := make([]Line, 0, n)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev Event
		if json.Unmarshal(raw, &ev) != nil {
			continue
		}
		if !f.Match(ev) {
			continue
		}
		rawCopy := make([]byte, len(raw))
		copy(rawCopy, raw)

		if len(ring) < n {
			ring = append(ring, Line{Event: ev, Raw: rawCopy})
		} else {
			copy(ring, ring[1:])
			ring[n-1] = Line{Event: ev, Raw: rawCopy}
		}
	}
	if err := scanner.Err(); err != nil {
		return ring, fmt.Errorf("read event log: %w", err)
	}
	return ring, nil
}

// Format renders an event as a single human-readable line.
func Format(ev Event) string {
	ts := ev.Time.Format("15:04:05.000")
	lvl := strings.ToUpper(string(ev.Level))
	if lvl == "" {
		lvl = "?"
	}

	parts := []string{fmt.Sprintf("%s %-5s [%-6s] %-18s", ts, lvl, ev.Comp, ev.Kind)}

	if ev.Msg != "" {
		parts = append(parts, "- "+ev.Msg)
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.0fms)", ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Source != "" {
		parts = append(parts, "src="+ev.Source)
	}
	if ev.Target != "" {
		parts = append(parts, "target="+ev.Target)
	}
	if ev.Score != 0 {
		parts = append(parts, fmt.Sprintf("score=%.1f", ev.Score))
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}

	return strings.Join(parts, " ")
}
