package otel

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("invalid JSON %q: %v", line, err)
		}
		out = append(out, decoded)
	}
	return out
}

func TestEmitWritesValidJSONL(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindScoreComplete, Comp: "coord", Target: "Country A", Score: 61.5})
	l.Close()

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	got := lines[0]
	if got["kind"] != "score.complete" {
		t.Errorf("kind = %v, want score.complete", got["kind"])
	}
	if got["level"] != "info" {
		t.Errorf("level = %v, want default info", got["level"])
	}
	if got["target"] != "Country A" {
		t.Errorf("target = %v", got["target"])
	}
	if got["score"] != 61.5 {
		t.Errorf("score = %v", got["score"])
	}
}

func TestEmitSetsTimeAndRunID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	before := time.Now()
	l.Emit(Event{Kind: KindRunStart})
	l.Emit(Event{Kind: KindRunComplete})
	l.Close()
	after := time.Now()

	var runIDs []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Time.Before(before) || ev.Time.After(after) {
			t.Errorf("time %v not in [%v, %v]", ev.Time, before, after)
		}
		runIDs = append(runIDs, ev.RunID)
	}
	if runIDs[0] == "" || runIDs[0] != runIDs[1] {
		t.Errorf("run ids = %v, want one non-empty id", runIDs)
	}
	if runIDs[0] != l.RunID() {
		t.Errorf("run id %q != logger RunID %q", runIDs[0], l.RunID())
	}
}

func TestDurToMs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindFetchComplete, Dur: 1500 * time.Millisecond})
	l.Close()

	got := decodeLines(t, &buf)[0]
	if got["dur_ms"] != float64(1500) {
		t.Errorf("dur_ms = %v, want 1500", got["dur_ms"])
	}
}

func TestOmitempty(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindRunStart})
	l.Close()

	line := strings.TrimSpace(buf.String())
	for _, field := range []string{"dur_ms", "count", "source", "target", "score", "err", "msg", "extra"} {
		if strings.Contains(line, `"`+field+`"`) {
			t.Errorf("expected field %q to be omitted, but found in: %s", field, line)
		}
	}
}

func TestConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Emit(Event{Kind: KindFetchComplete, Comp: "fetch"})
		}()
	}
	wg.Wait()
	l.Close()

	if n := len(decodeLines(t, &buf)); n != 100 {
		t.Errorf("expected 100 lines, got %d", n)
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Close()
	l.Emit(Event{Kind: KindRunStart})
	l.Close()

	if buf.Len() != 0 {
		t.Errorf("wrote %q after close", buf.String())
	}
	if l.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", l.Dropped())
	}
}

func TestDropCounter(t *testing.T) {
	bw := &blockingWriter{
		started: make(chan struct{}),
		block:   make(chan struct{}),
	}
	l := NewLogger(bw)

	l.Emit(Event{Kind: KindFetchComplete})
	<-bw.started

	for i := 0; i < writerChanSize+10; i++ {
		l.Emit(Event{Kind: KindFetchComplete})
	}

	if l.Dropped() == 0 {
		t.Error("expected some drops when channel is full, got 0")
	}

	close(bw.block)
	l.Close()
}

type blockingWriter struct {
	started chan struct{}
	block   chan struct{}
	once    sync.Once
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	w.once.Do(func() {
		close(w.started)
		<-w.block
	})
	return len(p), nil
}

type errForTest string

func (e errForTest) Error() string { return string(e) }

func TestConvenienceHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Info(KindRunStart, "cli", "starting")
	l.Warn(KindFetchError, "fetch", "timeout")
	l.Error(KindStoreError, "store", errForTest("disk full"))
	l.Close()

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	tests := []struct {
		level string
		kind  string
		comp  string
	}{
		{"info", "run.start", "cli"},
		{"warn", "fetch.error", "fetch"},
		{"error", "store.error", "store"},
	}
	for i, tt := range tests {
		if lines[i]["level"] != tt.level {
			t.Errorf("line %d: level=%v, want %v", i, lines[i]["level"], tt.level)
		}
		if lines[i]["kind"] != tt.kind {
			t.Errorf("line %d: kind=%v, want %v", i, lines[i]["kind"], tt.kind)
		}
		if lines[i]["comp"] != tt.comp {
			t.Errorf("line %d: comp=%v, want %v", i, lines[i]["comp"], tt.comp)
		}
	}
	if lines[2]["err"] != "disk full" {
		t.Errorf("err = %v", lines[2]["err"])
	}
}

func TestSummaryWithLogger(t *testing.T) {
	sum := NewSummary(0)
	l := NewNullLogger()
	l.SetSummary(sum)

	l.Emit(Event{Kind: KindFetchComplete})
	l.Emit(Event{Kind: KindFetchError, Level: LevelWarn})
	l.Emit(Event{Kind: KindFetchError, Level: LevelWarn})
	l.Close()

	counts := sum.Counts()
	if counts[KindFetchError] != 2 || counts[KindFetchComplete] != 1 {
		t.Errorf("Counts = %v", counts)
	}
	if problems, _ := sum.Problems(); len(problems) != 2 {
		t.Errorf("kept %d problems, want 2", len(problems))
	}
}
