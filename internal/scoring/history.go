package scoring

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/abelbrown/intelbrief/internal/model"
)

// History is the append-only log of past assessments consulted for deltas.
type History interface {
	// Snapshots returns the target's snapshots generated at or after since.
	Snapshots(ctx context.Context, target string, since time.Time) ([]model.Snapshot, error)
	// AppendSnapshot records a new snapshot.
	AppendSnapshot(ctx context.Context, s model.Snapshot) error
}

// MemoryHistory is an in-process History. Targets compare case-insensitively.
type MemoryHistory struct {
	mu   sync.RWMutex
	rows map[string][]model.Snapshot
}

// NewMemoryHistory returns an empty history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{rows: make(map[string][]model.Snapshot)}
}

// Snapshots implements History.
func (h *MemoryHistory) Snapshots(_ context.Context, target string, since time.Time) ([]model.Snapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []model.Snapshot
	for _, s := range h.rows[strings.ToLower(target)] {
		if !s.GeneratedAt.Before(since) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneratedAt.Before(out[j].GeneratedAt) })
	return out, nil
}

// AppendSnapshot implements History.
func (h *MemoryHistory) AppendSnapshot(_ context.Context, s model.Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := strings.ToLower(s.Target)
	h.rows[key] = append(h.rows[key], s)
	return nil
}

// Len returns the number of snapshots recorded for target.
func (h *MemoryHistory) Len(target string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rows[strings.ToLower(target)])
}
