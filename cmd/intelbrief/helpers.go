package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/abelbrown/intelbrief/internal/config"
	"github.com/abelbrown/intelbrief/internal/model"
	"github.com/abelbrown/intelbrief/internal/otel"
	"github.com/abelbrown/intelbrief/internal/store"
)

func defaultConfigPath() string {
	if p := os.Getenv("INTELBRIEF_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(config.DataDir(), "config.yaml")
}

// openStore opens the configured database, creating its directory.
func openStore() (*store.Store, error) {
	path := cfg.DBPath()
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return store.Open(path)
}

// openEventLog opens the JSONL run event log for appending. The returned
// close func flushes the logger before closing the file and may be called
// more than once.
func openEventLog() (*otel.Logger, func(), error) {
	path := cfg.EventLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open event log: %w", err)
	}
	l := otel.NewLogger(f)
	var once sync.Once
	return l, func() {
		once.Do(func() {
			l.Close()
			f.Close()
		})
	}, nil
}

// since filters events to those at or after cutoff.
func since(events []model.Event, cutoff time.Time) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if !ev.Timestamp.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

func lookback(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}
