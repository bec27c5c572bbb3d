package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/intelbrief/internal/model"
)

const eventColumns = `id, kind, timestamp, location, summary, entities, sources,
	confidence, confidence_label, impact_tags, evidence_links, created_at, updated_at`

const upsertEventSQL = `
	INSERT INTO events (` + eventColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		kind = excluded.kind,
		timestamp = excluded.timestamp,
		location = excluded.location,
		summary = excluded.summary,
		entities = excluded.entities,
		sources = excluded.sources,
		confidence = excluded.confidence,
		confidence_label = excluded.confidence_label,
		impact_tags = excluded.impact_tags,
		evidence_links = excluded.evidence_links,
		updated_at = excluded.updated_at
`

// UpsertEvent inserts ev or updates the stored copy. created_at of an
// existing row is preserved.
// Thread-safe: acquires write lock.
func (s *Store) UpsertEvent(ctx context.Context, ev model.Event) error {
	_, err := s.SaveEvents(ctx, []model.Event{ev})
	return err
}

// SaveEvents upserts events in one transaction and returns how many were
// written.
// Thread-safe: acquires write lock.
func (s *Store) SaveEvents(ctx context.Context, events []model.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertEventSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		args, err := eventArgs(ev)
		if err != nil {
			return 0, fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("upsert event %s: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(events), nil
}

func eventArgs(ev model.Event) ([]any, error) {
	entities, err := encodeJSON(ev.Entities)
	if err != nil {
		return nil, err
	}
	sources, err := encodeJSON(ev.Sources)
	if err != nil {
		return nil, err
	}
	tags, err := encodeJSON(ev.ImpactTags)
	if err != nil {
		return nil, err
	}
	links, err := encodeJSON(ev.EvidenceLinks)
	if err != nil {
		return nil, err
	}
	created, updated := ev.CreatedAt, ev.UpdatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if updated.IsZero() {
		updated = created
	}
	return []any{
		ev.ID,
		string(ev.Kind),
		formatTime(ev.Timestamp),
		ev.Location,
		ev.Summary,
		entities,
		sources,
		ev.Confidence,
		string(ev.ConfidenceLabel),
		tags,
		links,
		formatTime(created),
		formatTime(updated),
	}, nil
}

// GetEvent returns the event with the given ID, or ErrNotFound.
// Thread-safe: acquires read lock.
func (s *Store) GetEvent(ctx context.Context, id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("get event %s: %w", id, err)
	}
	return ev, nil
}

// EventsByLocation returns the newest events whose location contains loc,
// case-insensitively. limit <= 0 means no limit.
// Thread-safe: acquires read lock.
func (s *Store) EventsByLocation(ctx context.Context, loc string, limit int) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE location LIKE ? ESCAPE '\'
		ORDER BY timestamp DESC, id ASC
		LIMIT ?
	`, "%"+escapeLike(loc)+"%", limit)
}

// EventsBetween returns events whose timestamp lies in [start, end], oldest first.
// Thread-safe: acquires read lock.
func (s *Store) EventsBetween(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC
	`, formatTime(start), formatTime(end))
}

// CountEvents returns the number of stored events.
// Thread-safe: acquires read lock.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// queryEvents executes a query and scans results into Events.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (model.Event, error) {
	var (
		ev                                model.Event
		kind, ts, label, created, updated string
		summary, entities, sources, tags  sql.NullString
		links                             sql.NullString
	)
	if err := sc.Scan(&ev.ID, &kind, &ts, &ev.Location, &summary, &entities, &sources,
		&ev.Confidence, &label, &tags, &links, &created, &updated); err != nil {
		return model.Event{}, err
	}
	ev.Kind = model.EventKind(kind)
	ev.ConfidenceLabel = model.ConfidenceLabel(label)
	ev.Summary = summary.String

	var err error
	if ev.Timestamp, err = parseTime(ts); err != nil {
		return model.Event{}, err
	}
	if ev.CreatedAt, err = parseTime(created); err != nil {
		return model.Event{}, err
	}
	if ev.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Event{}, err
	}
	if err := decodeJSON(entities, &ev.Entities); err != nil {
		return model.Event{}, err
	}
	if err := decodeJSON(sources, &ev.Sources); err != nil {
		return model.Event{}, err
	}
	if err := decodeJSON(tags, &ev.ImpactTags); err != nil {
		return model.Event{}, err
	}
	if err := decodeJSON(links, &ev.EvidenceLinks); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
