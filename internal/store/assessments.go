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

// SaveAssessment stores a into the assessments table. The historical log is
// written separately through AppendSnapshot.
// Thread-safe: acquires write lock.
func (s *Store) SaveAssessment(ctx context.Context, a model.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := encodeJSON(a.SubScores)
	if err != nil {
		return fmt.Errorf("encode sub-scores: %w", err)
	}
	drivers, err := encodeJSON(a.Drivers)
	if err != nil {
		return fmt.Errorf("encode drivers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessments (
			id, target, target_key, overall, sub_scores,
			delta_7d, delta_30d, delta_90d, drivers, confidence, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			overall = excluded.overall,
			sub_scores = excluded.sub_scores,
			delta_7d = excluded.delta_7d,
			delta_30d = excluded.delta_30d,
			delta_90d = excluded.delta_90d,
			drivers = excluded.drivers,
			confidence = excluded.confidence,
			generated_at = excluded.generated_at
	`, a.ID, a.Target, targetKey(a.Target), a.Overall, subs,
		a.Delta7d, a.Delta30d, a.Delta90d, drivers, a.Confidence, formatTime(a.GeneratedAt))
	if err != nil {
		return fmt.Errorf("save assessment %s: %w", a.ID, err)
	}
	return nil
}

// LatestAssessment returns the most recently generated assessment for target,
// or ErrNotFound.
// Thread-safe: acquires read lock.
func (s *Store) LatestAssessment(ctx context.Context, target string) (model.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		a             model.Assessment
		subs, drivers sql.NullString
		d7, d30, d90  sql.NullFloat64
		generated     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, target, overall, sub_scores, delta_7d, delta_30d, delta_90d,
			drivers, confidence, generated_at
		FROM assessments
		WHERE target_key = ?
		ORDER BY generated_at DESC
		LIMIT 1
	`, targetKey(target)).Scan(&a.ID, &a.Target, &a.Overall, &subs, &d7, &d30, &d90,
		&drivers, &a.Confidence, &generated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Assessment{}, fmt.Errorf("assessment for %s: %w", target, ErrNotFound)
	}
	if err != nil {
		return model.Assessment{}, fmt.Errorf("latest assessment for %s: %w", target, err)
	}

	a.Delta7d, a.Delta30d, a.Delta90d = d7.Float64, d30.Float64, d90.Float64
	if a.GeneratedAt, err = parseTime(generated); err != nil {
		return model.Assessment{}, err
	}
	if err := decodeJSON(subs, &a.SubScores); err != nil {
		return model.Assessment{}, fmt.Errorf("decode sub-scores: %w", err)
	}
	if err := decodeJSON(drivers, &a.Drivers); err != nil {
		return model.Assessment{}, fmt.Errorf("decode drivers: %w", err)
	}
	return a, nil
}

// AppendSnapshot adds a row to the append-only historical log.
// Thread-safe: acquires write lock.
func (s *Store) AppendSnapshot(ctx context.Context, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := encodeJSON(snap.SubScores)
	if err != nil {
		return fmt.Errorf("encode sub-scores: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO historical_assessments (
			assessment_id, target, target_key, overall, sub_scores, generated_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`, snap.AssessmentID, snap.Target, targetKey(snap.Target), snap.Overall, subs,
		formatTime(snap.GeneratedAt))
	if err != nil {
		return fmt.Errorf("append snapshot for %s: %w", snap.Target, err)
	}
	return nil
}

// Snapshots returns the target's historical snapshots generated at or after
// since, oldest first.
// Thread-safe: acquires read lock.
func (s *Store) Snapshots(ctx context.Context, target string, since time.Time) ([]model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT assessment_id, target, overall, sub_scores, generated_at
		FROM historical_assessments
		WHERE target_key = ? AND generated_at >= ?
		ORDER BY generated_at ASC, id ASC
	`, targetKey(target), formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		var (
			snap      model.Snapshot
			subs      sql.NullString
			generated string
		)
		if err := rows.Scan(&snap.AssessmentID, &snap.Target, &snap.Overall, &subs, &generated); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if snap.GeneratedAt, err = parseTime(generated); err != nil {
			return nil, err
		}
		if err := decodeJSON(subs, &snap.SubScores); err != nil {
			return nil, fmt.Errorf("decode sub-scores: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func targetKey(target string) string {
	return strings.ToLower(strings.TrimSpace(target))
}
