package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/intelbrief/internal/model"
)

// SaveBrief stores b.
// Thread-safe: acquires write lock.
func (s *Store) SaveBrief(ctx context.Context, b model.Brief) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cites, err := encodeJSON(b.Citations)
	if err != nil {
		return fmt.Errorf("encode citations: %w", err)
	}
	markers, err := encodeJSON(b.ConfidenceMarkers)
	if err != nil {
		return fmt.Errorf("encode confidence markers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO briefs (
			id, target, target_key, kind, what_changed, why_it_matters,
			what_to_watch, citations, confidence_markers, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Target, targetKey(b.Target), string(b.Kind), b.WhatChanged, b.WhyItMatters,
		b.WhatToWatch, cites, markers, formatTime(b.GeneratedAt))
	if err != nil {
		return fmt.Errorf("save brief %s: %w", b.ID, err)
	}
	return nil
}

// LatestBrief returns the newest brief of the given kind for target, or ErrNotFound.
// Thread-safe: acquires read lock.
func (s *Store) LatestBrief(ctx context.Context, target string, kind model.BriefKind) (model.Brief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		b                   model.Brief
		k, generated        string
		changed, why, watch sql.NullString
		cites, markers      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, target, kind, what_changed, why_it_matters, what_to_watch,
			citations, confidence_markers, generated_at
		FROM briefs
		WHERE target_key = ? AND kind = ?
		ORDER BY generated_at DESC
		LIMIT 1
	`, targetKey(target), string(kind)).Scan(&b.ID, &b.Target, &k, &changed, &why, &watch,
		&cites, &markers, &generated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Brief{}, fmt.Errorf("%s brief for %s: %w", kind, target, ErrNotFound)
	}
	if err != nil {
		return model.Brief{}, fmt.Errorf("latest brief for %s: %w", target, err)
	}

	b.Kind = model.BriefKind(k)
	b.WhatChanged, b.WhyItMatters, b.WhatToWatch = changed.String, why.String, watch.String
	if b.GeneratedAt, err = parseTime(generated); err != nil {
		return model.Brief{}, err
	}
	if err := decodeJSON(cites, &b.Citations); err != nil {
		return model.Brief{}, fmt.Errorf("decode citations: %w", err)
	}
	if err := decodeJSON(markers, &b.ConfidenceMarkers); err != nil {
		return model.Brief{}, fmt.Errorf("decode confidence markers: %w", err)
	}
	return b, nil
}

// SaveCorrelations records the correlated pairs among cs, replacing earlier
// scores for the same pair. Uncorrelated pairs are skipped.
// Returns the number of pairs written.
// Thread-safe: acquires write lock.
func (s *Store) SaveCorrelations(ctx context.Context, cs []model.Correlation, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO event_correlations (event_id, other_id, score, computed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id, other_id) DO UPDATE SET
			score = excluded.score,
			computed_at = excluded.computed_at
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare correlation upsert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, c := range cs {
		if !c.Correlated {
			continue
		}
		if _, err := stmt.ExecContext(ctx, c.EventID, c.OtherID, c.Score, formatTime(now)); err != nil {
			return 0, fmt.Errorf("save correlation %s/%s: %w", c.EventID, c.OtherID, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Correlations returns the stored correlations for eventID, strongest first.
// Thread-safe: acquires read lock.
func (s *Store) Correlations(ctx context.Context, eventID string) ([]model.Correlation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, other_id, score
		FROM event_correlations
		WHERE event_id = ?
		ORDER BY score DESC, other_id ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query correlations: %w", err)
	}
	defer rows.Close()

	var out []model.Correlation
	for rows.Next() {
		c := model.Correlation{Correlated: true}
		if err := rows.Scan(&c.EventID, &c.OtherID, &c.Score); err != nil {
			return nil, fmt.Errorf("scan correlation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
