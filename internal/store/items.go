package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abelbrown/intelbrief/internal/model"
)

// SaveRawItems stores items, returning count of new items inserted.
// Items already stored (by ID) are silently ignored via INSERT OR IGNORE.
// Thread-safe: acquires write lock.
func (s *Store) SaveRawItems(ctx context.Context, items []model.RawItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO raw_items (
			id, url, title, content, source_name, tier, language,
			published_at, retrieved_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	newCount := 0
	for _, item := range items {
		var meta string
		if len(item.Metadata) > 0 {
			if meta, err = encodeJSON(item.Metadata); err != nil {
				return 0, fmt.Errorf("encode metadata for %s: %w", item.ID, err)
			}
		}
		result, err := stmt.ExecContext(ctx,
			item.ID,
			item.URL,
			item.Title,
			item.Content,
			item.SourceName,
			string(item.Tier),
			item.Language,
			formatTime(item.Published),
			formatTime(item.Retrieved),
			meta,
		)
		if err != nil {
			return 0, fmt.Errorf("insert item %s: %w", item.ID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		if affected > 0 {
			newCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return newCount, nil
}

// GetRawItemsSince retrieves items retrieved at or after since, oldest first.
// Thread-safe: acquires read lock.
func (s *Store) GetRawItemsSince(ctx context.Context, since time.Time) ([]model.RawItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, content, source_name, tier, language,
			published_at, retrieved_at, metadata
		FROM raw_items
		WHERE retrieved_at >= ?
		ORDER BY retrieved_at ASC, id ASC
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query raw items: %w", err)
	}
	defer rows.Close()

	var items []model.RawItem
	for rows.Next() {
		var (
			item                          model.RawItem
			url, content, lang, pub, meta sql.NullString
			tier, retrieved               string
		)
		if err := rows.Scan(&item.ID, &url, &item.Title, &content, &item.SourceName,
			&tier, &lang, &pub, &retrieved, &meta); err != nil {
			return nil, fmt.Errorf("scan raw item: %w", err)
		}
		item.URL = url.String
		item.Content = content.String
		item.Language = lang.String
		item.Tier = model.Tier(tier)
		if item.Published, err = parseTime(pub.String); err != nil {
			return nil, err
		}
		if item.Retrieved, err = parseTime(retrieved); err != nil {
			return nil, err
		}
		if err := decodeJSON(meta, &item.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", item.ID, err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
