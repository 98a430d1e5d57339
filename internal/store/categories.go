// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CategoryMapping maps a local category label to its remote CMS term ID.
// The mapping is maintained by a separate sync job; the orchestrator only
// reads it.
type CategoryMapping struct {
	ID           int64
	Label        string
	WPCategoryID int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GetCategoryIDByLabel looks up the remote category ID for a label.
// The lookup is case-insensitive. Returns ErrNotFound for unknown labels.
func (q *Queries) GetCategoryIDByLabel(ctx context.Context, label string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx,
		`SELECT wp_category_id FROM category_map WHERE label = ?`, label).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// UpsertCategoryMapping inserts or updates a label-to-remote-ID mapping.
func (q *Queries) UpsertCategoryMapping(ctx context.Context, label string, wpCategoryID int64) error {
	now := time.Now()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO category_map (label, wp_category_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET wp_category_id = excluded.wp_category_id,
			updated_at = excluded.updated_at`,
		label, wpCategoryID, now, now)
	if err != nil {
		return fmt.Errorf("upserting category mapping: %w", err)
	}
	return nil
}

// ListCategoryMappings returns all category mappings ordered by label.
func (q *Queries) ListCategoryMappings(ctx context.Context) ([]CategoryMapping, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, label, wp_category_id, created_at, updated_at
		FROM category_map ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var mappings []CategoryMapping
	for rows.Next() {
		var m CategoryMapping
		if err := rows.Scan(&m.ID, &m.Label, &m.WPCategoryID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}
