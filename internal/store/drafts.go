// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/newsroomkit/publisher/internal/model"
)

const draftColumns = `id, title, content, content_format, description,
	featured_image_url, seo_metadata, wp_post_id, created_at, updated_at`

func scanDraft(row *sql.Row) (model.Draft, error) {
	var d model.Draft
	err := row.Scan(&d.ID, &d.Title, &d.Content, &d.ContentFormat, &d.Description,
		&d.FeaturedImageURL, &d.SEOMetadata, &d.WPPostID, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Draft{}, ErrNotFound
	}
	return d, err
}

// GetDraft returns the draft with the given ID.
func (q *Queries) GetDraft(ctx context.Context, id int64) (model.Draft, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	return scanDraft(row)
}

// GetDraftByRemotePostID returns the draft previously published as the given
// remote post.
func (q *Queries) GetDraftByRemotePostID(ctx context.Context, wpPostID int64) (model.Draft, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE wp_post_id = ?`, wpPostID)
	return scanDraft(row)
}

// CreateDraftParams holds the fields for creating a draft.
type CreateDraftParams struct {
	Title            string
	Content          string
	ContentFormat    string
	Description      string
	FeaturedImageURL string
	SEOMetadata      string
}

// CreateDraft inserts a new draft and returns it.
func (q *Queries) CreateDraft(ctx context.Context, arg CreateDraftParams) (model.Draft, error) {
	if arg.ContentFormat == "" {
		arg.ContentFormat = model.FormatHTML
	}
	if arg.SEOMetadata == "" {
		arg.SEOMetadata = "{}"
	}
	now := time.Now()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO drafts (title, content, content_format, description,
			featured_image_url, seo_metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Title, arg.Content, arg.ContentFormat, arg.Description,
		arg.FeaturedImageURL, arg.SEOMetadata, now, now)
	if err != nil {
		return model.Draft{}, fmt.Errorf("inserting draft: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Draft{}, err
	}
	return q.GetDraft(ctx, id)
}

// UpdateDraftContent writes an edited content body back onto the draft.
// Last-writer-wins is acceptable for the content field.
func (q *Queries) UpdateDraftContent(ctx context.Context, id int64, content string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE drafts SET content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now(), id)
	if err != nil {
		return fmt.Errorf("updating draft content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDraftRemotePostID records the remote post ID assigned on publish
// success. The update is guarded: once set, the ID may be re-confirmed with
// the same value but never overwritten with a different one. A differing
// existing value returns ErrRemotePostIDConflict.
func (q *Queries) SetDraftRemotePostID(ctx context.Context, id, wpPostID int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE drafts SET wp_post_id = ?, updated_at = ?
		WHERE id = ? AND (wp_post_id IS NULL OR wp_post_id = ?)`,
		wpPostID, time.Now(), id, wpPostID)
	if err != nil {
		return fmt.Errorf("setting draft remote post id: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Distinguish a missing draft from a conflicting remote post ID.
	if _, err := q.GetDraft(ctx, id); err != nil {
		return err
	}
	return ErrRemotePostIDConflict
}
