// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application.
package model

import (
	"database/sql"
	"time"
)

// Draft content formats
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// Draft is a locally authored unit of content. The orchestrator reads it and
// writes back only the content field (on edit overrides) and the remote post
// ID (on publish success).
type Draft struct {
	ID               int64
	Title            string
	Content          string
	ContentFormat    string
	Description      string
	FeaturedImageURL string
	SEOMetadata      string // opaque JSON key/value mapping
	WPPostID         sql.NullInt64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsPublished reports whether the draft has been published to the remote CMS.
func (d *Draft) IsPublished() bool {
	return d.WPPostID.Valid && d.WPPostID.Int64 > 0
}

// SEOValues parses the opaque SEO metadata JSON into a map.
// Returns an empty map for empty or malformed metadata.
func (d *Draft) SEOValues() map[string]string {
	return parseJSONMap(d.SEOMetadata)
}
