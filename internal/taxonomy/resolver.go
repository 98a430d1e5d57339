// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package taxonomy resolves user-chosen tag and category labels to remote
// CMS term IDs, creating missing tags on demand.
package taxonomy

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/newsroomkit/publisher/internal/cache"
	"github.com/newsroomkit/publisher/internal/model"
	"github.com/newsroomkit/publisher/internal/store"
	"github.com/newsroomkit/publisher/internal/wordpress"
)

// tagCacheTTL bounds staleness of remotely resolved tag IDs. Tags are never
// renamed by this pipeline, so a generous TTL is safe.
const tagCacheTTL = 12 * time.Hour

// Resolver maps labels to remote taxonomy IDs. Categories are a pure lookup
// against the pre-synced local mapping; tags are found or created remotely.
type Resolver struct {
	queries *store.Queries
	wp      *wordpress.Client
	cache   cache.Cache
	logger  *slog.Logger
}

// NewResolver creates a taxonomy resolver.
func NewResolver(queries *store.Queries, wp *wordpress.Client, c cache.Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{queries: queries, wp: wp, cache: c, logger: logger}
}

// Resolve maps the selected category and tag labels to remote IDs. A label
// that fails to resolve is omitted from the result, never aborting the
// publish; each omission is logged for operator visibility. Result order
// matches input order and IDs are deduplicated.
func (r *Resolver) Resolve(ctx context.Context, categoryLabels, tagLabels []string) model.ResolvedTaxonomy {
	return model.ResolvedTaxonomy{
		Categories: r.resolveCategories(ctx, categoryLabels),
		Tags:       r.resolveTags(ctx, tagLabels),
	}
}

// resolveCategories looks labels up in the local mapping. Unknown labels
// are dropped, not created: category creation belongs to the sync job.
func (r *Resolver) resolveCategories(ctx context.Context, labels []string) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		id, err := r.queries.GetCategoryIDByLabel(ctx, label)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				r.logger.Warn("category label not mapped, dropping from publish",
					"category", model.EventCategoryTaxonomy, "label", label)
			} else {
				r.logger.Warn("category lookup failed, dropping from publish",
					"category", model.EventCategoryTaxonomy, "label", label, "error", err)
			}
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// resolveTags finds or creates each tag remotely. The find-or-create is
// idempotent under concurrent invocation: a duplicate-term rejection from
// the remote is treated as success and the existing ID is used.
func (r *Resolver) resolveTags(ctx context.Context, labels []string) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		id, err := r.resolveTag(ctx, label)
		if err != nil {
			r.logger.Warn("tag resolution failed, dropping from publish",
				"category", model.EventCategoryTaxonomy, "label", label, "error", err)
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Resolver) resolveTag(ctx context.Context, label string) (int64, error) {
	key := tagCacheKey(label)
	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, key); err == nil {
			if id, err := strconv.ParseInt(string(cached), 10, 64); err == nil && id > 0 {
				return id, nil
			}
		}
	}

	id, found, err := r.wp.FindTag(ctx, label)
	if err != nil {
		return 0, err
	}
	if !found {
		// Create may race with a concurrent publish selecting the same new
		// label; CreateTag resolves the remote's duplicate rejection to the
		// existing ID.
		id, err = r.wp.CreateTag(ctx, label)
		if err != nil {
			return 0, err
		}
		r.logger.Info("created remote tag",
			"category", model.EventCategoryTaxonomy, "label", label, "tag_id", id)
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, key, []byte(strconv.FormatInt(id, 10)), tagCacheTTL)
	}
	return id, nil
}

// tagCacheKey normalizes a label for cache lookups. Matching is
// case-insensitive, so the key is too.
func tagCacheKey(label string) string {
	return "tag:" + strings.ToLower(label)
}
