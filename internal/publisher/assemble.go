// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package publisher orchestrates article publication: it resolves taxonomy
// and media against the remote CMS, assembles the publish document and
// dispatches the durable delivery job.
package publisher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/newsroomkit/publisher/internal/config"
	"github.com/newsroomkit/publisher/internal/markdown"
	"github.com/newsroomkit/publisher/internal/model"
	"github.com/newsroomkit/publisher/internal/util"
)

// ErrInvalidDocument indicates the draft/request pair cannot produce a
// valid publish document.
var ErrInvalidDocument = errors.New("publisher: invalid document")

// sanitizer strips unsafe markup from outbound content. The UGC policy
// keeps the formatting tags the remote CMS renders.
var sanitizer = bluemonday.UGCPolicy()

// PublicationRequest is the ephemeral per-call publish input.
type PublicationRequest struct {
	DraftID       int64
	RemotePostID  int64 // non-zero selects edit intent
	SelectedTitle string
	Categories    []string
	Tags          []string
	Content       *string // optional content override, written back to the draft
}

// Intent derives the publication intent from the request.
func (r PublicationRequest) Intent() model.Intent {
	if r.RemotePostID > 0 {
		return model.EditIntent(r.RemotePostID)
	}
	return model.CreateIntent()
}

// Title returns the effective title: the request's selection overrides the
// draft's stored title.
func (r PublicationRequest) Title(draft model.Draft) string {
	if t := strings.TrimSpace(r.SelectedTitle); t != "" {
		return t
	}
	return strings.TrimSpace(draft.Title)
}

// Assemble merges the draft, request, resolved taxonomy and resolved media
// into the publish document. It is a pure transformation: no I/O happens
// here. contentChanged reports that the request carried a content override
// which the caller must persist back onto the draft before dispatching.
//
// On edit intent the author is omitted so the remote side preserves the
// original authorship; on create it is the publishing identity's author ID.
func Assemble(draft model.Draft, req PublicationRequest, tax model.ResolvedTaxonomy,
	mediaID int64, intent model.Intent, identity config.PublishingIdentity,
) (model.PublishDocument, bool, error) {
	title := req.Title(draft)
	if title == "" {
		return model.PublishDocument{}, false, fmt.Errorf("%w: title is required", ErrInvalidDocument)
	}

	content := draft.Content
	contentChanged := false
	if req.Content != nil {
		content = *req.Content
		contentChanged = true
	}

	if draft.ContentFormat == model.FormatMarkdown {
		rendered, err := markdown.Render(content)
		if err != nil {
			return model.PublishDocument{}, false, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		content = rendered
	}
	content = sanitizer.Sanitize(content)

	doc := model.PublishDocument{
		Title:         title,
		Content:       content,
		Slug:          util.Slugify(title),
		Status:        model.PostStatusPublish,
		Categories:    dedup(tax.Categories),
		Tags:          dedup(tax.Tags),
		FeaturedMedia: mediaID,
		Meta:          model.DocumentMeta{DraftID: draft.ID},
	}
	if !intent.IsEdit() {
		doc.Author = identity.AuthorID
	}

	return doc, contentChanged, nil
}

// dedup removes duplicate IDs while preserving first-occurrence order and
// normalizes nil to an empty list so the wire form is always an array.
func dedup(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
