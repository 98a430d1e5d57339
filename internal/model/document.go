// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "encoding/json"

// PostStatusPublish is the only status this pipeline ever pushes to the
// remote CMS. Drafts are never published in any other state.
const PostStatusPublish = "publish"

// DocumentMeta carries correlation metadata on the outbound document so the
// remote side can be audited against local drafts.
type DocumentMeta struct {
	DraftID int64 `json:"draft_id"`
}

// PublishDocument is the assembled payload sent to the remote CMS.
// Author is omitted on edits so the remote side preserves the original
// authorship; FeaturedMedia is omitted when no image resolved.
type PublishDocument struct {
	Title         string       `json:"title"`
	Content       string       `json:"content"`
	Slug          string       `json:"slug,omitempty"`
	Status        string       `json:"status"`
	Categories    []int64      `json:"categories"`
	Tags          []int64      `json:"tags"`
	FeaturedMedia int64        `json:"featured_media,omitempty"`
	Author        int64        `json:"author,omitempty"`
	Meta          DocumentMeta `json:"meta"`
}

// Encode serializes the document to its wire form.
func (d PublishDocument) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// DecodeDocument deserializes a stored document payload.
func DecodeDocument(data []byte) (PublishDocument, error) {
	var d PublishDocument
	err := json.Unmarshal(data, &d)
	return d, err
}

// ResolvedTaxonomy holds the remote IDs resolved for the selected labels.
// Labels that failed to resolve are absent; order matches the input labels.
type ResolvedTaxonomy struct {
	Categories []int64
	Tags       []int64
}

// parseJSONMap decodes a JSON object into a string map, tolerating empty or
// malformed input.
func parseJSONMap(s string) map[string]string {
	m := make(map[string]string)
	if s == "" || s == "{}" {
		return m
	}
	_ = json.Unmarshal([]byte(s), &m)
	return m
}
