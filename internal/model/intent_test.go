// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"strings"
	"testing"
)

func TestIntent(t *testing.T) {
	create := CreateIntent()
	if create.IsEdit() {
		t.Error("CreateIntent().IsEdit() = true")
	}
	if _, ok := create.RemotePostID(); ok {
		t.Error("CreateIntent() carries a remote post ID")
	}
	if create.String() != "create" {
		t.Errorf("CreateIntent().String() = %q", create.String())
	}

	edit := EditIntent(42)
	if !edit.IsEdit() {
		t.Error("EditIntent(42).IsEdit() = false")
	}
	id, ok := edit.RemotePostID()
	if !ok || id != 42 {
		t.Errorf("EditIntent(42).RemotePostID() = %d, %v", id, ok)
	}
	if edit.String() != "edit(42)" {
		t.Errorf("EditIntent(42).String() = %q", edit.String())
	}
}

func TestIntentZeroValueIsCreate(t *testing.T) {
	var i Intent
	if i.IsEdit() {
		t.Error("zero Intent must be a create intent")
	}
}

func TestJobIntent(t *testing.T) {
	createJob := PublishJob{DraftID: 1}
	if createJob.Intent().IsEdit() {
		t.Error("job without remote post ID must carry create intent")
	}

	editJob := PublishJob{DraftID: 1, RemotePostID: 99}
	id, ok := editJob.Intent().RemotePostID()
	if !ok || id != 99 {
		t.Errorf("edit job intent = %d, %v", id, ok)
	}
}

func TestJobTerminal(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
	}{
		{JobStatusQueued, false},
		{JobStatusInFlight, false},
		{JobStatusDelivered, true},
		{JobStatusDead, true},
	}
	for _, tt := range tests {
		j := PublishJob{Status: tt.status}
		if j.Terminal() != tt.terminal {
			t.Errorf("Terminal() with status %q = %v, want %v", tt.status, j.Terminal(), tt.terminal)
		}
	}
}

func TestDocumentEncodeDecode(t *testing.T) {
	doc := PublishDocument{
		Title:      "A Story",
		Content:    "<p>body</p>",
		Slug:       "a-story",
		Status:     PostStatusPublish,
		Categories: []int64{1, 2},
		Tags:       []int64{3},
		Author:     7,
		Meta:       DocumentMeta{DraftID: 11},
	}

	data, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeDocument(data)
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if got.Title != doc.Title || got.Slug != doc.Slug || got.Author != doc.Author ||
		got.Meta.DraftID != doc.Meta.DraftID || len(got.Categories) != 2 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestDocumentEncodeOmitsZeroAuthorAndMedia(t *testing.T) {
	doc := PublishDocument{
		Title:      "Edit",
		Status:     PostStatusPublish,
		Categories: []int64{},
		Tags:       []int64{},
	}
	data, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(data)
	for _, forbidden := range []string{`"author"`, `"featured_media"`} {
		if strings.Contains(s, forbidden) {
			t.Errorf("encoded edit document must omit %s: %s", forbidden, s)
		}
	}
	// ID lists stay arrays even when empty
	if !strings.Contains(s, `"categories":[]`) || !strings.Contains(s, `"tags":[]`) {
		t.Errorf("encoded document must carry empty arrays: %s", s)
	}
}

func TestDraftIsPublished(t *testing.T) {
	var d Draft
	if d.IsPublished() {
		t.Error("fresh draft reports published")
	}
	d.WPPostID.Int64 = 5
	d.WPPostID.Valid = true
	if !d.IsPublished() {
		t.Error("draft with remote post ID reports unpublished")
	}
}
