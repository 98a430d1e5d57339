// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/newsroomkit/publisher/internal/publisher"
	"github.com/newsroomkit/publisher/internal/store"
)

// publishRequest is the body of a create publish call.
type publishRequest struct {
	DraftID    int64    `json:"draft_id"`
	Title      string   `json:"title"`
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
	Content    *string  `json:"content"`
}

// editRequest is the body of an edit publish call. The draft is addressed
// through the remote post it was published as.
type editRequest struct {
	WPPostID   int64    `json:"wp_post_id"`
	Title      string   `json:"title"`
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
	Content    *string  `json:"content"`
}

// Publish handles POST /api/v1/publish. It accepts the request, runs the
// synchronous resolution pipeline and enqueues the durable delivery job.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DraftID <= 0 {
		WriteError(w, http.StatusUnprocessableEntity, "draft_id is required")
		return
	}

	handle, err := h.publisher.Publish(r.Context(), publisher.PublicationRequest{
		DraftID:       req.DraftID,
		SelectedTitle: req.Title,
		Categories:    req.Categories,
		Tags:          req.Tags,
		Content:       req.Content,
	})
	if err != nil {
		h.writePublishError(w, err)
		return
	}

	WriteSuccess(w, http.StatusAccepted, "publication queued", handle)
}

// EditPost handles POST /api/v1/posts/edit. Semantics mirror Publish with
// edit intent: the remote post is updated in place and authorship is left
// untouched.
func (h *Handler) EditPost(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.WPPostID <= 0 {
		WriteError(w, http.StatusUnprocessableEntity, "wp_post_id is required")
		return
	}

	handle, err := h.publisher.Publish(r.Context(), publisher.PublicationRequest{
		RemotePostID:  req.WPPostID,
		SelectedTitle: req.Title,
		Categories:    req.Categories,
		Tags:          req.Tags,
		Content:       req.Content,
	})
	if err != nil {
		h.writePublishError(w, err)
		return
	}

	WriteSuccess(w, http.StatusAccepted, "edit queued", handle)
}

// jobStatusResponse is the externally visible view of a publish job.
type jobStatusResponse struct {
	JobID        string     `json:"job_id"`
	DraftID      int64      `json:"draft_id"`
	Intent       string     `json:"intent"`
	Status       string     `json:"status"`
	Attempts     int64      `json:"attempts"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	ResponseCode *int64     `json:"response_code,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	WPPostID     *int64     `json:"wp_post_id,omitempty"`
}

// JobStatus handles GET /api/v1/jobs/{id}. The id is the correlation ID
// returned when the job was queued.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	correlationID := strings.TrimSpace(chi.URLParam(r, "id"))
	if correlationID == "" {
		WriteError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := h.queries.GetPublishJobByCorrelationID(r.Context(), correlationID)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load publish job", "error", err, "job_id", correlationID)
		WriteError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	resp := jobStatusResponse{
		JobID:    job.CorrelationID,
		DraftID:  job.DraftID,
		Intent:   job.Intent().String(),
		Status:   job.Status,
		Attempts: job.Attempts,
	}
	if job.NextRetryAt.Valid {
		resp.NextRetryAt = &job.NextRetryAt.Time
	}
	if job.ResponseCode.Valid {
		resp.ResponseCode = &job.ResponseCode.Int64
	}
	if job.LastError.Valid {
		resp.LastError = job.LastError.String
	}
	if job.DeliveredAt.Valid {
		resp.DeliveredAt = &job.DeliveredAt.Time
	}

	// Surface the assigned remote post ID once the draft carries it.
	if draft, err := h.queries.GetDraft(r.Context(), job.DraftID); err == nil && draft.WPPostID.Valid {
		resp.WPPostID = &draft.WPPostID.Int64
	}

	WriteSuccess(w, http.StatusOK, "", resp)
}

// writePublishError maps pipeline errors to HTTP responses.
func (h *Handler) writePublishError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, publisher.ErrDraftNotFound):
		WriteError(w, http.StatusNotFound, "draft not found")
	case errors.Is(err, publisher.ErrInvalidDocument):
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("publish request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to queue publication")
	}
}
