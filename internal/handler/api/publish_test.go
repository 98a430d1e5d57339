// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/newsroomkit/publisher/internal/config"
	"github.com/newsroomkit/publisher/internal/media"
	"github.com/newsroomkit/publisher/internal/publisher"
	"github.com/newsroomkit/publisher/internal/queue"
	"github.com/newsroomkit/publisher/internal/store"
	"github.com/newsroomkit/publisher/internal/taxonomy"
	"github.com/newsroomkit/publisher/internal/testutil"
	"github.com/newsroomkit/publisher/internal/wordpress"
)

func newTestRouter(t *testing.T) (chi.Router, *store.Queries) {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	queries := store.New(db)

	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wp/v2/tags", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 200, "name": "t"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	logger := testutil.TestLoggerSilent()
	wp, err := wordpress.New(wordpress.Config{BaseURL: srv.URL, Token: "tok", Logger: logger})
	require.NoError(t, err)

	pub := publisher.New(queries,
		taxonomy.NewResolver(queries, wp, nil, logger),
		media.NewResolver(wp, nil, logger),
		queue.NewDispatcher(queries, logger, nil),
		wp, config.PublishingIdentity{AuthorID: 7, Token: "tok"}, logger)

	h := NewHandler(pub, queries, logger)
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/publish", h.Publish)
		r.Post("/posts/edit", h.EditPost)
		r.Get("/jobs/{id}", h.JobStatus)
	})
	return r, queries
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp), "body: %s", rec.Body.String())
	return rec, resp
}

func TestPublishEndpoint(t *testing.T) {
	r, queries := newTestRouter(t)
	ctx := context.Background()

	draft, err := queries.CreateDraft(ctx, store.CreateDraftParams{Title: "Title", Content: "c"})
	require.NoError(t, err)

	rec, resp := doJSON(t, r, http.MethodPost, "/api/v1/publish",
		`{"draft_id": `+jsonInt(draft.ID)+`, "title": "Headline"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "success", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data: %#v", resp.Data)
	require.EqualValues(t, draft.ID, data["draft_id"])
	require.NotEmpty(t, data["job_id"])

	// The job is durable and queued.
	job, err := queries.GetPublishJobByCorrelationID(ctx, data["job_id"].(string))
	require.NoError(t, err)
	require.Equal(t, draft.ID, job.DraftID)
}

func TestPublishEndpointValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, resp := doJSON(t, r, http.MethodPost, "/api/v1/publish", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "error", resp.Status)

	rec, resp = doJSON(t, r, http.MethodPost, "/api/v1/publish", `{"title": "x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "error", resp.Status)

	rec, resp = doJSON(t, r, http.MethodPost, "/api/v1/publish", `{"draft_id": 99999}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "error", resp.Status)
}

func TestPublishEndpointEmptyTitle(t *testing.T) {
	r, queries := newTestRouter(t)

	draft, err := queries.CreateDraft(context.Background(), store.CreateDraftParams{Title: " ", Content: "c"})
	require.NoError(t, err)

	rec, resp := doJSON(t, r, http.MethodPost, "/api/v1/publish",
		`{"draft_id": `+jsonInt(draft.ID)+`}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "error", resp.Status)
	require.Contains(t, resp.Message, "title")
}

func TestEditEndpoint(t *testing.T) {
	r, queries := newTestRouter(t)
	ctx := context.Background()

	draft, err := queries.CreateDraft(ctx, store.CreateDraftParams{Title: "Title", Content: "c"})
	require.NoError(t, err)
	require.NoError(t, queries.SetDraftRemotePostID(ctx, draft.ID, 101))

	rec, resp := doJSON(t, r, http.MethodPost, "/api/v1/posts/edit", `{"wp_post_id": 101}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "success", resp.Status)

	// Missing wp_post_id is a validation error.
	rec, resp = doJSON(t, r, http.MethodPost, "/api/v1/posts/edit", `{"title": "x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "error", resp.Status)

	// Unknown remote post is not found.
	rec, _ = doJSON(t, r, http.MethodPost, "/api/v1/posts/edit", `{"wp_post_id": 424242}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobStatusEndpoint(t *testing.T) {
	r, queries := newTestRouter(t)
	ctx := context.Background()

	draft, err := queries.CreateDraft(ctx, store.CreateDraftParams{Title: "Title", Content: "c"})
	require.NoError(t, err)

	_, resp := doJSON(t, r, http.MethodPost, "/api/v1/publish",
		`{"draft_id": `+jsonInt(draft.ID)+`}`)
	data := resp.Data.(map[string]any)
	jobID := data["job_id"].(string)

	rec, resp := doJSON(t, r, http.MethodGet, "/api/v1/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", resp.Status)

	status := resp.Data.(map[string]any)
	require.Equal(t, jobID, status["job_id"])
	require.Equal(t, "queued", status["status"])
	require.Equal(t, "create", status["intent"])
	require.EqualValues(t, 0, status["attempts"])

	rec, _ = doJSON(t, r, http.MethodGet, "/api/v1/jobs/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, resp := doJSON(t, r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", resp.Status)
}

func jsonInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
