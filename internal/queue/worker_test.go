// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newsroomkit/publisher/internal/model"
	"github.com/newsroomkit/publisher/internal/store"
	"github.com/newsroomkit/publisher/internal/testutil"
)

func newTestPool(t *testing.T) (*WorkerPool, *store.Queries) {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	queries := store.New(db)
	pool := NewWorkerPool(queries, testutil.TestLoggerSilent(), make(chan struct{}, 1), DefaultConfig())
	return pool, queries
}

func createDraftAndJob(t *testing.T, queries *store.Queries, publishURL string, remotePostID int64) (model.Draft, model.PublishJob) {
	t.Helper()
	ctx := context.Background()
	draft, err := queries.CreateDraft(ctx, store.CreateDraftParams{
		Title:   "Worker Draft",
		Content: "<p>body</p>",
	})
	require.NoError(t, err)

	doc := model.PublishDocument{
		Title:      "Worker Draft",
		Content:    "<p>body</p>",
		Status:     model.PostStatusPublish,
		Categories: []int64{},
		Tags:       []int64{},
		Meta:       model.DocumentMeta{DraftID: draft.ID},
	}
	payload, err := doc.Encode()
	require.NoError(t, err)

	job, err := queries.CreatePublishJob(ctx, store.CreatePublishJobParams{
		CorrelationID: "corr-" + time.Now().Format("150405.000000000"),
		DraftID:       draft.ID,
		RemotePostID:  remotePostID,
		Document:      string(payload),
		PublishURL:    publishURL,
		Token:         "tok",
	})
	require.NoError(t, err)
	return draft, job
}

func claim(t *testing.T, queries *store.Queries) model.PublishJob {
	t.Helper()
	job, err := queries.ClaimQueuedJob(context.Background(), LeaseDuration)
	require.NoError(t, err)
	return job
}

func remoteCMS(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int64
		want    time.Duration
	}{
		{1, 1 * time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{4, 8 * time.Minute},
		{10, MaxBackoff},
		{0, 1 * time.Minute},
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestProcessSuccessRecordsRemotePostID(t *testing.T) {
	srv, hits := remoteCMS(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		var doc model.PublishDocument
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		require.Equal(t, model.PostStatusPublish, doc.Status)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 555})
	})

	pool, queries := newTestPool(t)
	draft, _ := createDraftAndJob(t, queries, srv.URL, 0)
	claimed := claim(t, queries)
	pool.process(context.Background(), &claimed)

	got, err := queries.GetPublishJob(context.Background(), claimed.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusDelivered, got.Status)
	require.EqualValues(t, http.StatusCreated, got.ResponseCode.Int64)
	require.EqualValues(t, 1, hits.Load())

	updatedDraft, err := queries.GetDraft(context.Background(), draft.ID)
	require.NoError(t, err)
	require.True(t, updatedDraft.IsPublished())
	require.EqualValues(t, 555, updatedDraft.WPPostID.Int64)
}

func TestProcessRetryableFailureSchedulesRetry(t *testing.T) {
	srv, _ := remoteCMS(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	pool, queries := newTestPool(t)
	draft, _ := createDraftAndJob(t, queries, srv.URL, 0)
	claimed := claim(t, queries)
	pool.process(context.Background(), &claimed)

	got, err := queries.GetPublishJob(context.Background(), claimed.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusQueued, got.Status)
	require.EqualValues(t, 1, got.Attempts)
	require.True(t, got.NextRetryAt.Valid)
	require.True(t, got.NextRetryAt.Time.After(time.Now()), "retry must be in the future")
	require.EqualValues(t, http.StatusServiceUnavailable, got.ResponseCode.Int64)

	// The draft remains unpublished.
	d, err := queries.GetDraft(context.Background(), draft.ID)
	require.NoError(t, err)
	require.False(t, d.IsPublished())
}

func TestProcessPermanentFailureBuriesJob(t *testing.T) {
	srv, _ := remoteCMS(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"rest_invalid_param","message":"Invalid parameter: title"}`))
	})

	pool, queries := newTestPool(t)
	createDraftAndJob(t, queries, srv.URL, 0)
	claimed := claim(t, queries)
	pool.process(context.Background(), &claimed)

	got, err := queries.GetPublishJob(context.Background(), claimed.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusDead, got.Status)
	require.Contains(t, got.LastError.String, "HTTP 400")
}

func TestProcessExhaustedAttemptsBuriesJob(t *testing.T) {
	srv, _ := remoteCMS(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	pool, queries := newTestPool(t)
	createDraftAndJob(t, queries, srv.URL, 0)
	ctx := context.Background()

	// Walk the job through all retryable attempts.
	for i := int64(1); i <= MaxAttempts; i++ {
		claimed := claim(t, queries)
		pool.process(ctx, &claimed)

		got, err := queries.GetPublishJob(ctx, claimed.ID)
		require.NoError(t, err)
		if i < MaxAttempts {
			require.Equal(t, model.JobStatusQueued, got.Status, "attempt %d", i)
			require.EqualValues(t, i, got.Attempts)
			// Make the next attempt due immediately.
			require.NoError(t, queries.ScheduleJobRetry(ctx, store.ScheduleJobRetryParams{
				ID:          got.ID,
				Attempts:    got.Attempts,
				NextRetryAt: time.Now().Add(-time.Second),
				LastError:   got.LastError.String,
			}))
		} else {
			require.Equal(t, model.JobStatusDead, got.Status)
			require.EqualValues(t, MaxAttempts, got.Attempts)
		}
	}
}

func TestProcessCreateNoopWhenAlreadyPublished(t *testing.T) {
	srv, hits := remoteCMS(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 999}`))
	})

	pool, queries := newTestPool(t)
	draft, _ := createDraftAndJob(t, queries, srv.URL, 0)
	ctx := context.Background()

	// The draft was already published by an earlier delivery.
	require.NoError(t, queries.SetDraftRemotePostID(ctx, draft.ID, 101))

	claimed := claim(t, queries)
	pool.process(ctx, &claimed)

	got, err := queries.GetPublishJob(ctx, claimed.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusDelivered, got.Status)
	require.Zero(t, hits.Load(), "no remote call may be made for an already-published create")

	// The recorded remote post ID is untouched.
	d, err := queries.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	require.EqualValues(t, 101, d.WPPostID.Int64)
}

func TestProcessEditDeliversToPostURL(t *testing.T) {
	srv, hits := remoteCMS(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wp-json/wp/v2/posts/101", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id": 101}`))
	})

	pool, queries := newTestPool(t)
	draft, _ := createDraftAndJob(t, queries, srv.URL+"/wp-json/wp/v2/posts/101", 101)
	ctx := context.Background()
	require.NoError(t, queries.SetDraftRemotePostID(ctx, draft.ID, 101))

	claimed := claim(t, queries)
	pool.process(ctx, &claimed)

	got, err := queries.GetPublishJob(ctx, claimed.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusDelivered, got.Status)
	require.EqualValues(t, 1, hits.Load(), "edit intent always delivers")
}

func TestProcessRemotePostIDConflictBuriesJob(t *testing.T) {
	// Edit delivery reports a different post ID than the draft has recorded.
	srv, _ := remoteCMS(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id": 999}`))
	})

	pool, queries := newTestPool(t)
	draft, _ := createDraftAndJob(t, queries, srv.URL, 101)
	ctx := context.Background()
	require.NoError(t, queries.SetDraftRemotePostID(ctx, draft.ID, 101))

	claimed := claim(t, queries)
	pool.process(ctx, &claimed)

	got, err := queries.GetPublishJob(ctx, claimed.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusDead, got.Status)
	require.Contains(t, got.LastError.String, "conflict")

	// The recorded ID is never overwritten.
	d, err := queries.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	require.EqualValues(t, 101, d.WPPostID.Int64)
}

func TestDispatchCreatesDurableJob(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	queries := store.New(db)
	ctx := context.Background()

	draft, err := queries.CreateDraft(ctx, store.CreateDraftParams{Title: "d", Content: "c"})
	require.NoError(t, err)

	wake := make(chan struct{}, 1)
	d := NewDispatcher(queries, testutil.TestLoggerSilent(), wake)

	doc := model.PublishDocument{Title: "d", Status: model.PostStatusPublish, Categories: []int64{}, Tags: []int64{}}
	handle, err := d.Dispatch(ctx, doc, model.DeliveryOptions{
		PublishURL: "https://news.example.com/wp-json/wp/v2/posts",
		Token:      "tok",
		DraftID:    draft.ID,
		Intent:     model.CreateIntent(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, handle.CorrelationID)
	require.Equal(t, draft.ID, handle.DraftID)

	// The dispatch nudged the workers.
	select {
	case <-wake:
	default:
		t.Error("dispatch did not signal the wake channel")
	}

	job, err := queries.GetPublishJobByCorrelationID(ctx, handle.CorrelationID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusQueued, job.Status)
	require.Zero(t, job.Attempts)

	stored, err := model.DecodeDocument([]byte(job.Document))
	require.NoError(t, err)
	require.Equal(t, "d", stored.Title)
}

func TestWorkerPoolDeliversDispatchedJob(t *testing.T) {
	srv, _ := remoteCMS(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 777}`))
	})

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	queries := store.New(db)
	ctx := context.Background()

	draft, err := queries.CreateDraft(ctx, store.CreateDraftParams{Title: "d", Content: "c"})
	require.NoError(t, err)

	wake := make(chan struct{}, 1)
	dispatcher := NewDispatcher(queries, testutil.TestLoggerSilent(), wake)
	pool := NewWorkerPool(queries, testutil.TestLoggerSilent(), wake, Config{Workers: 1})
	pool.Start(ctx)
	defer pool.Stop()

	doc := model.PublishDocument{Title: "d", Status: model.PostStatusPublish, Categories: []int64{}, Tags: []int64{}}
	handle, err := dispatcher.Dispatch(ctx, doc, model.DeliveryOptions{
		PublishURL: srv.URL,
		Token:      "tok",
		DraftID:    draft.ID,
		Intent:     model.CreateIntent(),
	})
	require.NoError(t, err)

	// Wait for the pool to pick the job up and deliver it.
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := queries.GetPublishJobByCorrelationID(ctx, handle.CorrelationID)
		require.NoError(t, err)
		if job.Terminal() {
			require.Equal(t, model.JobStatusDelivered, job.Status)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job not delivered in time, status %s", job.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	d, err := queries.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	require.EqualValues(t, 777, d.WPPostID.Int64)
}
