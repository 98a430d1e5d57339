// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package taxonomy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newsroomkit/publisher/internal/cache"
	"github.com/newsroomkit/publisher/internal/store"
	"github.com/newsroomkit/publisher/internal/testutil"
	"github.com/newsroomkit/publisher/internal/wordpress"
)

// fakeCMS is a minimal remote taxonomy endpoint with find-or-create
// semantics and duplicate detection.
type fakeCMS struct {
	tags       map[string]int64
	nextID     int64
	createHits atomic.Int64
	searchHits atomic.Int64
}

func newFakeCMS() *fakeCMS {
	return &fakeCMS{tags: map[string]int64{}, nextID: 100}
}

func (f *fakeCMS) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wp/v2/tags", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			f.searchHits.Add(1)
			search := strings.ToLower(r.URL.Query().Get("search"))
			var out []map[string]any
			for name, id := range f.tags {
				if strings.Contains(strings.ToLower(name), search) {
					out = append(out, map[string]any{"id": id, "name": name})
				}
			}
			if out == nil {
				out = []map[string]any{}
			}
			_ = json.NewEncoder(w).Encode(out)
		case http.MethodPost:
			f.createHits.Add(1)
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			name := body["name"]
			for existing, id := range f.tags {
				if strings.EqualFold(existing, name) {
					w.WriteHeader(http.StatusBadRequest)
					_ = json.NewEncoder(w).Encode(map[string]any{
						"code":    "term_exists",
						"message": "A term with the name provided already exists.",
						"data":    map[string]any{"status": 400, "term_id": id},
					})
					return
				}
			}
			f.nextID++
			f.tags[name] = f.nextID
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": f.nextID, "name": name})
		}
	})
	return mux
}

func newTestResolver(t *testing.T, cms *fakeCMS) (*Resolver, *store.Queries) {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	queries := store.New(db)

	srv := httptest.NewServer(cms.handler())
	t.Cleanup(srv.Close)

	wp, err := wordpress.New(wordpress.Config{BaseURL: srv.URL, Token: "t", Logger: testutil.TestLoggerSilent()})
	require.NoError(t, err)

	c := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = c.Close() })

	return NewResolver(queries, wp, c, testutil.TestLoggerSilent()), queries
}

func TestResolveCategories(t *testing.T) {
	r, queries := newTestResolver(t, newFakeCMS())
	ctx := context.Background()

	require.NoError(t, queries.UpsertCategoryMapping(ctx, "Politics", 12))
	require.NoError(t, queries.UpsertCategoryMapping(ctx, "Economy", 13))

	// Unknown labels are dropped, known ones resolve case-insensitively,
	// duplicates collapse, order is preserved.
	tax := r.Resolve(ctx, []string{"politics", "Unknown", "Economy", "POLITICS", " "}, nil)
	require.Equal(t, []int64{12, 13}, tax.Categories)
	require.Empty(t, tax.Tags)
}

func TestResolveTagsFindOrCreate(t *testing.T) {
	cms := newFakeCMS()
	cms.tags["Economy"] = 7
	r, _ := newTestResolver(t, cms)
	ctx := context.Background()

	tax := r.Resolve(ctx, nil, []string{"economy", "Sports"})
	require.Len(t, tax.Tags, 2)
	require.EqualValues(t, 7, tax.Tags[0], "existing tag must resolve to its ID")
	require.Greater(t, tax.Tags[1], int64(100), "new tag must be created remotely")
	require.EqualValues(t, 1, cms.createHits.Load(), "only the missing tag is created")
}

func TestResolveTagsIdempotent(t *testing.T) {
	cms := newFakeCMS()
	r, _ := newTestResolver(t, cms)
	ctx := context.Background()

	first := r.Resolve(ctx, nil, []string{"Breaking"})
	require.Len(t, first.Tags, 1)

	// Second resolution of the same label never creates a second term.
	second := r.Resolve(ctx, nil, []string{"breaking"})
	require.Equal(t, first.Tags, second.Tags)
	require.EqualValues(t, 1, cms.createHits.Load())
}

func TestResolveTagsCached(t *testing.T) {
	cms := newFakeCMS()
	cms.tags["Economy"] = 7
	r, _ := newTestResolver(t, cms)
	ctx := context.Background()

	_ = r.Resolve(ctx, nil, []string{"Economy"})
	searches := cms.searchHits.Load()
	_ = r.Resolve(ctx, nil, []string{"economy"})
	require.Equal(t, searches, cms.searchHits.Load(), "cached tag must not hit the remote again")
}

func TestResolveTagsDuplicateRaceTreatedAsSuccess(t *testing.T) {
	// Simulate the create race: search misses but create reports term_exists.
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wp/v2/tags", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte("[]"))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": "term_exists",
			"data": map[string]any{"term_id": 77},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	wp, err := wordpress.New(wordpress.Config{BaseURL: srv.URL, Token: "t"})
	require.NoError(t, err)
	r := NewResolver(store.New(db), wp, nil, testutil.TestLoggerSilent())

	tax := r.Resolve(context.Background(), nil, []string{"Raced"})
	require.Equal(t, []int64{77}, tax.Tags)
}

func TestResolveTagFailureDropsLabel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wp/v2/tags", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	wp, err := wordpress.New(wordpress.Config{BaseURL: srv.URL, Token: "t"})
	require.NoError(t, err)
	r := NewResolver(store.New(db), wp, nil, testutil.TestLoggerSilent())

	// Resolution failure degrades to an empty list, it never errors out.
	tax := r.Resolve(context.Background(), nil, []string{"Broken"})
	require.Empty(t, tax.Tags)
}
