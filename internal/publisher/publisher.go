// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/newsroomkit/publisher/internal/config"
	"github.com/newsroomkit/publisher/internal/media"
	"github.com/newsroomkit/publisher/internal/model"
	"github.com/newsroomkit/publisher/internal/queue"
	"github.com/newsroomkit/publisher/internal/store"
	"github.com/newsroomkit/publisher/internal/taxonomy"
	"github.com/newsroomkit/publisher/internal/wordpress"
)

// ErrDraftNotFound indicates the request references a draft that does not
// exist locally.
var ErrDraftNotFound = errors.New("publisher: draft not found")

// Publisher ties the pipeline together: draft lookup, taxonomy and media
// resolution, document assembly and durable dispatch.
type Publisher struct {
	queries    *store.Queries
	taxonomy   *taxonomy.Resolver
	media      *media.Resolver
	dispatcher *queue.Dispatcher
	wp         *wordpress.Client
	identity   config.PublishingIdentity
	logger     *slog.Logger
}

// New creates a publisher.
func New(queries *store.Queries, tax *taxonomy.Resolver, med *media.Resolver,
	dispatcher *queue.Dispatcher, wp *wordpress.Client,
	identity config.PublishingIdentity, logger *slog.Logger,
) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		queries:    queries,
		taxonomy:   tax,
		media:      med,
		dispatcher: dispatcher,
		wp:         wp,
		identity:   identity,
		logger:     logger,
	}
}

// Publish runs the synchronous half of the pipeline and enqueues the
// delivery job. It returns as soon as the job is durable; the remote write
// happens in the worker pool. Taxonomy and media resolve concurrently
// since neither depends on the other.
func (p *Publisher) Publish(ctx context.Context, req PublicationRequest) (model.JobHandle, error) {
	draft, err := p.lookupDraft(ctx, req)
	if err != nil {
		return model.JobHandle{}, err
	}
	req.DraftID = draft.ID
	intent := req.Intent()

	// Validate before any remote call so a title-less request costs nothing.
	if req.Title(draft) == "" {
		return model.JobHandle{}, fmt.Errorf("%w: title is required", ErrInvalidDocument)
	}

	var (
		tax     model.ResolvedTaxonomy
		mediaID int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tax = p.taxonomy.Resolve(gctx, req.Categories, req.Tags)
		return nil
	})
	g.Go(func() error {
		mediaID, _ = p.media.Resolve(gctx, draft.FeaturedImageURL, req.Title(draft))
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.JobHandle{}, err
	}

	doc, contentChanged, err := Assemble(draft, req, tax, mediaID, intent, p.identity)
	if err != nil {
		return model.JobHandle{}, err
	}

	if contentChanged {
		if err := p.queries.UpdateDraftContent(ctx, draft.ID, *req.Content); err != nil {
			return model.JobHandle{}, fmt.Errorf("persisting content override: %w", err)
		}
	}

	handle, err := p.dispatcher.Dispatch(ctx, doc, model.DeliveryOptions{
		PublishURL: p.publishURL(intent),
		Token:      p.identity.Token,
		DraftID:    draft.ID,
		Intent:     intent,
	})
	if err != nil {
		return model.JobHandle{}, err
	}

	p.logger.Info("publication accepted",
		"category", model.EventCategoryPublish,
		"job_id", handle.CorrelationID,
		"draft_id", draft.ID,
		"intent", intent.String())
	return handle, nil
}

// lookupDraft resolves the request to a local draft. Edit requests address
// the draft through the remote post ID it was published as; create requests
// address it directly.
func (p *Publisher) lookupDraft(ctx context.Context, req PublicationRequest) (model.Draft, error) {
	var (
		draft model.Draft
		err   error
	)
	if req.RemotePostID > 0 {
		draft, err = p.queries.GetDraftByRemotePostID(ctx, req.RemotePostID)
	} else {
		draft, err = p.queries.GetDraft(ctx, req.DraftID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return model.Draft{}, ErrDraftNotFound
	}
	if err != nil {
		return model.Draft{}, fmt.Errorf("loading draft: %w", err)
	}
	return draft, nil
}

func (p *Publisher) publishURL(intent model.Intent) string {
	if id, ok := intent.RemotePostID(); ok {
		return p.wp.PostURL(id)
	}
	return p.wp.PostsURL()
}
