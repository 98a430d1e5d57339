// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package queue implements the durable publish job queue: dispatching,
// lease-based claiming and the worker pool that delivers documents to the
// remote CMS.
package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/newsroomkit/publisher/internal/model"
	"github.com/newsroomkit/publisher/internal/store"
)

// Dispatcher enqueues publish jobs. Jobs are durable rows: a process
// restart loses nothing, workers pick queued jobs back up.
type Dispatcher struct {
	queries *store.Queries
	logger  *slog.Logger
	wake    chan struct{}
}

// NewDispatcher creates a dispatcher. The wake channel nudges the worker
// pool; pass the same channel to NewWorkerPool.
func NewDispatcher(queries *store.Queries, logger *slog.Logger, wake chan struct{}) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{queries: queries, logger: logger, wake: wake}
}

// Dispatch persists an immutable publish job and returns immediately with
// a handle the caller can use to look up the eventual outcome. The actual
// remote write happens out-of-band in the worker pool.
func (d *Dispatcher) Dispatch(ctx context.Context, doc model.PublishDocument, opts model.DeliveryOptions) (model.JobHandle, error) {
	payload, err := doc.Encode()
	if err != nil {
		return model.JobHandle{}, fmt.Errorf("encoding document: %w", err)
	}

	remotePostID, _ := opts.Intent.RemotePostID()
	job, err := d.queries.CreatePublishJob(ctx, store.CreatePublishJobParams{
		CorrelationID: uuid.NewString(),
		DraftID:       opts.DraftID,
		RemotePostID:  remotePostID,
		Document:      string(payload),
		PublishURL:    opts.PublishURL,
		Token:         opts.Token,
	})
	if err != nil {
		return model.JobHandle{}, fmt.Errorf("enqueueing publish job: %w", err)
	}

	d.logger.Info("publish job dispatched",
		"category", model.EventCategoryQueue,
		"job_id", job.CorrelationID,
		"draft_id", opts.DraftID,
		"intent", opts.Intent.String())

	// Nudge the workers; a full channel means they are already awake.
	if d.wake != nil {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}

	return model.JobHandle{CorrelationID: job.CorrelationID, DraftID: opts.DraftID}, nil
}
