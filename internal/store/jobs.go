// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/newsroomkit/publisher/internal/model"
)

const jobColumns = `id, correlation_id, draft_id, remote_post_id, document,
	publish_url, token, status, attempts, next_retry_at, lease_expires_at,
	response_code, last_error, delivered_at, created_at, updated_at`

func scanJob(row *sql.Row) (model.PublishJob, error) {
	var j model.PublishJob
	err := row.Scan(&j.ID, &j.CorrelationID, &j.DraftID, &j.RemotePostID,
		&j.Document, &j.PublishURL, &j.Token, &j.Status, &j.Attempts,
		&j.NextRetryAt, &j.LeaseExpiresAt, &j.ResponseCode, &j.LastError,
		&j.DeliveredAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PublishJob{}, ErrNotFound
	}
	return j, err
}

// CreatePublishJobParams holds the fields for enqueuing a publish job.
type CreatePublishJobParams struct {
	CorrelationID string
	DraftID       int64
	RemotePostID  int64
	Document      string
	PublishURL    string
	Token         string
}

// CreatePublishJob inserts a new queued job and returns it.
func (q *Queries) CreatePublishJob(ctx context.Context, arg CreatePublishJobParams) (model.PublishJob, error) {
	now := time.Now()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO publish_jobs (correlation_id, draft_id, remote_post_id,
			document, publish_url, token, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.CorrelationID, arg.DraftID, arg.RemotePostID, arg.Document,
		arg.PublishURL, arg.Token, model.JobStatusQueued, now, now)
	if err != nil {
		return model.PublishJob{}, fmt.Errorf("inserting publish job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.PublishJob{}, err
	}
	return q.GetPublishJob(ctx, id)
}

// GetPublishJob returns the job with the given ID.
func (q *Queries) GetPublishJob(ctx context.Context, id int64) (model.PublishJob, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM publish_jobs WHERE id = ?`, id)
	return scanJob(row)
}

// GetPublishJobByCorrelationID returns the job with the given correlation ID.
func (q *Queries) GetPublishJobByCorrelationID(ctx context.Context, correlationID string) (model.PublishJob, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM publish_jobs WHERE correlation_id = ?`, correlationID)
	return scanJob(row)
}

// ClaimQueuedJob atomically claims the oldest due queued job for exclusive
// processing: the job moves to in_flight with a lease, so no two workers
// ever process the same job concurrently. Returns ErrNotFound when no job
// is due.
func (q *Queries) ClaimQueuedJob(ctx context.Context, lease time.Duration) (model.PublishJob, error) {
	now := time.Now()
	row := q.db.QueryRowContext(ctx,
		`UPDATE publish_jobs
		SET status = ?, lease_expires_at = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM publish_jobs
			WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
			ORDER BY id LIMIT 1
		)
		RETURNING `+jobColumns,
		model.JobStatusInFlight, now.Add(lease), now,
		model.JobStatusQueued, now)
	return scanJob(row)
}

// MarkJobDelivered records a successful delivery.
func (q *Queries) MarkJobDelivered(ctx context.Context, id int64, responseCode int64) error {
	now := time.Now()
	_, err := q.db.ExecContext(ctx,
		`UPDATE publish_jobs
		SET status = ?, response_code = ?, lease_expires_at = NULL,
			delivered_at = ?, updated_at = ?
		WHERE id = ?`,
		model.JobStatusDelivered, responseCode, now, now, id)
	if err != nil {
		return fmt.Errorf("marking job delivered: %w", err)
	}
	return nil
}

// ScheduleJobRetryParams holds the fields for re-queuing a failed attempt.
type ScheduleJobRetryParams struct {
	ID           int64
	Attempts     int64
	NextRetryAt  time.Time
	ResponseCode sql.NullInt64
	LastError    string
}

// ScheduleJobRetry returns a transiently failed job to the queue with a
// retry-after timestamp and an incremented attempt counter.
func (q *Queries) ScheduleJobRetry(ctx context.Context, arg ScheduleJobRetryParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE publish_jobs
		SET status = ?, attempts = ?, next_retry_at = ?, lease_expires_at = NULL,
			response_code = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		model.JobStatusQueued, arg.Attempts, arg.NextRetryAt,
		arg.ResponseCode, arg.LastError, time.Now(), arg.ID)
	if err != nil {
		return fmt.Errorf("scheduling job retry: %w", err)
	}
	return nil
}

// MarkJobDeadParams holds the fields for terminating a job permanently.
type MarkJobDeadParams struct {
	ID           int64
	Attempts     int64
	ResponseCode sql.NullInt64
	LastError    string
}

// MarkJobDead transitions a job to its terminal failed state. Dead jobs are
// never retried automatically; a fresh publish request is required.
func (q *Queries) MarkJobDead(ctx context.Context, arg MarkJobDeadParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE publish_jobs
		SET status = ?, attempts = ?, lease_expires_at = NULL,
			response_code = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		model.JobStatusDead, arg.Attempts, arg.ResponseCode, arg.LastError,
		time.Now(), arg.ID)
	if err != nil {
		return fmt.Errorf("marking job dead: %w", err)
	}
	return nil
}

// ReapExpiredLeases returns in-flight jobs whose lease has expired (worker
// crash) to the queue so another worker can claim them.
func (q *Queries) ReapExpiredLeases(ctx context.Context) (int64, error) {
	now := time.Now()
	res, err := q.db.ExecContext(ctx,
		`UPDATE publish_jobs
		SET status = ?, lease_expires_at = NULL, updated_at = ?
		WHERE status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?`,
		model.JobStatusQueued, now, model.JobStatusInFlight, now)
	if err != nil {
		return 0, fmt.Errorf("reaping expired leases: %w", err)
	}
	return res.RowsAffected()
}

// CountDueJobs counts queued jobs eligible for claiming right now.
func (q *Queries) CountDueJobs(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM publish_jobs
		WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)`,
		model.JobStatusQueued, time.Now()).Scan(&n)
	return n, err
}
