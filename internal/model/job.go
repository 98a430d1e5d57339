// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Publish job statuses
const (
	JobStatusQueued    = "queued"
	JobStatusInFlight  = "in_flight"
	JobStatusDelivered = "delivered"
	JobStatusDead      = "dead"
)

// PublishJob is the durable unit of async publish work. A job row is never
// mutated in place by callers; each delivery attempt is a fresh evaluation
// of the same immutable document and delivery options.
type PublishJob struct {
	ID             int64
	CorrelationID  string
	DraftID        int64
	RemotePostID   int64 // 0 for create intent
	Document       string
	PublishURL     string
	Token          string
	Status         string
	Attempts       int64
	NextRetryAt    sql.NullTime
	LeaseExpiresAt sql.NullTime
	ResponseCode   sql.NullInt64
	LastError      sql.NullString
	DeliveredAt    sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Intent returns the publication intent encoded in the job.
func (j *PublishJob) Intent() Intent {
	if j.RemotePostID > 0 {
		return EditIntent(j.RemotePostID)
	}
	return CreateIntent()
}

// Terminal reports whether the job has reached a terminal state.
func (j *PublishJob) Terminal() bool {
	return j.Status == JobStatusDelivered || j.Status == JobStatusDead
}

// JobHandle is returned to the caller on dispatch. The eventual outcome is
// observed by polling the job status or the draft's remote post ID.
type JobHandle struct {
	CorrelationID string `json:"job_id"`
	DraftID       int64  `json:"draft_id"`
}

// DeliveryOptions carries where and how the worker delivers a document.
type DeliveryOptions struct {
	PublishURL string
	Token      string
	DraftID    int64
	Intent     Intent
}
