// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/newsroomkit/publisher/internal/model"
	"github.com/newsroomkit/publisher/internal/store"
	"github.com/newsroomkit/publisher/internal/wordpress"
)

// Delivery configuration constants
const (
	MaxAttempts    = 5                // Maximum number of delivery attempts
	InitialBackoff = 1 * time.Minute  // Initial backoff delay
	MaxBackoff     = 1 * time.Hour    // Maximum backoff delay
	LeaseDuration  = 2 * time.Minute  // Exclusive claim held per attempt
	RequestTimeout = 30 * time.Second // HTTP request timeout
	MaxResponseLen = 10 * 1024        // Maximum response body to inspect (10KB)
	pollInterval   = 5 * time.Second  // Idle poll for due retries
)

// deliveryResult is the outcome of one HTTP delivery attempt.
type deliveryResult struct {
	Success     bool
	StatusCode  int
	Body        []byte
	Err         error
	ShouldRetry bool
}

// Config holds worker pool configuration.
type Config struct {
	Workers    int // Number of concurrent delivery workers
	HTTPClient *http.Client
}

// DefaultConfig returns default worker pool configuration.
func DefaultConfig() Config {
	return Config{Workers: 3}
}

// WorkerPool consumes queued publish jobs and performs the remote writes.
// Each job is claimed exclusively via a lease, so exactly one worker
// executes a given attempt; workers run in parallel across different jobs.
type WorkerPool struct {
	queries *store.Queries
	logger  *slog.Logger
	http    *http.Client
	workers int
	wake    chan struct{}
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool
}

// NewWorkerPool creates a worker pool. wake should be the channel given to
// the dispatcher.
func NewWorkerPool(queries *store.Queries, logger *slog.Logger, wake chan struct{}, cfg Config) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &WorkerPool{
		queries: queries,
		logger:  logger,
		http:    httpClient,
		workers: cfg.Workers,
		wake:    wake,
		done:    make(chan struct{}),
	}
}

// Start starts the worker goroutines.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.logger.Info("starting publish workers", "workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop stops the pool and waits for in-flight attempts to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("stopping publish workers")
	close(p.done)
	p.wg.Wait()
	p.logger.Info("publish workers stopped")
}

// Wake nudges idle workers to look for due jobs.
func (p *WorkerPool) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// worker drains due jobs, then sleeps until woken or the poll interval
// elapses (retries become due without any dispatch happening).
func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.logger.Debug("publish worker started", "worker_id", id)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		p.drain(ctx, id)

		select {
		case <-p.done:
			p.logger.Debug("publish worker stopping", "worker_id", id)
			return
		case <-ctx.Done():
			p.logger.Debug("publish worker context cancelled", "worker_id", id)
			return
		case <-p.wake:
		case <-ticker.C:
		}
	}
}

// drain claims and processes due jobs until the queue is empty.
func (p *WorkerPool) drain(ctx context.Context, workerID int) {
	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queries.ClaimQueuedJob(ctx, LeaseDuration)
		if errors.Is(err, store.ErrNotFound) {
			return
		}
		if err != nil {
			p.logger.Error("failed to claim publish job", "error", err, "worker_id", workerID)
			return
		}

		p.logger.Debug("processing publish job",
			"worker_id", workerID, "job_id", job.CorrelationID, "attempt", job.Attempts+1)
		p.process(ctx, &job)
	}
}

// process runs one delivery attempt for a claimed job and applies the
// state transition its outcome demands.
func (p *WorkerPool) process(ctx context.Context, job *model.PublishJob) {
	intent := job.Intent()

	// Create retries must not duplicate remote posts. The draft's remote
	// post ID is the single source of truth: once recorded, any further
	// create attempt for the draft is a no-op success.
	if !intent.IsEdit() {
		draft, err := p.queries.GetDraft(ctx, job.DraftID)
		if err == nil && draft.IsPublished() {
			p.logger.Info("draft already published remotely, skipping create",
				"category", model.EventCategoryQueue,
				"job_id", job.CorrelationID,
				"draft_id", job.DraftID,
				"wp_post_id", draft.WPPostID.Int64)
			if err := p.queries.MarkJobDelivered(ctx, job.ID, 0); err != nil {
				p.logger.Error("failed to mark job delivered", "error", err, "job_id", job.CorrelationID)
			}
			return
		}
	}

	result := p.attemptDelivery(ctx, job)
	if result.Success {
		p.finishDelivered(ctx, job, intent, result)
		return
	}
	p.finishFailed(ctx, job, result)
}

// finishDelivered records the remote post ID on the draft and closes the
// job. A conflicting already-recorded ID is a fatal consistency error: the
// recorded value is never overwritten.
func (p *WorkerPool) finishDelivered(ctx context.Context, job *model.PublishJob, intent model.Intent, result deliveryResult) {
	remoteID, err := wordpress.ParsePostID(result.Body)
	if err != nil {
		// Success status but no usable body. Retry: the draft check at the
		// top of process guards a create against duplication.
		p.logger.Warn("publish succeeded but response was unparseable, retrying",
			"category", model.EventCategoryQueue,
			"job_id", job.CorrelationID, "draft_id", job.DraftID, "error", err)
		p.retryOrBury(ctx, job, result, "unparseable success response: "+err.Error())
		return
	}

	if err := p.queries.SetDraftRemotePostID(ctx, job.DraftID, remoteID); err != nil {
		if errors.Is(err, store.ErrRemotePostIDConflict) {
			p.buryJob(ctx, job, result, fmt.Sprintf("remote post id conflict: remote returned %d", remoteID))
			p.logger.Error("remote post id conflict, job terminated",
				"category", model.EventCategoryQueue,
				"job_id", job.CorrelationID,
				"draft_id", job.DraftID,
				"remote_post_id", remoteID)
			return
		}
		p.logger.Error("failed to record remote post id",
			"error", err, "job_id", job.CorrelationID, "draft_id", job.DraftID)
		p.retryOrBury(ctx, job, result, "recording remote post id: "+err.Error())
		return
	}

	if err := p.queries.MarkJobDelivered(ctx, job.ID, int64(result.StatusCode)); err != nil {
		p.logger.Error("failed to mark job delivered", "error", err, "job_id", job.CorrelationID)
		return
	}

	p.logger.Info("article published",
		"category", model.EventCategoryQueue,
		"job_id", job.CorrelationID,
		"draft_id", job.DraftID,
		"intent", intent.String(),
		"remote_post_id", remoteID,
		"status_code", result.StatusCode)
}

// finishFailed schedules a retry for transient failures and terminates the
// job for permanent ones or once the attempt budget is spent.
func (p *WorkerPool) finishFailed(ctx context.Context, job *model.PublishJob, result deliveryResult) {
	errMsg := ""
	if result.Err != nil {
		errMsg = result.Err.Error()
	}

	if !result.ShouldRetry {
		p.buryJob(ctx, job, result, errMsg)
		p.logger.Error("publish rejected permanently",
			"category", model.EventCategoryQueue,
			"job_id", job.CorrelationID,
			"draft_id", job.DraftID,
			"attempt", job.Attempts+1,
			"status_code", result.StatusCode,
			"reason", errMsg)
		return
	}
	p.retryOrBury(ctx, job, result, errMsg)
}

// retryOrBury re-queues a transient failure with exponential backoff, or
// terminates the job when max attempts are exhausted.
func (p *WorkerPool) retryOrBury(ctx context.Context, job *model.PublishJob, result deliveryResult, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= MaxAttempts {
		p.buryJob(ctx, job, result, errMsg)
		p.logger.Error("publish job exhausted retries",
			"category", model.EventCategoryQueue,
			"job_id", job.CorrelationID,
			"draft_id", job.DraftID,
			"attempts", attempts,
			"reason", errMsg)
		return
	}

	backoff := calculateBackoff(attempts)
	err := p.queries.ScheduleJobRetry(ctx, store.ScheduleJobRetryParams{
		ID:           job.ID,
		Attempts:     attempts,
		NextRetryAt:  time.Now().Add(backoff),
		ResponseCode: nullCode(result.StatusCode),
		LastError:    errMsg,
	})
	if err != nil {
		p.logger.Error("failed to schedule job retry", "error", err, "job_id", job.CorrelationID)
		return
	}

	p.logger.Warn("publish attempt failed, retry scheduled",
		"category", model.EventCategoryQueue,
		"job_id", job.CorrelationID,
		"draft_id", job.DraftID,
		"attempt", attempts,
		"status_code", result.StatusCode,
		"backoff", backoff.String(),
		"reason", errMsg)
}

func (p *WorkerPool) buryJob(ctx context.Context, job *model.PublishJob, result deliveryResult, errMsg string) {
	err := p.queries.MarkJobDead(ctx, store.MarkJobDeadParams{
		ID:           job.ID,
		Attempts:     job.Attempts + 1,
		ResponseCode: nullCode(result.StatusCode),
		LastError:    errMsg,
	})
	if err != nil {
		p.logger.Error("failed to mark job dead", "error", err, "job_id", job.CorrelationID)
	}
}

// attemptDelivery performs the actual HTTP POST of the assembled document
// to the job's publish URL.
func (p *WorkerPool) attemptDelivery(ctx context.Context, job *model.PublishJob) deliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.PublishURL,
		bytes.NewReader([]byte(job.Document)))
	if err != nil {
		return deliveryResult{
			Err:         fmt.Errorf("creating request: %w", err),
			ShouldRetry: false, // bad URL, don't retry
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+job.Token)
	req.Header.Set("User-Agent", wordpress.UserAgent)

	resp, err := p.http.Do(req)
	if err != nil {
		return deliveryResult{
			Err:         fmt.Errorf("request failed: %w", err),
			ShouldRetry: true, // network error, retry
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return deliveryResult{
			Success:    true,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	return deliveryResult{
		StatusCode:  resp.StatusCode,
		Body:        body,
		Err:         fmt.Errorf("HTTP %d: %s", resp.StatusCode, responseSnippet(body)),
		ShouldRetry: wordpress.RetryableStatus(resp.StatusCode),
	}
}

// calculateBackoff calculates the exponential backoff duration for a given
// attempt. Attempt 1 = 1 min, attempt 2 = 2 min, attempt 3 = 4 min, etc.,
// capped at MaxBackoff.
func calculateBackoff(attempt int64) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	backoff := time.Duration(float64(InitialBackoff) * math.Pow(2, float64(attempt-1)))
	if backoff > MaxBackoff {
		backoff = MaxBackoff
	}
	return backoff
}

func nullCode(statusCode int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(statusCode), Valid: statusCode > 0}
}

// responseSnippet trims a remote error body down to one loggable line.
func responseSnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
