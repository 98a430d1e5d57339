// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic queue maintenance: reaping expired
// delivery leases and waking workers for due retries.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/newsroomkit/publisher/internal/model"
	"github.com/newsroomkit/publisher/internal/store"
)

// Scheduler handles periodic queue maintenance tasks.
type Scheduler struct {
	queries *store.Queries
	cron    *cron.Cron
	wake    func()
	logger  *slog.Logger
}

// New creates a new scheduler instance. wake is called whenever due jobs
// are found so idle workers pick them up promptly.
func New(queries *store.Queries, wake func(), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		queries: queries,
		cron:    cron.New(),
		wake:    wake,
		logger:  logger,
	}
}

// Start begins the scheduler with a maintenance job running every minute.
func (s *Scheduler) Start() error {
	// Run every minute
	_, err := s.cron.AddFunc("* * * * *", func() {
		if err := s.maintainQueue(); err != nil {
			s.logger.Error("queue maintenance failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// maintainQueue returns crashed workers' jobs to the queue and nudges the
// pool when retries have come due.
func (s *Scheduler) maintainQueue() error {
	ctx := context.Background()

	reaped, err := s.queries.ReapExpiredLeases(ctx)
	if err != nil {
		return err
	}
	if reaped > 0 {
		s.logger.Warn("reclaimed jobs with expired leases",
			"category", model.EventCategoryQueue, "count", reaped)
	}

	due, err := s.queries.CountDueJobs(ctx)
	if err != nil {
		return err
	}
	if due > 0 {
		s.logger.Debug("due publish jobs found", "count", due)
		if s.wake != nil {
			s.wake()
		}
	}
	return nil
}
