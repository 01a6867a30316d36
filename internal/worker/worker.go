// Package worker drives notification jobs from pending to a terminal state.
// It polls the job queue, loads the recipient's device tokens, dispatches the
// push and interprets per-token outcomes. One job failing never stops the
// loop; permanently invalid tokens are pruned best-effort.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-notify-nosql/internal/domain"
	"github.com/go-notify-nosql/internal/infrastructure/push"
)

type jobStore interface {
	ClaimNext(ctx context.Context) (*domain.Job, error)
	MarkSent(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, lastError string, incRetries bool) error
}

type notificationStore interface {
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	SetSent(ctx context.Context, notificationID string, sent bool) error
}

type tokenStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.DeviceToken, error)
	Delete(ctx context.Context, token string) error
}

// Worker is the delivery loop. It is written so that several instances can
// run against the same tables: ClaimNext is a conditional transition, so two
// workers never process the same job.
type Worker struct {
	jobs          jobStore
	notifications notificationStore
	tokens        tokenStore
	dispatcher    push.Dispatcher
	interval      time.Duration
	logger        *slog.Logger
}

func New(jobs jobStore, notifications notificationStore, tokens tokenStore, dispatcher push.Dispatcher, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		jobs:          jobs,
		notifications: notifications,
		tokens:        tokens,
		dispatcher:    dispatcher,
		interval:      interval,
		logger:        logger,
	}
}

// Run polls until ctx is cancelled. Each tick drains the queue: jobs are
// claimed and processed back-to-back while any are pending, then the loop
// sleeps until the next tick.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("notification worker started", "poll_interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		didWork, err := w.ProcessOne(ctx)
		if err != nil {
			w.logger.Error("claim failed", "err", err)
			return
		}
		if !didWork {
			return
		}
	}
}

// ProcessOne claims and processes a single job. It returns false when no
// pending job was available. The returned error covers only the claim itself;
// a processing failure is recorded on the job and swallowed here so the loop
// keeps going.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	if err := w.process(ctx, job); err != nil {
		w.logger.Error("job failed", "job_id", job.JobID, "err", err)
		if markErr := w.jobs.MarkFailed(ctx, job.JobID, err.Error(), true); markErr != nil {
			w.logger.Error("could not record job failure", "job_id", job.JobID, "err", markErr)
		}
	}
	return true, nil
}

// process runs the delivery pipeline for a claimed job. A returned error
// means a failed delivery attempt (the caller marks the job failed and
// counts a retry). The missing-notification case is terminal without a retry
// and is handled inline.
func (w *Worker) process(ctx context.Context, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing job: %v", r)
		}
	}()

	n, err := w.notifications.Get(ctx, job.NotificationID)
	if err != nil {
		// Only a genuinely absent row is terminal without a retry. A store
		// error is a failed attempt like any other.
		if errors.Is(err, domain.ErrNotFound) {
			w.logger.Warn("notification missing for job", "job_id", job.JobID, "notification_id", job.NotificationID)
			return w.jobs.MarkFailed(ctx, job.JobID, "notification missing", false)
		}
		return fmt.Errorf("load notification: %w", err)
	}

	tokens, err := w.tokens.ListByUser(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("list device tokens: %w", err)
	}
	if len(tokens) == 0 {
		// Nothing to deliver is not an error: the job is done, but the
		// notification never reached a device.
		w.logger.Info("no device tokens for user", "user_id", n.UserID, "notification_id", n.NotificationID)
		if err := w.jobs.MarkSent(ctx, job.JobID); err != nil {
			return err
		}
		return w.notifications.SetSent(ctx, n.NotificationID, false)
	}

	tokenStrings := make([]string, len(tokens))
	for i, t := range tokens {
		tokenStrings[i] = t.Token
	}

	results, err := w.dispatcher.SendMulticast(ctx, buildMessage(n), tokenStrings)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	successCount := 0
	for _, res := range results {
		if res.Success {
			successCount++
			continue
		}
		if push.IsPermanent(res.ErrorCode) {
			w.pruneToken(ctx, res.Token, res.ErrorCode)
		}
	}
	w.logger.Info("dispatched notification",
		"notification_id", n.NotificationID,
		"success", successCount,
		"failed", len(results)-successCount,
	)

	if err := w.jobs.MarkSent(ctx, job.JobID); err != nil {
		return err
	}
	return w.notifications.SetSent(ctx, n.NotificationID, successCount > 0)
}

// pruneToken removes a permanently invalid token. Best-effort: a failure
// here is logged and never affects the job outcome.
func (w *Worker) pruneToken(ctx context.Context, token, code string) {
	if err := w.tokens.Delete(ctx, token); err != nil {
		w.logger.Warn("could not prune invalid token", "token", token, "code", code, "err", err)
		return
	}
	w.logger.Info("pruned invalid token", "token", token, "code", code)
}

// buildMessage assembles the push payload. The data block always carries the
// notification id under both "id" and "notificationId" so clients can match
// the push to the stored record, plus the notification metadata with every
// value coerced to a string.
func buildMessage(n *domain.Notification) push.Message {
	data := make(map[string]string, len(n.Metadata)+2)
	for k, v := range n.Metadata {
		data[k] = fmt.Sprint(v)
	}
	data["id"] = n.NotificationID
	data["notificationId"] = n.NotificationID
	return push.Message{Title: n.Title, Body: n.Body, Data: data}
}
