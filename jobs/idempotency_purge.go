package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// KeyPurger deletes idempotency claims older than a cutoff.
type KeyPurger interface {
	Cleanup(ctx context.Context, now time.Time, olderThan time.Duration) (int64, error)
}

// IdempotencyPurgeJob handles TaskIdempotencyPurge.
type IdempotencyPurgeJob struct {
	Store  KeyPurger
	Logger *slog.Logger
	clock  func() time.Time
}

// NewIdempotencyPurgeJob initialises the purge handler.
func NewIdempotencyPurgeJob(store KeyPurger, logger *slog.Logger) *IdempotencyPurgeJob {
	return &IdempotencyPurgeJob{
		Store:  store,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle deletes the expired keys.
func (j *IdempotencyPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency purge: handler not configured")
	}
	var payload IdempotencyPurgePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	start := j.clock()
	logger := j.logger().With(slog.Duration("retention", payload.retention()))
	deleted, err := j.Store.Cleanup(ctx, start, payload.retention())
	if err != nil {
		logger.Error("idempotency purge failed", slog.Any("error", err))
		return err
	}
	logger.Info("idempotency purge completed",
		slog.Int64("deleted", deleted),
		slog.Duration("duration", j.clock().Sub(start)))
	return nil
}

func (j *IdempotencyPurgeJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
