package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	calls     int
	now       time.Time
	olderThan time.Duration
	deleted   int64
	err       error
}

func (f *fakePurger) Cleanup(ctx context.Context, now time.Time, olderThan time.Duration) (int64, error) {
	f.calls++
	f.now, f.olderThan = now, olderThan
	return f.deleted, f.err
}

func TestIdempotencyPurgeUsesTaskRetention(t *testing.T) {
	var buf bytes.Buffer
	store := &fakePurger{deleted: 3}
	job := NewIdempotencyPurgeJob(store, slog.New(slog.NewTextHandler(&buf, nil)))
	fixed := time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return fixed }

	task, err := NewIdempotencyPurgeTask(48 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, TaskIdempotencyPurge, task.Type())
	require.JSONEq(t, `{"retention_hours":48}`, string(task.Payload()))

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, store.calls)
	require.Equal(t, fixed, store.now)
	require.Equal(t, 48*time.Hour, store.olderThan)
	require.Contains(t, buf.String(), "deleted=3")
}

func TestIdempotencyPurgeDefaultsRetention(t *testing.T) {
	store := &fakePurger{}
	job := NewIdempotencyPurgeJob(store, nil)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyPurge, nil)))
	require.Equal(t, 24*time.Hour, store.olderThan)
}

func TestIdempotencyPurgeErrors(t *testing.T) {
	boom := errors.New("connection refused")
	job := NewIdempotencyPurgeJob(&fakePurger{err: boom}, nil)
	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyPurge, nil)), boom)

	err := job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyPurge, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	var unset *IdempotencyPurgeJob
	require.Error(t, unset.Handle(context.Background(), asynq.NewTask(TaskIdempotencyPurge, nil)))
}
