package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIdempotencyPurge deletes expired sales Idempotency-Key claims.
	TaskIdempotencyPurge = "sales:idempotency_purge"
)

// IdempotencyPurgePayload configures one purge run.
type IdempotencyPurgePayload struct {
	RetentionHours int `json:"retention_hours"`
}

func (p IdempotencyPurgePayload) retention() time.Duration {
	if p.RetentionHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(p.RetentionHours) * time.Hour
}

// NewIdempotencyPurgeTask builds the purge task for the given retention.
func NewIdempotencyPurgeTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyPurgePayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyPurge, data, asynq.Queue(QueueDefault)), nil
}
