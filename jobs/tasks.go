package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerBackup snapshots office ledgers to disk.
	TaskLedgerBackup = "ledger:backup"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "ledger:idempotency_cleanup"
)

// BackupPayload selects the offices to snapshot. Empty means every office.
type BackupPayload struct {
	Offices []string `json:"offices,omitempty"`
}

// NewBackupTask constructs a backup task.
func NewBackupTask(payload BackupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerBackup, data, asynq.Queue(QueueDefault), asynq.Timeout(10*time.Minute)), nil
}

// CleanupPayload carries the retention window for idempotency keys.
type CleanupPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

// NewCleanupTask constructs an idempotency cleanup task.
func NewCleanupTask(maxAge time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(CleanupPayload{MaxAge: maxAge})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}
