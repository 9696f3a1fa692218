package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/eaxy/eaxy/jobs"
)

// TaskEnqueuer is the part of asynq.Client the CLI uses.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for queued jobs.
type JobsCLI struct {
	client    TaskEnqueuer
	inspector jobs.QueueInspector
	closers   []func() error
}

// NewJobsCLI initialises the helpers against a Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client := asynq.NewClient(opts)
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{
		client:    client,
		inspector: inspector,
		closers:   []func() error{inspector.Close, client.Close},
	}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a supported job by name. Offices only apply to backups.
func (c *JobsCLI) Trigger(ctx context.Context, name string, offices []string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case "backup", jobs.TaskLedgerBackup:
		task, err = jobs.NewBackupTask(jobs.BackupPayload{Offices: offices})
	case "cleanup", jobs.TaskIdempotencyCleanup:
		task, err = jobs.NewCleanupTask(jobs.DefaultIdempotencyRetention)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reports the metrics of the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// String renders stats for terminal output.
func (s QueueStats) String() string {
	return fmt.Sprintf("queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d",
		s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
}

// FormatTaskInfo renders an enqueued task for terminal output.
func FormatTaskInfo(info *asynq.TaskInfo) string {
	if info == nil {
		return "no task"
	}
	return fmt.Sprintf("enqueued %s id=%s queue=%s at=%s", info.Type, info.ID, info.Queue, time.Now().UTC().Format(time.RFC3339))
}
