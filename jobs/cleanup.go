package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/eaxy/eaxy/internal/jobs"
)

// DefaultIdempotencyRetention is how long request keys are remembered.
const DefaultIdempotencyRetention = 72 * time.Hour

// KeyCleaner purges idempotency keys older than a window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// CleanupJob purges expired idempotency keys.
type CleanupJob struct {
	Store   KeyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *CleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	payload := CleanupPayload{MaxAge: DefaultIdempotencyRetention}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("idempotency cleanup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.MaxAge <= 0 {
		payload.MaxAge = DefaultIdempotencyRetention
	}

	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() {
		err = tracker.End(err)
	}()
	if err = j.Store.Cleanup(ctx, payload.MaxAge); err != nil {
		if j.Logger != nil {
			j.Logger.Error("idempotency cleanup", slog.Any("error", err))
		}
		return err
	}
	return nil
}
