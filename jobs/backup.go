package jobs

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/eaxy/eaxy/internal/jobs"
	"github.com/eaxy/eaxy/internal/ledger"
	"github.com/eaxy/eaxy/internal/observability"
)

// backupConcurrency bounds the offices snapshotted in parallel.
const backupConcurrency = 4

// Exporter is the ledger surface the backup job needs.
type Exporter interface {
	Offices(ctx context.Context) ([]string, error)
	ExportOffice(ctx context.Context, office string) (ledger.Export, error)
}

// BackupJob writes one JSON snapshot per office under Dir.
type BackupJob struct {
	Exporter   Exporter
	Dir        string
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Observer   *observability.Metrics
	clock      func() time.Time
	newFileTag func() string
}

// NewBackupJob wires dependencies for the backup handler.
func NewBackupJob(exporter Exporter, dir string, logger *slog.Logger, metrics *jobmetrics.Metrics, observer *observability.Metrics) *BackupJob {
	return &BackupJob{
		Exporter: exporter,
		Dir:      dir,
		Logger:   logger,
		Metrics:  metrics,
		Observer: observer,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		newFileTag: func() string {
			return uuid.NewString()
		},
	}
}

// Handle processes TaskLedgerBackup tasks.
func (j *BackupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Exporter == nil {
		return errors.New("backup: handler not configured")
	}
	var payload BackupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("backup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	_, err := j.Run(ctx, payload.Offices)
	return err
}

// Run snapshots the given offices, or all known offices when none are given,
// and returns the written file paths.
func (j *BackupJob) Run(ctx context.Context, offices []string) (paths []string, err error) {
	tracker := j.Metrics.Track(TaskLedgerBackup)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger()
	if len(offices) == 0 {
		offices, err = j.Exporter.Offices(ctx)
		if err != nil {
			logger.Error("load backup offices", slog.Any("error", err))
			return nil, err
		}
	}
	if len(offices) == 0 {
		logger.Info("no offices to back up")
		return nil, nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backupConcurrency)
	for _, office := range offices {
		g.Go(func() error {
			path, count, snapErr := j.snapshot(gctx, office)
			mu.Lock()
			defer mu.Unlock()
			if snapErr != nil {
				j.Observer.BackupSnapshot("error")
				logger.Error("backup office", slog.String("office", office), slog.Any("error", snapErr))
				errs = append(errs, fmt.Errorf("backup %s: %w", office, snapErr))
				return nil
			}
			j.Observer.BackupSnapshot("success")
			j.Metrics.AddExported(count)
			paths = append(paths, path)
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("backup finished", slog.Int("offices", len(offices)), slog.Int("written", len(paths)))
	return paths, errors.Join(errs...)
}

func (j *BackupJob) snapshot(ctx context.Context, office string) (string, int, error) {
	export, err := j.Exporter.ExportOffice(ctx, office)
	if err != nil {
		return "", 0, err
	}
	dir := filepath.Join(j.Dir, officeSlug(office))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", 0, err
	}
	data, err := json.MarshalIndent(ledger.ExportDocument(export), "", "  ")
	if err != nil {
		return "", 0, err
	}
	name := fmt.Sprintf("%s-%s.json", j.clock().Format("20060102T150405Z"), j.newFileTag())
	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return "", 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", 0, err
	}
	return path, len(export.Records), nil
}

func (j *BackupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// officeSlug turns an office name into a safe directory name. The suffix is
// a short hash of the raw name so offices that sanitise alike stay apart.
func officeSlug(office string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(office)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		b.WriteRune('_')
	}
	sum := blake2b.Sum256([]byte(office))
	return b.String() + "-" + hex.EncodeToString(sum[:4])
}
