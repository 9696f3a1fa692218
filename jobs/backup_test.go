package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/eaxy/eaxy/internal/ledger"
)

type fakeExporter struct {
	records map[string][]ledger.Record
	fail    map[string]error
}

func (f fakeExporter) Offices(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(f.records))
	for office := range f.records {
		out = append(out, office)
	}
	sort.Strings(out)
	return out, nil
}

func (f fakeExporter) ExportOffice(ctx context.Context, office string) (ledger.Export, error) {
	if err := f.fail[office]; err != nil {
		return ledger.Export{}, err
	}
	records := f.records[office]
	return ledger.Export{
		Office:      office,
		GeneratedAt: time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC),
		Balance:     ledger.Balance(records),
		Records:     records,
	}, nil
}

func newTestBackupJob(t *testing.T, exporter Exporter) *BackupJob {
	t.Helper()
	job := NewBackupJob(exporter, t.TempDir(), nil, nil, nil)
	job.clock = func() time.Time { return time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC) }
	job.newFileTag = func() string { return "fixed" }
	return job
}

func sampleExporter() fakeExporter {
	return fakeExporter{records: map[string][]ledger.Record{
		"Barcelona": {
			{ID: 2, Kind: "salida", Amount: decimal.NewFromInt(50), Currency: "EUR", Office: "Barcelona"},
			{ID: 1, Kind: "entrada", Amount: decimal.NewFromInt(200), Currency: "EUR", Office: "Barcelona"},
		},
		"Sant Cugat": {
			{ID: 3, Kind: "cash", Amount: decimal.RequireFromString("7.5"), Currency: "EUR", Office: "Sant Cugat"},
		},
	}}
}

func TestBackupJobWritesOneSnapshotPerOffice(t *testing.T) {
	job := newTestBackupJob(t, sampleExporter())

	paths, err := job.Run(context.Background(), nil)
	require.NoError(t, err)
	sort.Strings(paths)
	require.Equal(t, []string{
		filepath.Join(job.Dir, officeSlug("Barcelona"), "20240510T030000Z-fixed.json"),
		filepath.Join(job.Dir, officeSlug("Sant Cugat"), "20240510T030000Z-fixed.json"),
	}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	var doc struct {
		Office  string `json:"oficina"`
		Total   string `json:"total"`
		Records []struct {
			ID int64 `json:"id"`
		} `json:"operaciones"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "Barcelona", doc.Office)
	require.Equal(t, "150.00", doc.Total)
	require.Len(t, doc.Records, 2)
}

func TestBackupJobContinuesAfterOfficeFailure(t *testing.T) {
	exporter := sampleExporter()
	boom := errors.New("read timeout")
	exporter.fail = map[string]error{"Barcelona": boom}
	job := newTestBackupJob(t, exporter)

	paths, err := job.Run(context.Background(), nil)
	require.ErrorIs(t, err, boom)
	require.Len(t, paths, 1)
	require.Contains(t, paths[0], officeSlug("Sant Cugat"))
}

func TestBackupJobHandlePayload(t *testing.T) {
	job := newTestBackupJob(t, sampleExporter())

	task, err := NewBackupTask(BackupPayload{Offices: []string{"Sant Cugat"}})
	require.NoError(t, err)
	require.Equal(t, TaskLedgerBackup, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))

	entries, err := os.ReadDir(job.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, officeSlug("Sant Cugat"), entries[0].Name())

	err = job.Handle(context.Background(), asynq.NewTask(TaskLedgerBackup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestOfficeSlug(t *testing.T) {
	slug := regexp.MustCompile(`^[a-z0-9_-]+-[0-9a-f]{8}$`)
	for office, prefix := range map[string]string{
		"Barcelona":  "barcelona-",
		"/../etc":    "____etc-",
		"Sant Cugat": "sant_cugat-",
		"  ":         "_-",
	} {
		got := officeSlug(office)
		require.True(t, strings.HasPrefix(got, prefix), got)
		require.Regexp(t, slug, got)
		require.Equal(t, got, officeSlug(office))
	}
}

func TestOfficeSlugKeepsLookalikeOfficesApart(t *testing.T) {
	for _, pair := range [][2]string{
		{"A B", "A_B"},
		{"Málaga", "Mülaga"},
		{"Sant Cugat", " Sant Cugat "},
	} {
		require.NotEqual(t, officeSlug(pair[0]), officeSlug(pair[1]), pair)
	}
}
