package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/eaxy/eaxy/internal/events"
	"github.com/eaxy/eaxy/internal/shared"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memoryRepo struct {
	mu      sync.Mutex
	clock   shared.Clock
	records map[int64]Record
	nextID  int64
	reads   int
	err     error

	// gate, when set, holds ListByOffice until closed or ctx is done.
	gate    chan struct{}
	entered chan struct{}
}

func newMemoryRepo(clock shared.Clock) *memoryRepo {
	return &memoryRepo{clock: clock, records: make(map[int64]Record)}
}

func (m *memoryRepo) Append(ctx context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Record{}, m.err
	}
	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = m.clock.Now()
	rec.UpdatedAt = rec.CreatedAt
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, office string, patch Patch) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.owned(id, office)
	if err != nil {
		return Record{}, err
	}
	rec = patch.Apply(rec)
	rec.UpdatedAt = m.clock.Now()
	m.records[id] = rec
	return rec, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64, office string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.owned(id, office); err != nil {
		return err
	}
	delete(m.records, id)
	return nil
}

func (m *memoryRepo) owned(id int64, office string) (Record, error) {
	if m.err != nil {
		return Record{}, m.err
	}
	rec, ok := m.records[id]
	if !ok {
		return Record{}, shared.ErrNotFound
	}
	if rec.Office != office {
		return Record{}, shared.ErrForbidden
	}
	return rec, nil
}

func (m *memoryRepo) ListByOffice(ctx context.Context, office string, window *DateRange) ([]Record, error) {
	if m.gate != nil {
		select {
		case m.entered <- struct{}{}:
		default:
		}
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.err != nil {
		return nil, m.err
	}
	var out []Record
	for _, rec := range m.records {
		if rec.Office != office {
			continue
		}
		if window != nil && !window.Contains(rec.CreatedAt) {
			continue
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *memoryRepo) ListAll(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *memoryRepo) Offices(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	seen := map[string]bool{}
	var out []string
	for _, rec := range m.records {
		if !seen[rec.Office] {
			seen[rec.Office] = true
			out = append(out, rec.Office)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memoryRepo) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func sortNewestFirst(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[scope+"|"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[scope+"|"+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, scope+"|"+key)
	return nil
}

type recordingAuditor struct {
	mu   sync.Mutex
	logs []shared.AuditLog
	err  error
}

func (a *recordingAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errBrokenStore = errors.New("connection refused")
