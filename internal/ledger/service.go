package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/eaxy/eaxy/internal/auth"
	"github.com/eaxy/eaxy/internal/events"
	"github.com/eaxy/eaxy/internal/observability"
	"github.com/eaxy/eaxy/internal/shared"
)

// DateLayout is the wire format of a ledger day.
const DateLayout = "2006-01-02"

const balanceReadTimeout = 10 * time.Second

// IdempotencyGuard reserves request keys per scope.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Delete(ctx context.Context, key, scope string) error
}

// Auditor records who changed what.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig holds immutable ledger settings.
type ServiceConfig struct {
	DefaultCurrency string
	// Location defines the reference calendar day for daily listings.
	Location *time.Location
}

// ServiceParams groups the collaborators of Service.
type ServiceParams struct {
	Repo        Repository
	Idempotency IdempotencyGuard
	Audit       Auditor
	Events      events.Publisher
	Metrics     *observability.Metrics
	Clock       shared.Clock
	Logger      *slog.Logger
	Config      ServiceConfig
}

// Service implements the office-scoped ledger operations.
type Service struct {
	repo        Repository
	idempotency IdempotencyGuard
	audit       Auditor
	events      events.Publisher
	metrics     *observability.Metrics
	clock       shared.Clock
	logger      *slog.Logger
	cfg         ServiceConfig
	balances    singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

// NewService constructs a Service.
func NewService(p ServiceParams) *Service {
	cfg := p.Config
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "EUR"
	}
	cfg.DefaultCurrency = strings.ToUpper(cfg.DefaultCurrency)
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	clock := p.Clock
	if clock == nil {
		clock = shared.SystemClock
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := p.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:        p.Repo,
		idempotency: p.Idempotency,
		audit:       p.Audit,
		events:      publisher,
		metrics:     p.Metrics,
		clock:       clock,
		logger:      logger,
		cfg:         cfg,
		generations: make(map[string]uint64),
	}
}

// DefaultCurrency returns the configured currency code.
func (s *Service) DefaultCurrency() string {
	return s.cfg.DefaultCurrency
}

// CreateRecord appends a record attributed to the caller's office and identity.
func (s *Service) CreateRecord(ctx context.Context, claims auth.Claims, in CreateInput) (Record, error) {
	in.Kind = NormalizeKind(in.Kind)
	in.Counterparty = strings.TrimSpace(in.Counterparty)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Status = strings.TrimSpace(in.Status)
	if err := s.validateCreate(in); err != nil {
		return Record{}, err
	}
	if claims.Office == "" {
		return Record{}, shared.ErrUnauthenticated
	}

	rec := Record{
		Kind:         in.Kind,
		Counterparty: in.Counterparty,
		Amount:       *in.Amount,
		Currency:     in.Currency,
		Status:       in.Status,
		Office:       claims.Office,
		Actor:        claims.Identity,
	}
	if rec.Currency == "" {
		rec.Currency = s.cfg.DefaultCurrency
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}

	scope := shared.LedgerScope(claims.Office)
	if in.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, in.IdempotencyKey, scope); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Record{}, fmt.Errorf("ledger: idempotency key %q: %w", in.IdempotencyKey, shared.ErrDuplicate)
			}
			return Record{}, shared.WrapStore("ledger: reserve idempotency key", err)
		}
	}

	created, err := s.repo.Append(ctx, rec)
	if err != nil {
		if in.IdempotencyKey != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, in.IdempotencyKey, scope); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return Record{}, shared.WrapStore("ledger: append", err)
	}

	s.afterWrite(ctx, claims, "create", events.TypeRecordCreated, created)
	return created, nil
}

func (s *Service) validateCreate(in CreateInput) error {
	if err := validate.Struct(in); err != nil {
		return validationError(err)
	}
	if in.Amount == nil {
		return fmt.Errorf("%w: importe required", shared.ErrValidation)
	}
	if in.Amount.IsNegative() {
		return fmt.Errorf("%w: importe cannot be negative", shared.ErrValidation)
	}
	return nil
}

// UpdateRecord applies an allow-listed patch to a record of the caller's office.
func (s *Service) UpdateRecord(ctx context.Context, claims auth.Claims, id int64, patch Patch) (Record, error) {
	if id <= 0 {
		return Record{}, fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	patch = patch.normalized()
	if err := patch.Validate(); err != nil {
		return Record{}, err
	}
	updated, err := s.repo.Update(ctx, id, claims.Office, patch)
	if err != nil {
		return Record{}, shared.WrapStore("ledger: update", err)
	}
	s.afterWrite(ctx, claims, "update", events.TypeRecordUpdated, updated)
	return updated, nil
}

// DeleteRecord removes a record of the caller's office. Admin only.
func (s *Service) DeleteRecord(ctx context.Context, claims auth.Claims, id int64) error {
	if !claims.IsAdmin() {
		return fmt.Errorf("ledger: delete requires admin: %w", shared.ErrForbidden)
	}
	if id <= 0 {
		return fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	if err := s.repo.Delete(ctx, id, claims.Office); err != nil {
		return shared.WrapStore("ledger: delete", err)
	}
	s.afterWrite(ctx, claims, "delete", events.TypeRecordDeleted, Record{ID: id, Office: claims.Office, Actor: claims.Identity})
	return nil
}

// Query lists the caller's office records for the requested mode, newest first.
func (s *Service) Query(ctx context.Context, claims auth.Claims, q Query) ([]Record, error) {
	var window *DateRange
	switch q.Mode {
	case ModeAll:
	case ModeToday:
		day := DayRange(s.clock.Now(), s.cfg.Location)
		window = &day
	case ModeByDate:
		day, err := s.ParseDay(q.Date)
		if err != nil {
			return nil, err
		}
		window = &day
	default:
		return nil, fmt.Errorf("%w: unknown query mode %d", shared.ErrValidation, q.Mode)
	}
	records, err := s.repo.ListByOffice(ctx, claims.Office, window)
	if err != nil {
		return nil, shared.WrapStore("ledger: list", err)
	}
	return records, nil
}

// ListAll returns every record of the caller's office.
func (s *Service) ListAll(ctx context.Context, claims auth.Claims) ([]Record, error) {
	return s.Query(ctx, claims, Query{Mode: ModeAll})
}

// ListToday returns the caller's office records of the current reference day.
func (s *Service) ListToday(ctx context.Context, claims auth.Claims) ([]Record, error) {
	return s.Query(ctx, claims, Query{Mode: ModeToday})
}

// ListByDate returns the caller's office records of the given YYYY-MM-DD day.
func (s *Service) ListByDate(ctx context.Context, claims auth.Claims, date string) ([]Record, error) {
	return s.Query(ctx, claims, Query{Mode: ModeByDate, Date: date})
}

// ParseDay parses a YYYY-MM-DD day in the reference location.
func (s *Service) ParseDay(date string) (DateRange, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), s.cfg.Location)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: invalid fecha %q", shared.ErrValidation, date)
	}
	return DayRange(t, s.cfg.Location), nil
}

// ComputeBalance derives the caller's office balance from all its records.
// Concurrent calls for the same office share one store read, which runs
// detached from any single caller's cancellation. A write bumps the office
// generation so later calls never join a read that predates it.
func (s *Service) ComputeBalance(ctx context.Context, claims auth.Claims) (decimal.Decimal, error) {
	if claims.Office == "" {
		return decimal.Zero, shared.ErrUnauthenticated
	}
	office := claims.Office
	key := office + "#" + strconv.FormatUint(s.generation(office), 10)
	ch := s.balances.DoChan(key, func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), balanceReadTimeout)
		defer cancel()
		records, err := s.repo.ListByOffice(readCtx, office, nil)
		if err != nil {
			return nil, err
		}
		return Balance(records), nil
	})
	select {
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return decimal.Zero, shared.WrapStore("ledger: balance", res.Err)
		}
		return res.Val.(decimal.Decimal), nil
	}
}

func (s *Service) generation(office string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[office]
}

func (s *Service) bumpGeneration(office string) {
	s.mu.Lock()
	s.generations[office]++
	s.mu.Unlock()
}

// Export returns all records of the caller's office with their balance.
func (s *Service) Export(ctx context.Context, claims auth.Claims) (Export, error) {
	return s.ExportOffice(ctx, claims.Office)
}

// ExportOffice snapshots one office. It is used by Export and by the backup
// job, which runs without claims.
func (s *Service) ExportOffice(ctx context.Context, office string) (Export, error) {
	if office == "" {
		return Export{}, fmt.Errorf("%w: office required", shared.ErrValidation)
	}
	records, err := s.repo.ListByOffice(ctx, office, nil)
	if err != nil {
		return Export{}, shared.WrapStore("ledger: export", err)
	}
	return Export{
		Office:      office,
		GeneratedAt: s.clock.Now(),
		Balance:     Balance(records),
		Records:     records,
	}, nil
}

// Offices lists the offices known to the store.
func (s *Service) Offices(ctx context.Context) ([]string, error) {
	offices, err := s.repo.Offices(ctx)
	if err != nil {
		return nil, shared.WrapStore("ledger: offices", err)
	}
	return offices, nil
}

// ListAllOffices is the elevated cross-office listing. Admin only.
func (s *Service) ListAllOffices(ctx context.Context, claims auth.Claims) ([]Record, error) {
	if !claims.IsAdmin() {
		return nil, fmt.Errorf("ledger: cross-office listing requires admin: %w", shared.ErrForbidden)
	}
	records, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, shared.WrapStore("ledger: list all offices", err)
	}
	return records, nil
}

// afterWrite runs the side effects of a committed write. The acting identity
// comes from claims; rec.Actor stays the record's creator.
func (s *Service) afterWrite(ctx context.Context, claims auth.Claims, action, eventType string, rec Record) {
	s.bumpGeneration(rec.Office)
	s.metrics.RecordWrite(action, rec.Kind)

	if s.audit != nil {
		meta := map[string]any{"kind": rec.Kind}
		if action != "delete" {
			meta["amount"] = rec.Amount.StringFixed(2)
			meta["currency"] = rec.Currency
			meta["status"] = rec.Status
		}
		if err := s.audit.Record(ctx, shared.AuditLog{
			Actor:    claims.Identity,
			Office:   rec.Office,
			Action:   "ledger." + action,
			Entity:   "ledger_record",
			EntityID: strconv.FormatInt(rec.ID, 10),
			Meta:     meta,
			At:       s.clock.Now(),
		}); err != nil {
			s.logger.Warn("audit ledger write", slog.String("action", action), slog.Int64("id", rec.ID), slog.Any("error", err))
		}
	}

	event := events.Event{
		Type:     eventType,
		Office:   rec.Office,
		RecordID: rec.ID,
		Actor:    claims.Identity,
		Kind:     rec.Kind,
		Currency: rec.Currency,
		At:       s.clock.Now(),
	}
	if action != "delete" {
		event.Amount = rec.Amount.StringFixed(2)
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish ledger event", slog.String("type", eventType), slog.Int64("id", rec.ID), slog.Any("error", err))
	}
}
