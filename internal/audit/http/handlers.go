package audithttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eaxy/eaxy/internal/audit"
	"github.com/eaxy/eaxy/internal/auth"
	"github.com/eaxy/eaxy/internal/platform/httpx"
	"github.com/eaxy/eaxy/internal/shared"
)

const (
	defaultDateRangeDays = 7
	maxDateRangeDays     = 90
)

// TimelineService is the audit contract the handler depends on.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves the office audit timeline to admins.
type Handler struct {
	logger   *slog.Logger
	service  TimelineService
	location *time.Location
	now      func() time.Time
}

// NewHandler builds an audit handler. Query days are read in loc, the same
// reference location the ledger uses for its days.
func NewHandler(logger *slog.Logger, service TimelineService, loc *time.Location) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Handler{logger: logger, service: service, location: loc, now: time.Now}
}

type rowView struct {
	At       time.Time      `json:"at"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

type pagingView struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
}

type timelineResponse struct {
	Office string     `json:"office"`
	Rows   []rowView  `json:"rows"`
	Paging pagingView `json:"paging"`
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.fail(w, "load audit timeline", err)
		return
	}
	rows := make([]rowView, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, rowView{At: row.At, Actor: row.Actor, Action: row.Action, Entity: row.Entity, EntityID: row.EntityID, Meta: row.Meta})
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{
		Office: filters.Office,
		Rows:   rows,
		Paging: pagingView{Page: result.Paging.Page, PageSize: result.Paging.PageSize, HasNext: result.Paging.HasNext},
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.fail(w, "export audit timeline", err)
		return
	}
	data, err := audit.WriteCSV(rows)
	if err != nil {
		h.fail(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters reads query filters. The office always comes from the caller's claims.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return audit.TimelineFilters{}, shared.ErrUnauthenticated
	}
	q := r.URL.Query()
	now := h.now().In(h.location)

	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.location)
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, h.location)
		if err != nil {
			return audit.TimelineFilters{}, invalid("to")
		}
		to = parsed
	}
	from := to.AddDate(0, 0, -defaultDateRangeDays)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, h.location)
		if err != nil {
			return audit.TimelineFilters{}, invalid("from")
		}
		from = parsed
	}
	if from.After(to) || from.AddDate(0, 0, maxDateRangeDays).Before(to) {
		return audit.TimelineFilters{}, invalid("range")
	}

	page, err := positiveInt(q.Get("page"), 1)
	if err != nil {
		return audit.TimelineFilters{}, invalid("page")
	}
	pageSize, err := positiveInt(q.Get("page_size"), 0)
	if err != nil {
		return audit.TimelineFilters{}, invalid("page_size")
	}

	return audit.TimelineFilters{
		Office:   claims.Office,
		From:     from,
		To:       to,
		Actor:    strings.TrimSpace(q.Get("actor")),
		Action:   strings.TrimSpace(q.Get("action")),
		EntityID: strings.TrimSpace(q.Get("entity_id")),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func positiveInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return v, nil
}

func invalid(field string) error {
	return fmt.Errorf("%w: invalid %s", shared.ErrValidation, field)
}

func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	if !shared.IsDomainError(err) {
		h.logger.Error(message, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
