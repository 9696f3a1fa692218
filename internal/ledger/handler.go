package ledger

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eaxy/eaxy/internal/auth"
	"github.com/eaxy/eaxy/internal/platform/httpx"
	"github.com/eaxy/eaxy/internal/shared"
)

// Handler exposes the ledger over HTTP. Every route expects claims placed in
// the request context by auth.Middleware.RequireToken.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the office-scoped routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/operaciones", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/daily", h.handleDaily)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
	r.Get("/historial", h.handleList)
	r.Get("/daily", h.handleDaily)
	r.Get("/caja", h.handleBalance)
	r.Get("/balance", h.handleBalance)
	r.Get("/backup", h.handleExport)
}

// MountAdminRoutes registers the elevated cross-office routes. Callers must
// guard them with auth.Middleware.RequireAdmin.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/operaciones", h.handleListAllOffices)
}

func (h *Handler) claims(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
	}
	return claims, ok
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	rec, err := h.service.CreateRecord(r.Context(), claims, CreateInput{
		Kind:           req.Kind,
		Counterparty:   req.Counterparty,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         req.Status,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.fail(w, r, "create record", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createResponse{OK: true, Success: true, ID: rec.ID, CreatedAt: rec.CreatedAt})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	records, err := h.service.ListAll(r.Context(), claims)
	if err != nil {
		h.fail(w, r, "list records", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Records: newRecordViews(records)})
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	q := Query{Mode: ModeToday}
	if date := r.URL.Query().Get("fecha"); date != "" {
		q = Query{Mode: ModeByDate, Date: date}
	}
	records, err := h.service.Query(r.Context(), claims, q)
	if err != nil {
		h.fail(w, r, "daily records", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dailyResponse{Daily: newRecordViews(records)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var raw map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	patch, err := ParsePatch(raw)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.UpdateRecord(r.Context(), claims, id, patch)
	if err != nil {
		h.fail(w, r, "update record", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updateResponse{Success: true, Record: newRecordView(rec)})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRecord(r.Context(), claims, id); err != nil {
		h.fail(w, r, "delete record", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	total, err := h.service.ComputeBalance(r.Context(), claims)
	if err != nil {
		h.fail(w, r, "compute balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{
		Office:   claims.Office,
		Total:    total.StringFixed(2),
		Currency: h.service.DefaultCurrency(),
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	export, err := h.service.Export(r.Context(), claims)
	if err != nil {
		h.fail(w, r, "export records", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ExportDocument(export))
}

func (h *Handler) handleListAllOffices(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	records, err := h.service.ListAllOffices(r.Context(), claims)
	if err != nil {
		h.fail(w, r, "list all offices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Records: newRecordViews(records)})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !shared.IsDomainError(err) {
		h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}
