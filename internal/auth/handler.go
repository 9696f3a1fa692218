package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/eaxy/eaxy/internal/platform/httpx"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Pin      string `json:"pin" validate:"required"`
}

type userView struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Office   string `json:"oficina"`
}

type loginResponse struct {
	OK        bool      `json:"ok"`
	Token     string    `json:"token"`
	Role      Role      `json:"role"`
	Office    string    `json:"office"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userView  `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "missing username or pin")
		return
	}

	session, err := h.service.Authenticate(r.Context(), req.Username, req.Pin)
	if err != nil {
		h.logger.Info("login rejected", slog.String("username", req.Username), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, loginResponse{
		OK:        true,
		Token:     session.Token,
		Role:      session.Role,
		Office:    session.Office,
		ExpiresAt: session.ExpiresAt,
		User:      userView{Username: session.Identity, Role: session.Role, Office: session.Office},
	})
}
