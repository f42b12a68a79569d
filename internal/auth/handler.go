package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/atlas-erp/atlas-access/internal/audit"
	"github.com/atlas-erp/atlas-access/internal/permission"
	"github.com/atlas-erp/atlas-access/internal/platform/httpx"
	"github.com/atlas-erp/atlas-access/internal/shared"
)

// Handler wires the HTTP endpoints for the login lifecycle.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	resolver  *permission.Resolver
	sink      audit.Sink
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, resolver *permission.Resolver, sink audit.Sink) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		resolver:  resolver,
		sink:      sink,
		validator: validator.New(),
	}
}

// MountPublic registers the routes that run outside the guard.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

// MountGuarded registers the routes that require an authenticated identity.
func (h *Handler) MountGuarded(r chi.Router) {
	r.Post("/logout", h.handleLogout)
	r.Post("/password", h.handleChangePassword)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Code     string `json:"code" validate:"omitempty,len=6,numeric"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.Code, r.RemoteAddr, r.UserAgent())
	if err != nil {
		h.auditLogin(r, nil, audit.OutcomeDenied, shared.DenyReason(err))
		httpx.RespondError(w, err)
		return
	}

	h.auditLogin(r, &result.User.ID, audit.OutcomeGranted, "")
	httpx.JSON(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.Session.ExpiresAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrSessionInvalid)
		return
	}
	if err := h.service.Logout(r.Context(), identity.SessionID); err != nil {
		h.logger.Error("logout", slog.Any("error", err), slog.Int64("user_id", identity.UserID))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrSessionInvalid)
		return
	}
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.service.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		httpx.RespondError(w, err)
		return
	}
	// Every session just died, this response is the client's cue to re-login.
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	UserID      int64             `json:"user_id"`
	Email       string            `json:"email"`
	Role        string            `json:"role"`
	Module      string            `json:"module,omitempty"`
	Permissions *permission.Flags `json:"permissions,omitempty"`
}

// handleMe reports the caller's identity and, when a module query parameter
// is present, the effective permission flags for that module.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrSessionInvalid)
		return
	}
	resp := meResponse{
		UserID: identity.UserID,
		Email:  identity.Email,
		Role:   identity.Role,
	}
	if module := r.URL.Query().Get("module"); module != "" {
		flags, err := h.resolver.Resolve(r.Context(), identity.UserID, identity.Role, module)
		if err != nil {
			h.logger.Error("resolve permissions", slog.Any("error", err), slog.String("module", module))
			httpx.RespondError(w, err)
			return
		}
		resp.Module = module
		resp.Permissions = &flags
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) auditLogin(r *http.Request, actorID *int64, outcome, reason string) {
	if h.sink == nil {
		return
	}
	h.sink.Record(r.Context(), audit.Entry{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     "login",
		Resource:   r.URL.Path,
		Outcome:    outcome,
		Reason:     reason,
		IP:         r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		OccurredAt: time.Now().UTC(),
	})
}
