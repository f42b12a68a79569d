package mfa

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-erp/atlas-access/internal/platform/httpx"
	"github.com/atlas-erp/atlas-access/internal/shared"
)

// Handler wires the enrollment endpoints. Both run behind the guard, so an
// identity is always present in the context.
type Handler struct {
	logger    *slog.Logger
	engine    *Engine
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine, validator: validator.New()}
}

// MountRoutes registers the enrollment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/mfa/enroll", h.handleEnroll)
	r.Post("/mfa/confirm", h.handleConfirm)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrSessionInvalid)
		return
	}
	enrollment, err := h.engine.Begin(r.Context(), identity.UserID, identity.Email)
	if err != nil {
		h.logger.Error("begin enrollment", slog.Any("error", err), slog.Int64("user_id", identity.UserID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, enrollment)
}

type confirmRequest struct {
	Secret string `json:"secret" validate:"required"`
	Code   string `json:"code" validate:"required,len=6,numeric"`
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrSessionInvalid)
		return
	}
	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.engine.Confirm(r.Context(), identity.UserID, req.Secret, req.Code); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusEnabled)})
}
