package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atlas-erp/atlas-access/internal/audit"
	"github.com/atlas-erp/atlas-access/internal/auth"
	"github.com/atlas-erp/atlas-access/internal/guard"
	"github.com/atlas-erp/atlas-access/internal/mfa"
	"github.com/atlas-erp/atlas-access/internal/observability"
	"github.com/atlas-erp/atlas-access/internal/permission"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Guard        *guard.Guard
	AuthHandler  *auth.Handler
	MFAHandler   *mfa.Handler
	AuditHandler *audit.Handler
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router. Public routes are login, health and
// metrics; everything else sits behind the guard.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	params.AuthHandler.MountPublic(r)

	r.Group(func(r chi.Router) {
		r.Use(params.Guard.Authenticate)
		params.AuthHandler.MountGuarded(r)
		params.MFAHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(params.Guard.RequirePermission("audit", permission.CapView))
			params.AuditHandler.MountRoutes(r)
		})
	})

	return r
}
