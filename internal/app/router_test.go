package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atlas-erp/atlas-access/internal/audit"
	"github.com/atlas-erp/atlas-access/internal/auth"
	"github.com/atlas-erp/atlas-access/internal/guard"
	"github.com/atlas-erp/atlas-access/internal/mfa"
	"github.com/atlas-erp/atlas-access/internal/observability"
	"github.com/atlas-erp/atlas-access/internal/permission"
	"github.com/atlas-erp/atlas-access/internal/session"
	"github.com/atlas-erp/atlas-access/internal/shared"
	"github.com/atlas-erp/atlas-access/internal/token"
)

type nullSessions struct{}

func (nullSessions) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	return nil, nil
}

func (nullSessions) Create(ctx context.Context, userID int64, ttl time.Duration, ip, ua string) (*session.Session, error) {
	return nil, shared.ErrNotFound
}

func (nullSessions) Revoke(ctx context.Context, sessionID string) error { return nil }

func (nullSessions) RevokeAllForUser(ctx context.Context, userID int64) error { return nil }

type nullUsers struct{}

func (nullUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return nil, shared.ErrNotFound
}

func (nullUsers) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	return nil, shared.ErrNotFound
}

func (nullUsers) UpdatePassword(ctx context.Context, userID int64, hash string) error { return nil }

type nullPerms struct{}

func (nullPerms) Override(ctx context.Context, userID int64, module string) (permission.Flags, bool, error) {
	return permission.Flags{}, false, nil
}

func (nullPerms) Default(ctx context.Context, role, module string) (permission.Flags, bool, error) {
	return permission.Flags{}, false, nil
}

type nullSink struct{}

func (nullSink) Record(ctx context.Context, entry audit.Entry) {}

type nullReader struct{}

func (nullReader) Window(ctx context.Context, filters audit.TimelineFilters, limit, offset int) ([]audit.Entry, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier, err := token.NewVerifier(token.Config{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer: "atlas-access",
		TTL:    15 * time.Minute,
	})
	require.NoError(t, err)

	resolver := permission.NewResolver(nullPerms{})
	accessGuard := guard.New(guard.Config{
		Verifier: verifier,
		Sessions: nullSessions{},
		Resolver: resolver,
		Sink:     nullSink{},
		Logger:   logger,
	})
	authService := auth.NewService(auth.ServiceConfig{
		Repo:       nullUsers{},
		Sessions:   nullSessions{},
		Tokens:     verifier,
		SessionTTL: time.Hour,
	})
	return NewRouter(RouterParams{
		Logger:       logger,
		Config:       &Config{AppRequestTimeout: 5 * time.Second},
		Guard:        accessGuard,
		AuthHandler:  auth.NewHandler(logger, authService, resolver, nullSink{}),
		MFAHandler:   mfa.NewHandler(logger, mfa.NewEngine(nil, nil, "Atlas ERP")),
		AuditHandler: audit.NewHandler(logger, audit.NewService(nullReader{})),
		Metrics:      observability.NewMetrics(),
	})
}

func TestRouterHealthAndMetricsArePublic(t *testing.T) {
	router := newTestRouter(t)

	for _, target := range []string{"/healthz", "/metrics"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rr.Code, target)
	}
}

func TestRouterGuardsProtectedRoutes(t *testing.T) {
	router := newTestRouter(t)

	for _, route := range []struct {
		method string
		target string
	}{
		{http.MethodGet, "/me"},
		{http.MethodPost, "/logout"},
		{http.MethodPost, "/mfa/enroll"},
		{http.MethodGet, "/audit"},
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(route.method, route.target, nil))
		require.Equal(t, http.StatusUnauthorized, rr.Code, route.target)
	}
}

func TestRouterLoginIsPublic(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
	// Reaches the handler and fails on the empty payload, not on auth.
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
