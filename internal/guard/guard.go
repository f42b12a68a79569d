// Package guard is the request-path orchestrator: it verifies the bearer
// token, confirms a live server-side session, checks role and module
// permissions, and records exactly one audit entry per guarded request.
package guard

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-erp/atlas-access/internal/audit"
	"github.com/atlas-erp/atlas-access/internal/observability"
	"github.com/atlas-erp/atlas-access/internal/permission"
	"github.com/atlas-erp/atlas-access/internal/platform/httpx"
	"github.com/atlas-erp/atlas-access/internal/session"
	"github.com/atlas-erp/atlas-access/internal/shared"
	"github.com/atlas-erp/atlas-access/internal/token"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// Config collects guard dependencies.
type Config struct {
	Verifier TokenVerifier
	Sessions session.Store
	Resolver *permission.Resolver
	Sink     audit.Sink
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Guard composes the access checks as chi middleware.
type Guard struct {
	verifier TokenVerifier
	sessions session.Store
	resolver *permission.Resolver
	sink     audit.Sink
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Guard.
func New(cfg Config) *Guard {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		verifier: cfg.Verifier,
		sessions: cfg.Sessions,
		resolver: cfg.Resolver,
		sink:     cfg.Sink,
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	if now != nil {
		g.now = now
	}
	return g
}

// Authenticate verifies the bearer token and the server-side session, then
// attaches the identity to the request context. Session revocation is
// authoritative over the token's own expiry: a structurally valid token whose
// session is gone is rejected with SessionInvalid.
//
// The audit entry for the request is emitted here, exactly once, on every
// outcome: short-circuit denials write it immediately, and the success path
// defers emission until after the downstream handler so that denials raised
// by RequireRoles / RequirePermission are captured in the same entry. The
// deferred write runs even if the protected operation panics.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := audit.Entry{
			ID:         uuid.NewString(),
			Action:     r.Method,
			Resource:   r.URL.Path,
			IP:         r.RemoteAddr,
			UserAgent:  r.UserAgent(),
			OccurredAt: g.now().UTC(),
		}
		deny := func(err error) {
			reason := shared.DenyReason(err)
			entry.Outcome = audit.OutcomeDenied
			entry.Reason = reason
			g.sink.Record(r.Context(), entry)
			g.metrics.Decision(audit.OutcomeDenied, reason)
			httpx.RespondError(w, err)
		}

		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			deny(shared.ErrTokenMalformed)
			return
		}
		claims, err := g.verifier.Verify(raw)
		if err != nil {
			deny(err)
			return
		}
		entry.ActorID = &claims.UserID

		// The token carries the session it was minted for; only that exact
		// session can vouch for it. A sibling session of the same user, live
		// or not, must never stand in.
		sess, err := g.sessions.Get(r.Context(), claims.SessionID)
		if err != nil {
			// Store unreachable: fail closed, never open.
			g.logger.Error("session get", slog.Any("error", err), slog.String("session_id", claims.SessionID))
			deny(err)
			return
		}
		if sess == nil || sess.UserID != claims.UserID || !sess.Live(g.now()) {
			deny(shared.ErrSessionInvalid)
			return
		}

		identity := shared.Identity{
			UserID:    claims.UserID,
			Email:     claims.Email,
			Role:      claims.Role,
			SessionID: sess.ID,
		}
		d := &decision{outcome: audit.OutcomeGranted}
		ctx := shared.ContextWithIdentity(r.Context(), identity)
		ctx = contextWithDecision(ctx, d)

		defer func() {
			outcome, reason := d.state()
			entry.Outcome = outcome
			entry.Reason = reason
			g.sink.Record(ctx, entry)
			g.metrics.Decision(outcome, reason)
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles denies with InsufficientRole unless the identity's role is in
// the set. Must run inside Authenticate.
func (g *Guard) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role != "" {
			set[role] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(set) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			identity, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				g.misconfigured(w, "RequireRoles outside Authenticate")
				return
			}
			if _, ok := set[strings.ToLower(identity.Role)]; !ok {
				g.fail(w, r, shared.ErrInsufficientRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission resolves the caller's effective permission for the module
// and denies with PermissionDenied when the needed capability is absent. The
// resolved flags are attached to the context for the protected operation.
// Must run inside Authenticate.
func (g *Guard) RequirePermission(module string, capability permission.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				g.misconfigured(w, "RequirePermission outside Authenticate")
				return
			}
			flags, err := g.resolver.Resolve(r.Context(), identity.UserID, identity.Role, module)
			if err != nil {
				g.logger.Error("resolve permissions", slog.Any("error", err),
					slog.Int64("user_id", identity.UserID), slog.String("module", module))
				g.fail(w, r, err)
				return
			}
			if !flags.Has(capability) {
				g.fail(w, r, shared.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r.WithContext(permission.ContextWithFlags(r.Context(), module, flags)))
		})
	}
}

// fail flips the request's pending decision to denied; the audit entry and
// the metric are emitted by Authenticate's deferred write.
func (g *Guard) fail(w http.ResponseWriter, r *http.Request, err error) {
	if d := decisionFromContext(r.Context()); d != nil {
		d.deny(shared.DenyReason(err))
	}
	httpx.RespondError(w, err)
}

func (g *Guard) misconfigured(w http.ResponseWriter, detail string) {
	g.logger.Error("guard misconfigured", slog.String("detail", detail))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func bearerToken(value string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(value, prefix) {
		return "", false
	}
	tokenString := value[len(prefix):]
	if tokenString == "" {
		return "", false
	}
	return tokenString, true
}
