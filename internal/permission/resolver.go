package permission

import "context"

// Store looks up stored permission rows. The boolean reports row presence:
// an override row with every flag false is a valid, explicit grant of nothing
// and must not be conflated with "no row".
type Store interface {
	Override(ctx context.Context, userID int64, module string) (Flags, bool, error)
	Default(ctx context.Context, role, module string) (Flags, bool, error)
}

// Resolver computes effective permissions per request.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve cascades override -> role default -> deny-all, in strict order with
// early returns. An override replaces the default in its entirety; flags are
// never merged across the two levels. Missing rows resolve to explicit false,
// never to an error. Store failures are returned as-is so callers fail closed.
func (r *Resolver) Resolve(ctx context.Context, userID int64, role, module string) (Flags, error) {
	override, ok, err := r.store.Override(ctx, userID, module)
	if err != nil {
		return Flags{}, err
	}
	if ok {
		return override, nil
	}

	def, ok, err := r.store.Default(ctx, role, module)
	if err != nil {
		return Flags{}, err
	}
	if ok {
		return def, nil
	}

	return Flags{}, nil
}
