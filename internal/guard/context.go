package guard

import (
	"context"
	"sync"

	"github.com/atlas-erp/atlas-access/internal/audit"
)

// decision carries the pending access outcome through the middleware chain so
// downstream checks can flip a granted request to denied before the single
// audit entry is written.
type decision struct {
	mu      sync.Mutex
	outcome string
	reason  string
}

func (d *decision) deny(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcome = audit.OutcomeDenied
	d.reason = reason
}

func (d *decision) state() (outcome, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outcome, d.reason
}

type decisionContextKey struct{}

func contextWithDecision(ctx context.Context, d *decision) context.Context {
	return context.WithValue(ctx, decisionContextKey{}, d)
}

func decisionFromContext(ctx context.Context) *decision {
	d, _ := ctx.Value(decisionContextKey{}).(*decision)
	return d
}
