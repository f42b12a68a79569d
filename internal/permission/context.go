package permission

import "context"

type flagsContextKey struct {
	module string
}

// ContextWithFlags attaches the resolved flags for a module to the context.
func ContextWithFlags(ctx context.Context, module string, flags Flags) context.Context {
	return context.WithValue(ctx, flagsContextKey{module: module}, flags)
}

// FlagsFromContext returns the resolved flags for a module, if present.
func FlagsFromContext(ctx context.Context, module string) (Flags, bool) {
	flags, ok := ctx.Value(flagsContextKey{module: module}).(Flags)
	return flags, ok
}
