package rbac

import "context"

type schemaPresenceKey struct{}

// WithSchemaPresence stamps the request context with the result of the
// schema probe so gates and the resolver agree on one answer per request.
func WithSchemaPresence(ctx context.Context, present bool) context.Context {
	return context.WithValue(ctx, schemaPresenceKey{}, present)
}

// SchemaPresent reads the stamped probe result. Unstamped contexts report false.
func SchemaPresent(ctx context.Context) bool {
	present, _ := ctx.Value(schemaPresenceKey{}).(bool)
	return present
}
