package rest

import "context"

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyTenant    contextKey = "tenant"
)

// Tenant is the authenticated caller
type Tenant struct {
	ID   string
	Name string
}

// TenantFromContext returns the tenant set by the auth middleware
func TenantFromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(contextKeyTenant).(Tenant)
	return t, ok
}

func withTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, contextKeyTenant, t)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
