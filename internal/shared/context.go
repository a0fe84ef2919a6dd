package shared

import "context"

type principalContextKey struct{}

// Principal is the authenticated actor attached to a request.
type Principal struct {
	UserID int64
	// RoleLabel is the coarse admin/employee label carried for display only.
	RoleLabel string
}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || p.UserID <= 0 {
		return Principal{}, false
	}
	return p, true
}
