package auth

import "context"

type principalKey struct{}

// WithPrincipal 将调用方写入上下文。
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	if principal == nil {
		return ctx
	}
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext 读取上下文中的调用方。
func PrincipalFromContext(ctx context.Context) *Principal {
	if ctx == nil {
		return nil
	}
	principal, _ := ctx.Value(principalKey{}).(*Principal)
	return principal
}
