package auth

import "context"

// Request-scoped values placed by the HTTP authentication middleware. The key
// types are unexported so other packages can only reach them through these
// helpers.

type principalContextKey struct{}
type tokenContextKey struct{}

// ContextWithPrincipal returns a context carrying the verified principal.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext reports the verified principal, if one was attached.
// The second return distinguishes an anonymous request from a principal with
// zero-value fields.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// ContextWithToken carries the raw bearer string alongside the principal.
// Logout and session listing need the presented token itself, not just its
// verified claims.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token attached by ContextWithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
