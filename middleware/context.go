package middleware

import (
	"context"

	"github.com/deployservice/deploy-service/tokens"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

const (
	// PrincipalKey is the context key for the authenticated principal
	PrincipalKey contextKey = "principal"
)

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetPrincipalFromContext retrieves the authenticated principal from context
func GetPrincipalFromContext(ctx context.Context) *tokens.Principal {
	if val := ctx.Value(PrincipalKey); val != nil {
		if principal, ok := val.(*tokens.Principal); ok {
			return principal
		}
	}
	return nil
}

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal *tokens.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}
