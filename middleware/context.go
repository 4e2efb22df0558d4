package middleware

import (
	"context"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/calendar-api/internal/auth"
)

// Context key type to avoid collisions
type contextKey string

const (
	// IdentityKey is the context key for the authenticated identity
	IdentityKey contextKey = "identity"

	// TokenKey is the context key for the presented bearer token
	TokenKey contextKey = "token"
)

// BearerToken is the credential that authenticated the current request.
type BearerToken struct {
	Raw       string
	ExpiresAt time.Time
}

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetIdentityFromContext retrieves the authenticated identity from context
func GetIdentityFromContext(ctx context.Context) *auth.Identity {
	if val := ctx.Value(IdentityKey); val != nil {
		if identity, ok := val.(*auth.Identity); ok {
			return identity
		}
	}
	return nil
}

// WithIdentity adds the authenticated identity to the context
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetTokenFromContext retrieves the bearer token that authenticated the request
func GetTokenFromContext(ctx context.Context) *BearerToken {
	if val := ctx.Value(TokenKey); val != nil {
		if token, ok := val.(*BearerToken); ok {
			return token
		}
	}
	return nil
}

// WithToken adds the bearer token to the context
func WithToken(ctx context.Context, token *BearerToken) context.Context {
	return context.WithValue(ctx, TokenKey, token)
}
