package router

import (
	"context"

	"github.com/upb/calendar-api/internal/auth"
)

type contextKey struct{}

// Request is the parsed view of the request the dispatcher matched.
// Identity is set once the auth gate of a protected route has accepted the
// request. The body stays on the http.Request and is decoded by handlers.
type Request struct {
	Method   string
	Pattern  string
	Segments []string
	Params   map[string]string
	Identity *auth.Identity
}

// WithRequest attaches the parsed request to ctx
func WithRequest(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, contextKey{}, req)
}

// RequestFromContext returns the parsed request, or nil outside the dispatcher
func RequestFromContext(ctx context.Context) *Request {
	req, _ := ctx.Value(contextKey{}).(*Request)
	return req
}

// Param returns the named path parameter, or "" when absent
func Param(ctx context.Context, name string) string {
	req := RequestFromContext(ctx)
	if req == nil {
		return ""
	}
	return req.Params[name]
}

// Identity returns the authenticated caller, or nil on public routes
func Identity(ctx context.Context) *auth.Identity {
	req := RequestFromContext(ctx)
	if req == nil {
		return nil
	}
	return req.Identity
}
