// Package router dispatches requests against a fixed, declarative route table.
//
// Routes are matched segment by segment: static segments compare exactly and
// {name} segments capture one path segment positionally. A path that matches
// no route shape yields 404, a shape without the requested method yields 405.
// Protected routes run behind the auth gate supplied at construction.
package router

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"runtime/debug"
	"sort"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/calendar-api/internal/auth"
	"github.com/upb/calendar-api/middleware"
	"github.com/upb/calendar-api/utils"
	"go.uber.org/zap"
)

var paramName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Route describes one entry of the route table
type Route struct {
	Method    string
	Pattern   string
	Protected bool
	Handler   http.Handler
}

type segment struct {
	literal string
	param   string
}

func (s segment) isParam() bool {
	return s.param != ""
}

type compiledRoute struct {
	route    Route
	segments []segment
	handler  http.Handler
	literals int
}

// Router is the request dispatcher. It is read-only after construction
// and safe for concurrent use.
type Router struct {
	routes []compiledRoute
	logger *zap.Logger
}

// NewRouter validates the route table and builds a Router.
// gate wraps the handlers of protected routes and may be nil only when no
// route is protected.
func NewRouter(routes []Route, gate func(http.Handler) http.Handler, logger *zap.Logger) (*Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	compiled := make([]compiledRoute, 0, len(routes))
	for i, route := range routes {
		c, err := compile(route)
		if err != nil {
			return nil, fmt.Errorf("route %d (%s %s): %w", i, route.Method, route.Pattern, err)
		}
		if route.Protected {
			if gate == nil {
				return nil, fmt.Errorf("route %s %s: protected route requires an auth gate", route.Method, route.Pattern)
			}
			c.handler = gate(bindIdentity(route.Handler))
		}

		for _, existing := range compiled {
			if existing.route.Method == c.route.Method && sameShape(existing.segments, c.segments) {
				return nil, fmt.Errorf("route %s %s conflicts with %s", c.route.Method, c.route.Pattern, existing.route.Pattern)
			}
		}
		compiled = append(compiled, c)
	}

	return &Router{
		routes: compiled,
		logger: logger,
	}, nil
}

func compile(route Route) (compiledRoute, error) {
	if route.Method == "" {
		return compiledRoute{}, errors.New("method is required")
	}
	if route.Method != strings.ToUpper(route.Method) {
		return compiledRoute{}, errors.New("method must be upper case")
	}
	if route.Handler == nil {
		return compiledRoute{}, errors.New("handler is required")
	}
	if !strings.HasPrefix(route.Pattern, "/") {
		return compiledRoute{}, errors.New("pattern must begin with /")
	}

	c := compiledRoute{route: route, handler: route.Handler}
	seen := make(map[string]bool)
	for _, part := range splitPath(route.Pattern) {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := part[1 : len(part)-1]
			if !paramName.MatchString(name) {
				return compiledRoute{}, fmt.Errorf("invalid parameter %q", part)
			}
			if seen[name] {
				return compiledRoute{}, fmt.Errorf("duplicate parameter %q", name)
			}
			seen[name] = true
			c.segments = append(c.segments, segment{param: name})
			continue
		}
		if strings.ContainsAny(part, "{}") {
			return compiledRoute{}, fmt.Errorf("malformed segment %q", part)
		}
		c.segments = append(c.segments, segment{literal: part})
		c.literals++
	}
	return c, nil
}

// sameShape reports whether two patterns match exactly the same paths
func sameShape(a, b []segment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].isParam() != b[i].isParam() {
			return false
		}
		if !a[i].isParam() && a[i].literal != b[i].literal {
			return false
		}
	}
	return true
}

// splitPath splits a path on "/" dropping empty segments
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c compiledRoute) match(segments []string) (map[string]string, bool) {
	if len(segments) != len(c.segments) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range c.segments {
		if seg.isParam() {
			if params == nil {
				params = make(map[string]string, 1)
			}
			params[seg.param] = segments[i]
			continue
		}
		if seg.literal != segments[i] {
			return nil, false
		}
	}
	return params, true
}

// ServeHTTP implements http.Handler
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ww, ok := w.(chimw.WrapResponseWriter)
	if !ok {
		ww = chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	}
	defer rt.recoverPanic(ww, r)

	segments := requestSegments(r)

	var (
		best    *compiledRoute
		params  map[string]string
		allowed []string
	)
	for i := range rt.routes {
		c := &rt.routes[i]
		p, ok := c.match(segments)
		if !ok {
			continue
		}
		if c.route.Method != r.Method {
			allowed = append(allowed, c.route.Method)
			continue
		}
		// Static segments take precedence over captures.
		if best == nil || c.literals > best.literals {
			best = c
			params = p
		}
	}

	if best == nil {
		if len(allowed) == 0 {
			rt.write(ww, utils.WriteNotFound(ww, "Route not found"))
			return
		}
		ww.Header().Set("Allow", allowHeader(allowed))
		rt.write(ww, utils.WriteMethodNotAllowed(ww, ""))
		return
	}

	req := &Request{
		Method:   r.Method,
		Pattern:  best.route.Pattern,
		Segments: segments,
		Params:   params,
	}
	best.handler.ServeHTTP(ww, r.WithContext(WithRequest(r.Context(), req)))
}

// bindIdentity copies the identity established by the gate onto the parsed request
func bindIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if req := RequestFromContext(r.Context()); req != nil {
			req.Identity = middleware.GetIdentityFromContext(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}

func requestSegments(r *http.Request) []string {
	raw := splitPath(r.URL.EscapedPath())
	segments := make([]string, len(raw))
	for i, s := range raw {
		if decoded, err := url.PathUnescape(s); err == nil {
			segments[i] = decoded
		} else {
			segments[i] = s
		}
	}
	return segments
}

func allowHeader(methods []string) string {
	seen := make(map[string]bool, len(methods))
	unique := methods[:0]
	for _, m := range methods {
		if !seen[m] {
			seen[m] = true
			unique = append(unique, m)
		}
	}
	sort.Strings(unique)
	return strings.Join(unique, ", ")
}

func (rt *Router) write(w http.ResponseWriter, err error) {
	if err != nil {
		rt.logger.Error("failed to write response", zap.Error(err))
	}
}

// recoverPanic is the dispatch boundary catch-all. Authentication failures
// map to 401 or 403, everything else to 500. When the handler already
// started a response nothing more is written.
func (rt *Router) recoverPanic(ww chimw.WrapResponseWriter, r *http.Request) {
	rec := recover()
	if rec == nil {
		return
	}
	if rec == http.ErrAbortHandler {
		panic(rec)
	}

	err, ok := rec.(error)
	if !ok {
		err = fmt.Errorf("%v", rec)
	}

	status, message := classifyFailure(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}

	if ww.Status() != 0 {
		rt.logger.Error("panic after response started", append(fields, zap.ByteString("stack", debug.Stack()))...)
		return
	}

	if status == http.StatusInternalServerError {
		rt.logger.Error("unhandled failure in request", append(fields, zap.ByteString("stack", debug.Stack()))...)
	} else {
		rt.logger.Warn("authentication failure at dispatch boundary", fields...)
	}
	rt.write(ww, utils.WriteError(ww, status, message, nil))
}

func classifyFailure(err error) (int, string) {
	switch {
	case errors.Is(err, middleware.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthorized access"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusForbidden, "Invalid or expired token"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
