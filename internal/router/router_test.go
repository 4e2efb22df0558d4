package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/calendar-api/internal/auth"
	"github.com/upb/calendar-api/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func okHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Handler", name)
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, Param(r.Context(), "id"))
	})
}

// denyGate rejects every request, recording that it ran
func denyGate(calls *int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*calls++
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
}

func passGate(next http.Handler) http.Handler {
	return next
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	msg, _ := body["error"].(string)
	return msg
}

func calendarRoutes() []Route {
	return []Route{
		{Method: http.MethodGet, Pattern: "/api/events", Handler: okHandler("list")},
		{Method: http.MethodPost, Pattern: "/api/events", Protected: true, Handler: okHandler("create")},
		{Method: http.MethodPut, Pattern: "/api/events/{id}", Protected: true, Handler: okHandler("update")},
		{Method: http.MethodDelete, Pattern: "/api/events/{id}", Protected: true, Handler: okHandler("delete")},
	}
}

func TestRouter_Dispatch(t *testing.T) {
	rt, err := NewRouter(calendarRoutes(), passGate, zaptest.NewLogger(t))
	require.NoError(t, err)

	tests := []struct {
		name          string
		method        string
		path          string
		expectStatus  int
		expectHandler string
		expectBody    string
		expectError   string
		expectAllow   string
	}{
		{name: "static route", method: http.MethodGet, path: "/api/events", expectStatus: http.StatusOK, expectHandler: "list"},
		{name: "trailing slash", method: http.MethodGet, path: "/api/events/", expectStatus: http.StatusOK, expectHandler: "list"},
		{name: "capture", method: http.MethodPut, path: "/api/events/abc123", expectStatus: http.StatusOK, expectHandler: "update", expectBody: "abc123"},
		{name: "escaped capture", method: http.MethodDelete, path: "/api/events/a%20b", expectStatus: http.StatusOK, expectHandler: "delete", expectBody: "a b"},
		{name: "unknown path", method: http.MethodGet, path: "/api/unknown", expectStatus: http.StatusNotFound, expectError: "Route not found"},
		{name: "too many segments", method: http.MethodGet, path: "/api/events/1/extra", expectStatus: http.StatusNotFound, expectError: "Route not found"},
		{name: "root", method: http.MethodGet, path: "/", expectStatus: http.StatusNotFound, expectError: "Route not found"},
		{name: "get on id shape", method: http.MethodGet, path: "/api/events/1", expectStatus: http.StatusMethodNotAllowed, expectError: "Method not allowed", expectAllow: "DELETE, PUT"},
		{name: "patch on collection", method: http.MethodPatch, path: "/api/events", expectStatus: http.StatusMethodNotAllowed, expectError: "Method not allowed", expectAllow: "GET, POST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			rt.ServeHTTP(w, req)

			assert.Equal(t, tt.expectStatus, w.Code)
			if tt.expectHandler != "" {
				assert.Equal(t, tt.expectHandler, w.Header().Get("X-Handler"))
			}
			if tt.expectBody != "" {
				assert.Equal(t, tt.expectBody, w.Body.String())
			}
			if tt.expectError != "" {
				assert.Equal(t, tt.expectError, errorMessage(t, w))
			}
			if tt.expectAllow != "" {
				assert.Equal(t, tt.expectAllow, w.Header().Get("Allow"))
			}
		})
	}
}

func TestRouter_ProtectedRoutesRunGate(t *testing.T) {
	calls := 0
	rt, err := NewRouter(calendarRoutes(), denyGate(&calls), zap.NewNop())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, calls)

	w = httptest.NewRecorder()
	rt.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/events", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Header().Get("X-Handler"))
	assert.Equal(t, 1, calls)

	w = httptest.NewRecorder()
	rt.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events/1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, 1, calls, "405 is decided before the gate")
}

func TestRouter_StaticBeatsCapture(t *testing.T) {
	routes := []Route{
		{Method: http.MethodGet, Pattern: "/api/events/{id}", Handler: okHandler("by-id")},
		{Method: http.MethodGet, Pattern: "/api/events/upcoming", Handler: okHandler("upcoming")},
	}
	rt, err := NewRouter(routes, nil, zap.NewNop())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events/upcoming", nil))
	assert.Equal(t, "upcoming", w.Header().Get("X-Handler"))

	w = httptest.NewRecorder()
	rt.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events/42", nil))
	assert.Equal(t, "by-id", w.Header().Get("X-Handler"))
}

func TestRouter_RequestContext(t *testing.T) {
	var got *Request
	routes := []Route{{
		Method:  http.MethodPut,
		Pattern: "/api/events/{id}",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = RequestFromContext(r.Context())
		}),
	}}
	rt, err := NewRouter(routes, nil, zap.NewNop())
	require.NoError(t, err)

	rt.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/events/e-1", nil))

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/api/events/{id}", got.Pattern)
	assert.Equal(t, []string{"api", "events", "e-1"}, got.Segments)
	assert.Equal(t, map[string]string{"id": "e-1"}, got.Params)
}

func TestParam_OutsideDispatcher(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, RequestFromContext(req.Context()))
	assert.Empty(t, Param(req.Context(), "id"))
}

func TestNewRouter_Validation(t *testing.T) {
	h := okHandler("x")

	tests := []struct {
		name   string
		routes []Route
		gate   func(http.Handler) http.Handler
		errMsg string
	}{
		{name: "empty method", routes: []Route{{Pattern: "/a", Handler: h}}, errMsg: "method is required"},
		{name: "lower case method", routes: []Route{{Method: "get", Pattern: "/a", Handler: h}}, errMsg: "upper case"},
		{name: "missing handler", routes: []Route{{Method: "GET", Pattern: "/a"}}, errMsg: "handler is required"},
		{name: "relative pattern", routes: []Route{{Method: "GET", Pattern: "a", Handler: h}}, errMsg: "must begin with /"},
		{name: "bad param name", routes: []Route{{Method: "GET", Pattern: "/a/{1x}", Handler: h}}, errMsg: "invalid parameter"},
		{name: "empty param", routes: []Route{{Method: "GET", Pattern: "/a/{}", Handler: h}}, errMsg: "invalid parameter"},
		{name: "malformed segment", routes: []Route{{Method: "GET", Pattern: "/a/x{id}", Handler: h}}, errMsg: "malformed segment"},
		{name: "duplicate param", routes: []Route{{Method: "GET", Pattern: "/a/{id}/{id}", Handler: h}}, errMsg: "duplicate parameter"},
		{
			name: "same shape conflict",
			routes: []Route{
				{Method: "PUT", Pattern: "/api/events/{id}", Handler: h},
				{Method: "PUT", Pattern: "/api/events/{eventId}", Handler: h},
			},
			errMsg: "conflicts with",
		},
		{
			name: "identical static conflict",
			routes: []Route{
				{Method: "GET", Pattern: "/api/events", Handler: h},
				{Method: "GET", Pattern: "/api/events/", Handler: h},
			},
			errMsg: "conflicts with",
		},
		{name: "protected without gate", routes: []Route{{Method: "POST", Pattern: "/a", Protected: true, Handler: h}}, errMsg: "requires an auth gate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRouter(tt.routes, tt.gate, zap.NewNop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewRouter_DistinctMethodsShareShape(t *testing.T) {
	rt, err := NewRouter(calendarRoutes(), passGate, zap.NewNop())
	require.NoError(t, err)

	for method, handler := range map[string]string{http.MethodGet: "list", http.MethodPost: "create"} {
		w := httptest.NewRecorder()
		rt.ServeHTTP(w, httptest.NewRequest(method, "/api/events", nil))
		assert.Equal(t, handler, w.Header().Get("X-Handler"), method)
	}
}

func TestRouter_BindsIdentity(t *testing.T) {
	identityGate := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithIdentity(r.Context(), &auth.Identity{ID: "u1", Email: "u1@example.com"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	var seen *Request
	record := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	rt, err := NewRouter([]Route{
		{Method: http.MethodGet, Pattern: "/api/events", Handler: record},
		{Method: http.MethodPut, Pattern: "/api/events/{id}", Protected: true, Handler: record},
	}, identityGate, zap.NewNop())
	require.NoError(t, err)

	t.Run("protected route", func(t *testing.T) {
		w := httptest.NewRecorder()
		rt.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/events/e1", nil))

		require.NotNil(t, seen)
		require.NotNil(t, seen.Identity)
		assert.Equal(t, "u1", seen.Identity.ID)
		assert.Equal(t, "e1", seen.Params["id"])
	})

	t.Run("public route", func(t *testing.T) {
		seen = nil
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
		rt.ServeHTTP(w, req)

		require.NotNil(t, seen)
		assert.Nil(t, seen.Identity)
		assert.Nil(t, Identity(req.Context()))
	})
}

func TestRouter_CatchAll(t *testing.T) {
	tests := []struct {
		name          string
		panicWith     interface{}
		expectStatus  int
		expectMessage string
	}{
		{
			name:          "unauthenticated failure",
			panicWith:     fmt.Errorf("gate: %w", middleware.ErrUnauthenticated),
			expectStatus:  http.StatusUnauthorized,
			expectMessage: "Unauthorized access",
		},
		{
			name:          "invalid token failure",
			panicWith:     auth.ErrInvalidToken,
			expectStatus:  http.StatusForbidden,
			expectMessage: "Invalid or expired token",
		},
		{
			name:          "unrelated error",
			panicWith:     errors.New("database exploded"),
			expectStatus:  http.StatusInternalServerError,
			expectMessage: "Internal server error",
		},
		{
			name:          "non error value",
			panicWith:     "boom",
			expectStatus:  http.StatusInternalServerError,
			expectMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routes := []Route{{
				Method:  http.MethodPost,
				Pattern: "/api/events",
				Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					panic(tt.panicWith)
				}),
			}}
			rt, err := NewRouter(routes, nil, zap.NewNop())
			require.NoError(t, err)

			w := httptest.NewRecorder()
			rt.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/events", nil))

			assert.Equal(t, tt.expectStatus, w.Code)
			assert.Equal(t, tt.expectMessage, errorMessage(t, w))
		})
	}
}

func TestRouter_CatchAllAfterResponseStarted(t *testing.T) {
	routes := []Route{{
		Method:  http.MethodGet,
		Pattern: "/api/events",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("partial"))
			panic("late failure")
		}),
	}}
	rt, err := NewRouter(routes, nil, zap.NewNop())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial", w.Body.String())
}

func TestRouter_AbortHandlerPropagates(t *testing.T) {
	routes := []Route{{
		Method:  http.MethodGet,
		Pattern: "/api/events",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}),
	}}
	rt, err := NewRouter(routes, nil, zap.NewNop())
	require.NoError(t, err)

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		rt.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/events", nil))
	})
}
