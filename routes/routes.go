package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/calendar-api/app"
	"github.com/upb/calendar-api/handlers"
	"github.com/upb/calendar-api/internal/router"
	"github.com/upb/calendar-api/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) (http.Handler, error) {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	dispatcher, err := router.NewRouter(routeTable(deps), deps.AuthMiddleware.RequireAuth, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build route table: %w", err)
	}

	// The dispatcher owns 404 and 405 for every path.
	r.Handle("/", dispatcher)
	r.Handle("/*", dispatcher)

	return r, nil
}

func routeTable(deps *app.Dependencies) []router.Route {
	var db handlers.DatabaseChecker
	if deps.DB != nil {
		db = deps.DB
	}
	health := handlers.NewHealthHandler(db, deps.Logger)
	users := handlers.NewAuthHandler(deps.AuthService, deps.BodyReader, deps.Logger)
	events := handlers.NewEventHandler(deps.EventService, deps.BodyReader, deps.Logger)

	return []router.Route{
		// Health
		{Method: http.MethodGet, Pattern: "/healthz", Handler: http.HandlerFunc(health.HandleHealth)},
		{Method: http.MethodGet, Pattern: "/readyz", Handler: http.HandlerFunc(health.HandleReadiness)},

		// Users
		{Method: http.MethodPost, Pattern: "/api/users/register", Handler: http.HandlerFunc(users.HandleRegister)},
		{Method: http.MethodPost, Pattern: "/api/users/login", Handler: http.HandlerFunc(users.HandleLogin)},
		{Method: http.MethodPost, Pattern: "/api/users/logout", Protected: true, Handler: http.HandlerFunc(users.HandleLogout)},

		// Events
		{Method: http.MethodGet, Pattern: "/api/events", Handler: http.HandlerFunc(events.HandleListEvents)},
		{Method: http.MethodPost, Pattern: "/api/events", Protected: true, Handler: http.HandlerFunc(events.HandleCreateEvent)},
		{Method: http.MethodPut, Pattern: "/api/events/{id}", Protected: true, Handler: http.HandlerFunc(events.HandleUpdateEvent)},
		{Method: http.MethodDelete, Pattern: "/api/events/{id}", Protected: true, Handler: http.HandlerFunc(events.HandleDeleteEvent)},
	}
}
