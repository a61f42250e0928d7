/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:          Request logging
  2. Recoverer:       Panic recovery (500 instead of crash)
  3. RequestID:       Unique ID per request for tracing
  4. CORS:            Cross-origin requests for frontend
  5. RequireIdentity: Caller resolution for routes that need it

ROUTE GROUPS:
  /api/users/*      User registration and lookup (no identity required)
  /api/reports/*    Report lifecycle (identity required)
  /api/rewards/*    Reward ledger reads (identity required, leaderboard open)

SEE ALSO:
  - handlers.go: Handler implementations
  - identity.go: Caller resolution middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Use(h.RequireIdentity)
			r.Post("/", h.SubmitReport)
			r.Get("/", h.ListReports)
			r.Get("/{id}", h.GetReport)
			r.Put("/{id}/verify", h.VerifyReport)
			r.Put("/{id}/collect", h.CollectReport)
		})

		// Reward routes
		r.Route("/rewards", func(r chi.Router) {
			r.Get("/leaderboard", h.Leaderboard)
			r.Group(func(r chi.Router) {
				r.Use(h.RequireIdentity)
				r.Get("/history", h.RewardHistory)
				r.Get("/stats", h.RewardStats)
			})
		})
	})

	return r
}
