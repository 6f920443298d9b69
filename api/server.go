/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (zap)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the officer dashboard

ROUTE GROUPS:
  /api/program          Program configuration
  /api/members/*        Members, tiers, availability, ledger, redemptions
  /api/redemptions/*    Redemption status changes
  /api/admin/*          Clock override, tier sweep
  /api/scenarios/*      Demo scenarios
  /api/reset            Database reset (dev only)

SECURITY NOTE:
  No authentication middleware. This is operator tooling for a local or
  private deployment; all endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/program", h.GetProgram)

		// Member routes
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Post("/", h.CreateMember)
			r.Get("/{id}", h.GetMember)
			r.Get("/{id}/tier", h.GetTierStatus)
			r.Get("/{id}/availability", h.GetAvailability)
			r.Post("/{id}/redemptions/validate", h.ValidateRedemption)
			r.Post("/{id}/transfers/validate", h.ValidateTransfer)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Post("/{id}/transactions", h.CreateTransaction)
			r.Get("/{id}/redemptions", h.ListRedemptions)
			r.Post("/{id}/redemptions", h.CreateRedemption)
		})

		// Redemption routes
		r.Route("/redemptions", func(r chi.Router) {
			r.Post("/{id}/status", h.UpdateRedemptionStatus)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/clock", h.GetClock)
			r.Put("/clock", h.SetClock)
			r.Delete("/clock", h.ClearClock)
			r.Get("/tier-sweep", h.GetTierSweep)
			r.Post("/tier-sweep", h.RunTierSweep)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Post("/reset", h.ResetDatabase)
	})

	return r
}

// requestLogger logs one line per request with status and latency.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
