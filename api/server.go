/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: zap request logging (includes the request ID)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. Metrics:       Prometheus request count and latency
  5. CORS:          Cross-origin requests for frontend

ROUTE GROUPS:
  /api/contracts/*   Contracts, valuation, billing, profit, renewal, adjustments
  /api/proration     Stand-alone proration preview
  /api/reports/*     Portfolio reports
  /api/renewals      Renewal dashboard
  /api/scenarios/*   Demo scenarios
  /metrics           Prometheus
  /health            Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions holds router-level settings taken from configuration.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.Post("/", h.CreateContract)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetContract)
				r.Get("/value", h.GetValue)
				r.Get("/billing", h.GetBilling)
				r.Get("/profit", h.GetProfit)
				r.Get("/renewal", h.GetRenewal)
				r.Get("/reminders", h.ListReminders)

				r.Get("/adjustments", h.ListAdjustments)
				r.Post("/adjustments", h.CreateAdjustment)
				r.Post("/adjustments/preview", h.PreviewAdjustment)

				r.Post("/value-changes", h.CreateValueChange)
				r.Post("/value-changes/preview", h.PreviewValueChange)
			})
		})

		r.Post("/proration", h.ComputeProration)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/profit", h.GetPortfolioProfit)
		})

		r.Get("/renewals", h.ListRenewals)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
