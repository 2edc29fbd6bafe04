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
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/authorizations/*  Prior-authorization lifecycle
  /api/claims/*          Claim lifecycle, payments, denials
  /api/denials/*         Appeal sub-flow
  /api/reconcile         Pure reconciliation calculation
  /api/reports/*         Aggregation reports
  /api/licenses/*        Clinician license directory

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Authorization routes
		r.Route("/authorizations", func(r chi.Router) {
			r.Get("/", h.ListAuthorizations)
			r.Post("/", h.CreateAuthorization)
			r.Get("/{id}", h.GetAuthorization)
			r.Put("/{id}", h.UpdateAuthorization)
			r.Post("/{id}/documents", h.AttachAuthorizationDocuments)
			r.Post("/{id}/validate", h.ValidateAuthorization)
			r.Post("/{id}/submit", h.SubmitAuthorization)
			r.Post("/{id}/events", h.ApplyAuthorizationEvent)
			r.Post("/{id}/merge", h.MergeAuthorizations)
		})

		// Claim routes
		r.Route("/claims", func(r chi.Router) {
			r.Get("/", h.ListClaims)
			r.Post("/", h.CreateClaim)
			r.Get("/{id}", h.GetClaim)
			r.Post("/{id}/lines", h.AddServiceLine)
			r.Put("/{id}/lines/{index}", h.UpdateServiceLine)
			r.Delete("/{id}/lines/{index}", h.RemoveServiceLine)
			r.Post("/{id}/documents", h.AttachClaimDocuments)
			r.Post("/{id}/merge", h.MergeClaims)
			r.Post("/{id}/validate", h.ValidateClaim)
			r.Post("/{id}/events", h.ApplyClaimEvent)
			r.Post("/{id}/deny", h.DenyClaim)
			r.Post("/{id}/payment", h.RecordClaimPayment)
			r.Get("/{id}/payments", h.ListClaimPayments)
			r.Get("/{id}/denial", h.GetClaimDenial)
		})

		// Denial / appeal routes
		r.Route("/denials", func(r chi.Router) {
			r.Get("/", h.ListDenials)
			r.Get("/{id}", h.GetDenial)
			r.Post("/{id}/events", h.ApplyAppealEvent)
			r.Post("/{id}/resolve", h.ResolveAppeal)
		})

		// Reconciliation and reporting
		r.Post("/reconcile", h.Reconcile)
		r.Route("/reports", func(r chi.Router) {
			r.Get("/summary", h.SummaryReport)
		})

		// License directory
		r.Route("/licenses", func(r chi.Router) {
			r.Get("/", h.ListLicenses)
			r.Put("/", h.SaveLicense)
			r.Delete("/{clinicianId}", h.DeleteLicense)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
