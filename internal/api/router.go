package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wakala/exchangedesk/internal/repository"
)

// NewRouter creates the Chi router with the bridge webhook and the
// read-only operations API mounted. A non-empty token guards /api/v1.
func NewRouter(store *repository.Store, intake EventIntake, token string) http.Handler {
	h := &Handlers{
		store:  store,
		intake: intake,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(bearerAuth(token))

		// Bridge webhook.
		r.Post("/events", h.IngestEvent)

		// Orders.
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)

		// Pricing.
		r.Get("/pricing/tiers", h.ListTiers)
		r.Get("/payment-methods", h.ListPaymentMethods)
		r.Get("/settings", h.GetSettings)

		// Dashboard.
		r.Get("/dashboard", h.GetDashboard)
	})

	return r
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte("Bearer " + token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
