package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds and returns the Chi router with all routes configured.
// Only country deletion requires the API token. Rate limiting is applied
// globally: 60 requests per minute per IP. metrics may be nil.
func NewRouter(handlers *Handlers, token string, db Pinger, redis Pinger, metrics http.Handler, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(db, redis, log))
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/v1/countries", func(r chi.Router) {
		r.Get("/", handlers.ListCountries)
		r.Get("/{code}", handlers.GetCountry)
		r.With(TokenAuth(token)).Delete("/{code}", handlers.DeleteCountry)
	})

	r.Route("/api/v1/travel-plans", func(r chi.Router) {
		r.Post("/", handlers.CreateTravelPlan)
		r.Get("/", handlers.ListTravelPlans)
		r.Get("/{id}", handlers.GetTravelPlan)
	})

	return r
}
