package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/travel-planner/internal/country"
	"github.com/neexbeast/travel-planner/internal/sentinel"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	countries CountryService
	plans     TravelPlanService
	log       *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(countries CountryService, plans TravelPlanService, log *slog.Logger) *Handlers {
	return &Handlers{
		countries: countries,
		plans:     plans,
		log:       log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the sentinel taxonomy onto status codes. Unavailable is
// checked before NotFound because source failures match both.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var srcErr *country.SourceError
	switch {
	case errors.Is(err, sentinel.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.As(err, &srcErr):
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "external country source unavailable for " + srcErr.Code})
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, sentinel.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

// ListCountries handles GET /api/v1/countries.
func (h *Handlers) ListCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.countries.ListCountries(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]countryResponse, 0, len(countries))
	for _, c := range countries {
		out = append(out, toCountryResponse(c, country.OriginCached))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCountry handles GET /api/v1/countries/{code}.
// Cache hit → source "cache". Miss → external fetch, cache, source "external".
func (h *Handlers) GetCountry(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	c, origin, err := h.countries.ResolveCountry(r.Context(), code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCountryResponse(c, origin))
}

// DeleteCountry handles DELETE /api/v1/countries/{code}.
// 204 on success, 409 while a travel plan references the code.
func (h *Handlers) DeleteCountry(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.countries.DeleteCountry(r.Context(), code); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateTravelPlan handles POST /api/v1/travel-plans.
func (h *Handlers) CreateTravelPlan(w http.ResponseWriter, r *http.Request) {
	in, err := decodeCreatePlan(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	view, err := h.plans.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/travel-plans/"+view.ID)
	writeJSON(w, http.StatusCreated, toTravelPlanResponse(view))
}

// ListTravelPlans handles GET /api/v1/travel-plans.
func (h *Handlers) ListTravelPlans(w http.ResponseWriter, r *http.Request) {
	views, err := h.plans.FindAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]travelPlanResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toTravelPlanResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTravelPlan handles GET /api/v1/travel-plans/{id}.
func (h *Handlers) GetTravelPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	view, err := h.plans.FindOne(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTravelPlanResponse(view))
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis connectivity.
// A nil redis pinger means the Redis layer is disabled and is reported as such.
func HealthHandlerFunc(db Pinger, redis Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if redis == nil {
			redisStatus = "disabled"
		} else if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
