package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/travel-planner/internal/api"
	"github.com/neexbeast/travel-planner/internal/country"
	"github.com/neexbeast/travel-planner/internal/plan"
	"github.com/neexbeast/travel-planner/internal/sentinel"
)

// ---- mock implementations ----

type mockCountries struct {
	resolveFn func(ctx context.Context, code string) (country.Country, country.Origin, error)
	listFn    func(ctx context.Context) ([]country.Country, error)
	deleteFn  func(ctx context.Context, code string) error
}

func (m *mockCountries) ResolveCountry(ctx context.Context, code string) (country.Country, country.Origin, error) {
	return m.resolveFn(ctx, code)
}
func (m *mockCountries) ListCountries(ctx context.Context) ([]country.Country, error) {
	return m.listFn(ctx)
}
func (m *mockCountries) DeleteCountry(ctx context.Context, code string) error {
	return m.deleteFn(ctx, code)
}

type mockPlans struct {
	createFn  func(ctx context.Context, in plan.CreateInput) (plan.View, error)
	findAllFn func(ctx context.Context) ([]plan.View, error)
	findOneFn func(ctx context.Context, id string) (plan.View, error)
}

func (m *mockPlans) Create(ctx context.Context, in plan.CreateInput) (plan.View, error) {
	return m.createFn(ctx, in)
}
func (m *mockPlans) FindAll(ctx context.Context) ([]plan.View, error) {
	return m.findAllFn(ctx)
}
func (m *mockPlans) FindOne(ctx context.Context, id string) (plan.View, error) {
	return m.findOneFn(ctx, id)
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// ---- helpers ----

const testToken = "secret-token"

const planID = "5d6f1c2a-8e4b-4f7a-9c3d-2b1a0e9f8d7c"

func france() country.Country {
	return country.Country{
		Code:       "FRA",
		Name:       "France",
		Region:     "Europe",
		Subregion:  "Western Europe",
		Capital:    "Paris",
		Population: 67391582,
		Flag:       "https://flagcdn.com/w320/fr.png",
		CreatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func parisView(origin country.Origin) plan.View {
	return plan.View{
		TravelPlan: plan.TravelPlan{
			ID:          planID,
			CountryCode: "FRA",
			Title:       "Paris trip",
			StartDate:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			EndDate:     time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
			CreatedAt:   time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		Country: france(),
		Origin:  origin,
	}
}

func newTestRouter(countries api.CountryService, plans api.TravelPlanService) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := api.NewHandlers(countries, plans, log)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "travel_plans_created_total 0\n")
	})
	return api.NewRouter(h, testToken, &mockPinger{}, &mockPinger{}, metrics, log)
}

func do(t *testing.T, router http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func authHeader() http.Header {
	return http.Header{api.TokenHeader: {testToken}}
}

// ---- countries ----

func TestGetCountry_Sources(t *testing.T) {
	for _, origin := range []country.Origin{country.OriginCached, country.OriginFetched} {
		t.Run(string(origin), func(t *testing.T) {
			var asked string
			countries := &mockCountries{resolveFn: func(_ context.Context, code string) (country.Country, country.Origin, error) {
				asked = code
				return france(), origin, nil
			}}

			rec := do(t, newTestRouter(countries, &mockPlans{}), http.MethodGet, "/api/v1/countries/fra", "", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, "fra", asked, "normalization is left to the service")

			body := decodeBody[map[string]any](t, rec)
			assert.Equal(t, "FRA", body["code"])
			assert.Equal(t, "Paris", body["capital"])
			assert.Equal(t, string(origin), body["source"])
			assert.EqualValues(t, 67391582, body["population"])
		})
	}
}

func TestGetCountry_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"invalid code", fmt.Errorf("country code \"FR\" must be 3 letters: %w", sentinel.ErrInvalidArgument), http.StatusBadRequest, "must be 3 letters"},
		{"unknown code", fmt.Errorf("country code ZZZ not known: %w", sentinel.ErrNotFound), http.StatusNotFound, "ZZZ"},
		{"source down", &country.SourceError{Code: "FRA", Err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable, "unavailable for FRA"},
		{"store failure", errors.New("db gone"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			countries := &mockCountries{resolveFn: func(context.Context, string) (country.Country, country.Origin, error) {
				return country.Country{}, "", tt.err
			}}

			rec := do(t, newTestRouter(countries, &mockPlans{}), http.MethodGet, "/api/v1/countries/XXX", "", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody[map[string]string](t, rec)
			assert.Contains(t, body["error"], tt.wantBody)
			assert.NotContains(t, body["error"], "db gone", "internal errors are not leaked")
		})
	}
}

func TestGetCountry_SourceDownSetsRetryAfter(t *testing.T) {
	countries := &mockCountries{resolveFn: func(context.Context, string) (country.Country, country.Origin, error) {
		return country.Country{}, "", fmt.Errorf("resolving: %w", &country.SourceError{Code: "FRA", Err: context.DeadlineExceeded})
	}}

	rec := do(t, newTestRouter(countries, &mockPlans{}), http.MethodGet, "/api/v1/countries/FRA", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
}

func TestListCountries(t *testing.T) {
	deu := france()
	deu.Code, deu.Name = "DEU", "Germany"
	countries := &mockCountries{listFn: func(context.Context) ([]country.Country, error) {
		return []country.Country{france(), deu}, nil
	}}

	rec := do(t, newTestRouter(countries, &mockPlans{}), http.MethodGet, "/api/v1/countries", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[[]map[string]any](t, rec)
	require.Len(t, body, 2)
	assert.Equal(t, "FRA", body[0]["code"])
	assert.Equal(t, "Germany", body[1]["name"])
	assert.Equal(t, "cache", body[1]["source"])
}

func TestListCountries_Empty(t *testing.T) {
	countries := &mockCountries{listFn: func(context.Context) ([]country.Country, error) { return nil, nil }}

	rec := do(t, newTestRouter(countries, &mockPlans{}), http.MethodGet, "/api/v1/countries", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestDeleteCountry(t *testing.T) {
	var deleted string
	countries := &mockCountries{deleteFn: func(_ context.Context, code string) error {
		deleted = code
		return nil
	}}

	rec := do(t, newTestRouter(countries, &mockPlans{}), http.MethodDelete, "/api/v1/countries/jpn", "", authHeader())
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "jpn", deleted)
}

func TestDeleteCountry_BearerToken(t *testing.T) {
	countries := &mockCountries{deleteFn: func(context.Context, string) error { return nil }}

	rec := do(t, newTestRouter(countries, &mockPlans{}), http.MethodDelete, "/api/v1/countries/JPN", "",
		http.Header{"Authorization": {"Bearer " + testToken}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteCountry_Unauthorized(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
	}{
		{"missing", nil},
		{"wrong header token", http.Header{api.TokenHeader: {"nope"}}},
		{"wrong bearer", http.Header{"Authorization": {"Bearer nope"}}},
		{"basic auth", http.Header{"Authorization": {"Basic c2VjcmV0LXRva2Vu"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			countries := &mockCountries{deleteFn: func(context.Context, string) error {
				called = true
				return nil
			}}

			rec := do(t, newTestRouter(countries, &mockPlans{}), http.MethodDelete, "/api/v1/countries/JPN", "", tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called)
		})
	}
}

func TestDeleteCountry_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"referenced", fmt.Errorf("country FRA is referenced by travel plans: %w", sentinel.ErrConflict), http.StatusConflict},
		{"not cached", fmt.Errorf("country FRA: %w", sentinel.ErrNotFound), http.StatusNotFound},
		{"invalid", fmt.Errorf("bad code: %w", sentinel.ErrInvalidArgument), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			countries := &mockCountries{deleteFn: func(context.Context, string) error { return tt.err }}

			rec := do(t, newTestRouter(countries, &mockPlans{}), http.MethodDelete, "/api/v1/countries/FRA", "", authHeader())
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestReadsDoNotRequireToken(t *testing.T) {
	countries := &mockCountries{
		listFn: func(context.Context) ([]country.Country, error) { return nil, nil },
		resolveFn: func(context.Context, string) (country.Country, country.Origin, error) {
			return france(), country.OriginCached, nil
		},
	}
	plans := &mockPlans{findAllFn: func(context.Context) ([]plan.View, error) { return nil, nil }}
	router := newTestRouter(countries, plans)

	for _, path := range []string{"/api/v1/countries", "/api/v1/countries/FRA", "/api/v1/travel-plans"} {
		rec := do(t, router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

// ---- travel plans ----

func TestCreateTravelPlan(t *testing.T) {
	var got plan.CreateInput
	plans := &mockPlans{createFn: func(_ context.Context, in plan.CreateInput) (plan.View, error) {
		got = in
		return parisView(country.OriginFetched), nil
	}}

	body := `{"countryCode":"FRA","title":"Paris trip","startDate":"2025-06-01","endDate":"2025-06-10","notes":"museums"}`
	rec := do(t, newTestRouter(&mockCountries{}, plans), http.MethodPost, "/api/v1/travel-plans", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/v1/travel-plans/"+planID, rec.Header().Get("Location"))

	assert.Equal(t, plan.CreateInput{
		CountryCode: "FRA",
		Title:       "Paris trip",
		StartDate:   "2025-06-01",
		EndDate:     "2025-06-10",
		Notes:       "museums",
	}, got)

	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, planID, resp["id"])
	assert.Equal(t, "FRA", resp["countryCode"])
	assert.Equal(t, "2025-06-01T00:00:00Z", resp["startDate"])
	c := resp["country"].(map[string]any)
	assert.Equal(t, "Paris", c["capital"])
	assert.Equal(t, "external", c["source"])
}

func TestCreateTravelPlan_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "request body is empty"},
		{"malformed json", `{"countryCode":`, "invalid JSON body"},
		{"unknown field", `{"countryCode":"FRA","title":"t","startDate":"2025-06-01","endDate":"2025-06-10","budget":1}`, "invalid JSON body"},
		{"missing fields", `{"countryCode":"FRA"}`, "title is required"},
		{"blank title", `{"countryCode":"FRA","title":"  ","startDate":"2025-06-01","endDate":"2025-06-10"}`, "title is required"},
		{"short code", `{"countryCode":"FR","title":"t","startDate":"2025-06-01","endDate":"2025-06-10"}`, "exactly 3 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			plans := &mockPlans{createFn: func(context.Context, plan.CreateInput) (plan.View, error) {
				called = true
				return plan.View{}, nil
			}}

			rec := do(t, newTestRouter(&mockCountries{}, plans), http.MethodPost, "/api/v1/travel-plans", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], tt.want)
			assert.False(t, called)
		})
	}
}

func TestCreateTravelPlan_ListsAllMissingFields(t *testing.T) {
	rec := do(t, newTestRouter(&mockCountries{}, &mockPlans{}), http.MethodPost, "/api/v1/travel-plans", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	msg := decodeBody[map[string]string](t, rec)["error"]
	for _, field := range []string{"countryCode", "title", "startDate", "endDate"} {
		assert.Contains(t, msg, field+" is required")
	}
}

func TestCreateTravelPlan_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"date order", fmt.Errorf("start date must precede end date: %w", sentinel.ErrInvalidArgument), http.StatusBadRequest},
		{"unknown country", fmt.Errorf("resolving country for travel plan: %w", sentinel.ErrNotFound), http.StatusNotFound},
		{"source down", fmt.Errorf("resolving country for travel plan: %w", &country.SourceError{Code: "FRA", Err: errors.New("eof")}), http.StatusServiceUnavailable},
		{"store failure", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans := &mockPlans{createFn: func(context.Context, plan.CreateInput) (plan.View, error) {
				return plan.View{}, tt.err
			}}

			body := `{"countryCode":"FRA","title":"t","startDate":"2025-06-10","endDate":"2025-06-01"}`
			rec := do(t, newTestRouter(&mockCountries{}, plans), http.MethodPost, "/api/v1/travel-plans", body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCreateTravelPlan_BodyTooLarge(t *testing.T) {
	notes := bytes.Repeat([]byte("a"), 2<<20)
	body := `{"countryCode":"FRA","title":"t","startDate":"2025-06-01","endDate":"2025-06-10","notes":"` + string(notes) + `"}`

	rec := do(t, newTestRouter(&mockCountries{}, &mockPlans{}), http.MethodPost, "/api/v1/travel-plans", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTravelPlans(t *testing.T) {
	plans := &mockPlans{findAllFn: func(context.Context) ([]plan.View, error) {
		return []plan.View{parisView(country.OriginCached)}, nil
	}}

	rec := do(t, newTestRouter(&mockCountries{}, plans), http.MethodGet, "/api/v1/travel-plans", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[[]map[string]any](t, rec)
	require.Len(t, body, 1)
	assert.Equal(t, "Paris trip", body[0]["title"])
	assert.Equal(t, "cache", body[0]["country"].(map[string]any)["source"])
}

func TestListTravelPlans_Empty(t *testing.T) {
	plans := &mockPlans{findAllFn: func(context.Context) ([]plan.View, error) { return []plan.View{}, nil }}

	rec := do(t, newTestRouter(&mockCountries{}, plans), http.MethodGet, "/api/v1/travel-plans", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetTravelPlan(t *testing.T) {
	plans := &mockPlans{findOneFn: func(_ context.Context, id string) (plan.View, error) {
		if id != planID {
			return plan.View{}, fmt.Errorf("travel plan %s: %w", id, sentinel.ErrNotFound)
		}
		return parisView(country.OriginCached), nil
	}}
	router := newTestRouter(&mockCountries{}, plans)

	rec := do(t, router, http.MethodGet, "/api/v1/travel-plans/"+planID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, planID, decodeBody[map[string]any](t, rec)["id"])

	rec = do(t, router, http.MethodGet, "/api/v1/travel-plans/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ---- health / metrics ----

func TestHealthHandler(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name       string
		db         api.Pinger
		redis      api.Pinger
		wantStatus int
		want       map[string]string
	}{
		{"all ok", &mockPinger{}, &mockPinger{}, http.StatusOK,
			map[string]string{"status": "ok", "db": "ok", "redis": "ok"}},
		{"redis disabled", &mockPinger{}, nil, http.StatusOK,
			map[string]string{"status": "ok", "db": "ok", "redis": "disabled"}},
		{"db down", &mockPinger{err: errors.New("refused")}, &mockPinger{}, http.StatusServiceUnavailable,
			map[string]string{"status": "degraded", "db": "error", "redis": "ok"}},
		{"redis down", &mockPinger{}, &mockPinger{err: errors.New("refused")}, http.StatusServiceUnavailable,
			map[string]string{"status": "degraded", "db": "ok", "redis": "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			api.HealthHandlerFunc(tt.db, tt.redis, log)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.want, decodeBody[map[string]string](t, rec))
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	rec := do(t, newTestRouter(&mockCountries{}, &mockPlans{}), http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "travel_plans_created_total")
}

func TestRateLimit(t *testing.T) {
	countries := &mockCountries{listFn: func(context.Context) ([]country.Country, error) { return nil, nil }}
	router := newTestRouter(countries, &mockPlans{})

	var last int
	for i := 0; i < 61; i++ {
		last = do(t, router, http.MethodGet, "/api/v1/countries", "", nil).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
