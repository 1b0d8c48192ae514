package country

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/neexbeast/travel-planner/internal/metrics"
	"github.com/neexbeast/travel-planner/internal/sentinel"
)

// DefaultFetchTimeout bounds a single call to the external source.
const DefaultFetchTimeout = 5 * time.Second

// Store is the keyed country table the resolver reads and populates.
type Store interface {
	// GetCountry returns nil, nil when code is not stored.
	GetCountry(ctx context.Context, code string) (*Country, error)
	// InsertCountry returns sentinel.ErrConflict when code is already stored.
	InsertCountry(ctx context.Context, c Country) (Country, error)
	ListCountries(ctx context.Context) ([]Country, error)
	// DeleteCountry removes code unless a travel plan references it
	// (sentinel.ErrConflict) or it is not stored (sentinel.ErrNotFound).
	DeleteCountry(ctx context.Context, code string) error
}

// Source is the external country lookup. It returns nil, nil when the code is
// unknown and an error only for transport or decoding failures.
type Source interface {
	Fetch(ctx context.Context, code string) (*Country, error)
}

// SourceError reports that the external source failed rather than answered.
// It matches both sentinel.ErrUnavailable and sentinel.ErrNotFound so callers
// that only know about NotFound keep treating the code as unresolvable.
type SourceError struct {
	Code string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("external country source unavailable for %s: %v", e.Code, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{sentinel.ErrUnavailable, sentinel.ErrNotFound, e.Err}
}

// Resolver maps country codes to cached records, fetching from the source on a
// miss. Concurrent misses for the same code share one fetch.
type Resolver struct {
	store        Store
	source       Source
	group        singleflight.Group
	fetchTimeout time.Duration
	log          *slog.Logger
	metrics      *metrics.Metrics
}

// NewResolver constructs a Resolver. A non-positive fetchTimeout selects
// DefaultFetchTimeout.
func NewResolver(store Store, source Source, fetchTimeout time.Duration, log *slog.Logger, m *metrics.Metrics) *Resolver {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Resolver{
		store:        store,
		source:       source,
		fetchTimeout: fetchTimeout,
		log:          log,
		metrics:      m,
	}
}

type resolution struct {
	country Country
	origin  Origin
}

// Resolve returns the country for code and whether it was already cached.
// Store hit → cached. Miss → one shared fetch, insert, fetched.
func (r *Resolver) Resolve(ctx context.Context, code string) (Country, Origin, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return Country{}, "", err
	}

	existing, err := r.store.GetCountry(ctx, normalized)
	if err != nil {
		return Country{}, "", fmt.Errorf("looking up country %s: %w", normalized, err)
	}
	if existing != nil {
		r.metrics.ObserveResolution(string(OriginCached))
		return *existing, OriginCached, nil
	}

	// The flight outlives any single caller: it runs on a context detached from
	// the leader's cancellation so joiners are not failed by the leader leaving.
	flightCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(normalized, func() (v any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("country resolution panicked", "code", normalized, "recover", rec)
				err = fmt.Errorf("resolving country %s panicked: %v", normalized, rec)
			}
		}()
		return r.fetchAndStore(flightCtx, normalized)
	})

	select {
	case <-ctx.Done():
		return Country{}, "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Country{}, "", res.Err
		}
		out := res.Val.(resolution)
		r.metrics.ObserveResolution(string(out.origin))
		return out.country, out.origin, nil
	}
}

func (r *Resolver) fetchAndStore(ctx context.Context, code string) (resolution, error) {
	// A flight that finished just before this one started may have populated the store.
	existing, err := r.store.GetCountry(ctx, code)
	if err != nil {
		return resolution{}, fmt.Errorf("looking up country %s: %w", code, err)
	}
	if existing != nil {
		return resolution{country: *existing, origin: OriginCached}, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	r.log.Info("country not cached, querying external source", "code", code)
	fetched, err := r.source.Fetch(fetchCtx, code)
	if err != nil {
		r.metrics.ObserveFetch(metrics.FetchError)
		r.log.Error("external country source failed", "code", code, "err", err)
		return resolution{}, &SourceError{Code: code, Err: err}
	}
	if fetched == nil {
		r.metrics.ObserveFetch(metrics.FetchNotFound)
		r.log.Info("external source has no such country", "code", code)
		return resolution{}, fmt.Errorf("country code %s not known to the external source: %w", code, sentinel.ErrNotFound)
	}
	r.metrics.ObserveFetch(metrics.FetchFound)

	record := *fetched
	if record.Code != code {
		r.log.Warn("external source returned a different code", "code", code, "returned", record.Code)
		record.Code = code
	}

	stored, err := r.store.InsertCountry(ctx, record)
	if errors.Is(err, sentinel.ErrConflict) {
		// Another process inserted the same code after our miss.
		existing, getErr := r.store.GetCountry(ctx, code)
		if getErr != nil {
			return resolution{}, fmt.Errorf("re-reading country %s after duplicate insert: %w", code, getErr)
		}
		if existing == nil {
			return resolution{}, fmt.Errorf("country %s vanished after duplicate insert: %w", code, err)
		}
		return resolution{country: *existing, origin: OriginCached}, nil
	}
	if err != nil {
		return resolution{}, fmt.Errorf("caching country %s: %w", code, err)
	}

	r.log.Info("country cached", "code", code)
	return resolution{country: stored, origin: OriginFetched}, nil
}

// ListAll returns every cached country in creation order.
func (r *Resolver) ListAll(ctx context.Context) ([]Country, error) {
	countries, err := r.store.ListCountries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing countries: %w", err)
	}
	return countries, nil
}

// Delete removes a cached country. It must only be called from inside the
// plan manager's exclusive section for code; the store re-checks references
// atomically as a backstop against writers in other processes.
func (r *Resolver) Delete(ctx context.Context, code string) error {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return err
	}
	if err := r.store.DeleteCountry(ctx, normalized); err != nil {
		return fmt.Errorf("deleting country %s: %w", normalized, err)
	}
	r.log.Info("country deleted", "code", normalized)
	return nil
}
