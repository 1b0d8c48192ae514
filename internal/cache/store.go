package cache

import (
	"context"
	"log/slog"

	"github.com/neexbeast/travel-planner/internal/country"
)

// CountryStore puts Redis in front of a durable country store. The durable
// store stays authoritative: Redis failures are logged and reads fall through.
type CountryStore struct {
	cache   *Cache
	backing country.Store
	log     *slog.Logger
}

// NewCountryStore wraps backing with a Redis read-through layer.
func NewCountryStore(c *Cache, backing country.Store, log *slog.Logger) *CountryStore {
	return &CountryStore{cache: c, backing: backing, log: log}
}

// GetCountry checks Redis first, then the backing store, backfilling Redis on a hit.
func (s *CountryStore) GetCountry(ctx context.Context, code string) (*country.Country, error) {
	cached, err := s.cache.Get(ctx, code)
	if err != nil {
		s.log.Warn("cache get failed", "code", code, "err", err)
	}
	if cached != nil {
		return cached, nil
	}

	stored, err := s.backing.GetCountry(ctx, code)
	if err != nil || stored == nil {
		return stored, err
	}

	if err := s.cache.Set(ctx, stored); err != nil {
		s.log.Warn("cache set failed after store hit", "code", code, "err", err)
	}
	return stored, nil
}

// InsertCountry writes through to the backing store and then to Redis.
func (s *CountryStore) InsertCountry(ctx context.Context, c country.Country) (country.Country, error) {
	stored, err := s.backing.InsertCountry(ctx, c)
	if err != nil {
		return country.Country{}, err
	}

	if err := s.cache.Set(ctx, &stored); err != nil {
		s.log.Warn("cache set failed after insert", "code", c.Code, "err", err)
	}
	return stored, nil
}

// ListCountries always reads the backing store.
func (s *CountryStore) ListCountries(ctx context.Context) ([]country.Country, error) {
	return s.backing.ListCountries(ctx)
}

// DeleteCountry evicts the Redis entry, deletes from the backing store and
// evicts again so a read that backfilled in between does not survive.
func (s *CountryStore) DeleteCountry(ctx context.Context, code string) error {
	if err := s.cache.Delete(ctx, code); err != nil {
		s.log.Warn("cache delete failed before store delete", "code", code, "err", err)
	}

	if err := s.backing.DeleteCountry(ctx, code); err != nil {
		return err
	}

	if err := s.cache.Delete(ctx, code); err != nil {
		s.log.Error("cache delete failed after store delete, entry may be stale", "code", code, "err", err)
	}
	return nil
}
