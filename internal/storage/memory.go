package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neexbeast/travel-planner/internal/country"
	"github.com/neexbeast/travel-planner/internal/plan"
	"github.com/neexbeast/travel-planner/internal/sentinel"
)

// MemoryStore keeps countries and travel plans in process memory. Both tables
// share one lock, so reference checks and deletes are atomic.
type MemoryStore struct {
	mu        sync.RWMutex
	countries map[string]country.Country
	order     []string
	plans     []plan.TravelPlan
	now       func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		countries: make(map[string]country.Country),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetCountry returns a copy of the stored country, or nil, nil when code is absent.
func (s *MemoryStore) GetCountry(_ context.Context, code string) (*country.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.countries[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// InsertCountry stores c, or fails with sentinel.ErrConflict if code is already stored.
func (s *MemoryStore) InsertCountry(_ context.Context, c country.Country) (country.Country, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.countries[c.Code]; ok {
		return country.Country{}, fmt.Errorf("country %s already cached: %w", c.Code, sentinel.ErrConflict)
	}
	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.countries[c.Code] = c
	s.order = append(s.order, c.Code)
	return c, nil
}

// ListCountries returns all countries in insertion order.
func (s *MemoryStore) ListCountries(_ context.Context) ([]country.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]country.Country, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, s.countries[code])
	}
	return out, nil
}

// DeleteCountry removes code unless it is absent or referenced by a plan.
func (s *MemoryStore) DeleteCountry(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.countries[code]; !ok {
		return fmt.Errorf("country %s is not cached: %w", code, sentinel.ErrNotFound)
	}
	for _, p := range s.plans {
		if p.CountryCode == code {
			return fmt.Errorf("country %s is referenced by travel plans: %w", code, sentinel.ErrConflict)
		}
	}

	delete(s.countries, code)
	for i, c := range s.order {
		if c == code {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// InsertPlan assigns an id and creation time and stores p. It fails with
// sentinel.ErrNotFound when the referenced country is not stored.
func (s *MemoryStore) InsertPlan(_ context.Context, p plan.TravelPlan) (plan.TravelPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.countries[p.CountryCode]; !ok {
		return plan.TravelPlan{}, fmt.Errorf("country %s is no longer cached: %w", p.CountryCode, sentinel.ErrNotFound)
	}
	p.ID = uuid.NewString()
	p.CreatedAt = s.now()
	s.plans = append(s.plans, p)
	return p, nil
}

// ListPlans returns all plans joined with their countries in creation order.
func (s *MemoryStore) ListPlans(_ context.Context) ([]plan.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]plan.View, 0, len(s.plans))
	for _, p := range s.plans {
		c, ok := s.countries[p.CountryCode]
		if !ok {
			continue
		}
		views = append(views, plan.View{TravelPlan: p, Country: c})
	}
	return views, nil
}

// GetPlan returns the plan with id joined with its country, or nil, nil.
func (s *MemoryStore) GetPlan(_ context.Context, id string) (*plan.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.plans {
		if p.ID != id {
			continue
		}
		c, ok := s.countries[p.CountryCode]
		if !ok {
			return nil, nil
		}
		return &plan.View{TravelPlan: p, Country: c}, nil
	}
	return nil, nil
}

// HasPlansForCountry reports whether any plan references code.
func (s *MemoryStore) HasPlansForCountry(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.plans {
		if p.CountryCode == code {
			return true, nil
		}
	}
	return false, nil
}

// Ping satisfies the health check's pinger; memory is always reachable.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }
