package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/neexbeast/travel-planner/internal/country"
	"github.com/neexbeast/travel-planner/internal/keylock"
	"github.com/neexbeast/travel-planner/internal/metrics"
	"github.com/neexbeast/travel-planner/internal/sentinel"
)

// Resolver is the country capability the manager depends on.
type Resolver interface {
	Resolve(ctx context.Context, code string) (country.Country, country.Origin, error)
	ListAll(ctx context.Context) ([]country.Country, error)
	Delete(ctx context.Context, code string) error
}

// Store is the travel plan table.
type Store interface {
	// InsertPlan returns sentinel.ErrNotFound when the referenced country is
	// no longer stored at commit time.
	InsertPlan(ctx context.Context, p TravelPlan) (TravelPlan, error)
	ListPlans(ctx context.Context) ([]View, error)
	// GetPlan returns nil, nil when id is unknown.
	GetPlan(ctx context.Context, id string) (*View, error)
	HasPlansForCountry(ctx context.Context, code string) (bool, error)
}

// Manager creates and reads travel plans and guards country deletion.
// Plan creation holds the country code's lock in shared mode from resolution
// through insert; deletion holds it exclusively across check and delete.
type Manager struct {
	resolver Resolver
	store    Store
	locks    *keylock.Locker
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewManager constructs a Manager.
func NewManager(resolver Resolver, store Store, log *slog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		resolver: resolver,
		store:    store,
		locks:    keylock.New(),
		log:      log,
		metrics:  m,
	}
}

// Create validates in, makes sure its country is resolvable and persists the plan.
func (m *Manager) Create(ctx context.Context, in CreateInput) (View, error) {
	p, err := validate(in)
	if err != nil {
		return View{}, err
	}

	code, err := country.NormalizeCode(in.CountryCode)
	if err != nil {
		return View{}, err
	}
	p.CountryCode = code

	m.log.Info("verifying country for travel plan", "code", code)
	view, retry, err := m.createOnce(ctx, p)
	if retry {
		// The country row was deleted by another process between resolve and insert.
		m.log.Warn("country vanished before plan insert, resolving again", "code", code)
		view, _, err = m.createOnce(ctx, p)
	}
	if err != nil {
		return View{}, err
	}

	m.metrics.IncPlansCreated()
	m.log.Info("travel plan created", "id", view.ID, "code", code)
	return view, nil
}

func (m *Manager) createOnce(ctx context.Context, p TravelPlan) (View, bool, error) {
	unlock := m.locks.RLock(p.CountryCode)
	defer unlock()

	c, origin, err := m.resolver.Resolve(ctx, p.CountryCode)
	if err != nil {
		return View{}, false, fmt.Errorf("resolving country for travel plan: %w", err)
	}

	saved, err := m.store.InsertPlan(ctx, p)
	if err != nil {
		return View{}, errors.Is(err, sentinel.ErrNotFound), fmt.Errorf("saving travel plan for %s: %w", p.CountryCode, err)
	}

	return View{TravelPlan: saved, Country: c, Origin: origin}, false, nil
}

// ResolveCountry resolves code under its shared lock, so a concurrent
// guarded delete of the same code cannot race the read.
func (m *Manager) ResolveCountry(ctx context.Context, code string) (country.Country, country.Origin, error) {
	normalized, err := country.NormalizeCode(code)
	if err != nil {
		return country.Country{}, "", err
	}

	unlock := m.locks.RLock(normalized)
	defer unlock()

	return m.resolver.Resolve(ctx, normalized)
}

// ListCountries returns every cached country.
func (m *Manager) ListCountries(ctx context.Context) ([]country.Country, error) {
	return m.resolver.ListAll(ctx)
}

// FindAll returns every plan joined with its cached country.
func (m *Manager) FindAll(ctx context.Context) ([]View, error) {
	views, err := m.store.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing travel plans: %w", err)
	}
	for i := range views {
		views[i].Origin = country.OriginCached
	}
	return views, nil
}

// FindOne returns the plan with the given id. Any textual UUID form is
// accepted; the store is queried with the canonical one.
func (m *Manager) FindOne(ctx context.Context, id string) (View, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return View{}, fmt.Errorf("travel plan %s: %w", id, sentinel.ErrNotFound)
	}

	view, err := m.store.GetPlan(ctx, parsed.String())
	if err != nil {
		return View{}, fmt.Errorf("getting travel plan %s: %w", id, err)
	}
	if view == nil {
		return View{}, fmt.Errorf("travel plan %s: %w", id, sentinel.ErrNotFound)
	}
	view.Origin = country.OriginCached
	return *view, nil
}

// EnsureDeletable fails with sentinel.ErrConflict when any plan references code.
func (m *Manager) EnsureDeletable(ctx context.Context, code string) error {
	normalized, err := country.NormalizeCode(code)
	if err != nil {
		return err
	}
	referenced, err := m.store.HasPlansForCountry(ctx, normalized)
	if err != nil {
		return fmt.Errorf("checking plans for country %s: %w", normalized, err)
	}
	if referenced {
		return fmt.Errorf("country %s is referenced by travel plans: %w", normalized, sentinel.ErrConflict)
	}
	return nil
}

// DeleteCountry removes a cached country if no travel plan references it.
// The reference check and the delete run under the code's exclusive lock.
func (m *Manager) DeleteCountry(ctx context.Context, code string) error {
	normalized, err := country.NormalizeCode(code)
	if err != nil {
		return err
	}

	unlock := m.locks.Lock(normalized)
	defer unlock()

	if err := m.EnsureDeletable(ctx, normalized); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			m.metrics.ObserveDeletion(metrics.DeleteConflict)
		}
		return err
	}

	if err := m.resolver.Delete(ctx, normalized); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			m.metrics.ObserveDeletion(metrics.DeleteConflict)
		case errors.Is(err, sentinel.ErrNotFound):
			m.metrics.ObserveDeletion(metrics.DeleteNotFound)
		}
		return err
	}

	m.metrics.ObserveDeletion(metrics.DeleteDeleted)
	return nil
}
