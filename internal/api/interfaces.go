package api

import (
	"context"

	"github.com/neexbeast/travel-planner/internal/country"
	"github.com/neexbeast/travel-planner/internal/plan"
)

// CountryService defines the country operations needed by handlers.
type CountryService interface {
	ResolveCountry(ctx context.Context, code string) (country.Country, country.Origin, error)
	ListCountries(ctx context.Context) ([]country.Country, error)
	DeleteCountry(ctx context.Context, code string) error
}

// TravelPlanService defines the travel plan operations needed by handlers.
type TravelPlanService interface {
	Create(ctx context.Context, in plan.CreateInput) (plan.View, error)
	FindAll(ctx context.Context) ([]plan.View, error)
	FindOne(ctx context.Context, id string) (plan.View, error)
}
