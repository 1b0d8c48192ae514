package plan

import (
	"time"

	"github.com/neexbeast/travel-planner/internal/country"
)

// TravelPlan is a stored trip referencing a country by normalized code.
type TravelPlan struct {
	ID          string
	CountryCode string
	Title       string
	StartDate   time.Time
	EndDate     time.Time
	Notes       string
	CreatedAt   time.Time
}

// View is a travel plan joined with its country at read time.
type View struct {
	TravelPlan
	Country country.Country
	Origin  country.Origin
}

// CreateInput carries the already type-checked request fields.
// Dates are RFC 3339 timestamps or YYYY-MM-DD calendar dates.
type CreateInput struct {
	CountryCode string
	Title       string
	StartDate   string
	EndDate     string
	Notes       string
}
