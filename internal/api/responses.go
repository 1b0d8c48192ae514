package api

import (
	"time"

	"github.com/neexbeast/travel-planner/internal/country"
	"github.com/neexbeast/travel-planner/internal/plan"
)

type errorBody struct {
	Error string `json:"error"`
}

type countryResponse struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Region     string    `json:"region"`
	Subregion  string    `json:"subregion"`
	Capital    string    `json:"capital"`
	Population int64     `json:"population"`
	Flag       string    `json:"flag"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type travelPlanResponse struct {
	ID          string          `json:"id"`
	CountryCode string          `json:"countryCode"`
	Country     countryResponse `json:"country"`
	Title       string          `json:"title"`
	StartDate   time.Time       `json:"startDate"`
	EndDate     time.Time       `json:"endDate"`
	Notes       string          `json:"notes"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func toCountryResponse(c country.Country, origin country.Origin) countryResponse {
	return countryResponse{
		Code:       c.Code,
		Name:       c.Name,
		Region:     c.Region,
		Subregion:  c.Subregion,
		Capital:    c.Capital,
		Population: c.Population,
		Flag:       c.Flag,
		Source:     string(origin),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func toTravelPlanResponse(v plan.View) travelPlanResponse {
	return travelPlanResponse{
		ID:          v.ID,
		CountryCode: v.CountryCode,
		Country:     toCountryResponse(v.Country, v.Origin),
		Title:       v.Title,
		StartDate:   v.StartDate,
		EndDate:     v.EndDate,
		Notes:       v.Notes,
		CreatedAt:   v.CreatedAt,
	}
}
