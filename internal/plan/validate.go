package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/neexbeast/travel-planner/internal/sentinel"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// parseDate accepts the ISO forms the request layer lets through. Inputs
// without a zone are taken as UTC.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%s %q is not a valid ISO date: %w", field, value, sentinel.ErrInvalidArgument)
}

func validate(in CreateInput) (TravelPlan, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return TravelPlan{}, fmt.Errorf("title must not be empty: %w", sentinel.ErrInvalidArgument)
	}

	start, err := parseDate("startDate", in.StartDate)
	if err != nil {
		return TravelPlan{}, err
	}
	end, err := parseDate("endDate", in.EndDate)
	if err != nil {
		return TravelPlan{}, err
	}
	if !start.Before(end) {
		return TravelPlan{}, fmt.Errorf("start date %s must precede end date %s: %w",
			start.Format(time.RFC3339), end.Format(time.RFC3339), sentinel.ErrInvalidArgument)
	}

	return TravelPlan{
		Title:     title,
		StartDate: start,
		EndDate:   end,
		Notes:     in.Notes,
	}, nil
}
