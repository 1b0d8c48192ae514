package country

import (
	"fmt"
	"strings"
	"time"

	"github.com/neexbeast/travel-planner/internal/sentinel"
)

// Origin reports whether a resolved country came from the local store or was
// fetched from the external source during the call.
type Origin string

const (
	OriginCached  Origin = "cache"
	OriginFetched Origin = "external"
)

// Country is a cached country record keyed by its normalized alpha-3 code.
type Country struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Region     string    `json:"region"`
	Subregion  string    `json:"subregion"`
	Capital    string    `json:"capital"`
	Population int64     `json:"population"`
	Flag       string    `json:"flag"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NormalizeCode trims and uppercases code and checks it is exactly three
// ASCII letters. Normalizing an already normalized code returns it unchanged.
func NormalizeCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != 3 {
		return "", fmt.Errorf("country code %q must be 3 letters: %w", code, sentinel.ErrInvalidArgument)
	}
	for i := 0; i < len(normalized); i++ {
		if c := normalized[i]; c < 'A' || c > 'Z' {
			return "", fmt.Errorf("country code %q must contain only letters: %w", code, sentinel.ErrInvalidArgument)
		}
	}
	return normalized, nil
}
