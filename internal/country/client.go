package country

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	httpTimeout = 10 * time.Second

	// DefaultBaseURL is the RestCountries v3.1 API root.
	DefaultBaseURL = "https://restcountries.com/v3.1"

	alphaFields = "cca3,name,region,subregion,capital,population,flags"
)

// RestCountriesClient looks up countries by alpha-3 code on RestCountries
// (no API key required).
type RestCountriesClient struct {
	baseURL string
	client  *http.Client
}

// NewRestCountriesClient constructs a client against the production API.
func NewRestCountriesClient() *RestCountriesClient {
	return NewRestCountriesClientWithURL(DefaultBaseURL)
}

// NewRestCountriesClientWithURL constructs a client pointing at a custom base URL (for tests).
func NewRestCountriesClientWithURL(baseURL string) *RestCountriesClient {
	return &RestCountriesClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: httpTimeout},
	}
}

type restCountriesEntry struct {
	CCA3 string `json:"cca3"`
	Name struct {
		Common   string `json:"common"`
		Official string `json:"official"`
	} `json:"name"`
	Region     string   `json:"region"`
	Subregion  string   `json:"subregion"`
	Capital    []string `json:"capital"`
	Population int64    `json:"population"`
	Flags      struct {
		PNG string `json:"png"`
		SVG string `json:"svg"`
	} `json:"flags"`
}

// Fetch retrieves the country with the given alpha-3 code.
// Returns nil, nil when the source has no such country; any other failure
// (transport, unexpected status, undecodable body) is returned as an error.
func (c *RestCountriesClient) Fetch(ctx context.Context, code string) (*Country, error) {
	endpoint := c.baseURL + "/alpha/" + url.PathEscape(code) + "?fields=" + alphaFields

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", endpoint, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("restcountries fetch for %s: %w", code, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		return nil, nil
	default:
		return nil, fmt.Errorf("restcountries fetch for %s returned status %d", code, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading restcountries response for %s: %w", code, err)
	}

	entry, err := decodeEntry(body)
	if err != nil {
		return nil, fmt.Errorf("decoding restcountries response for %s: %w", code, err)
	}
	if entry == nil {
		return nil, nil
	}

	return entry.toCountry(code), nil
}

// decodeEntry accepts both the single-object and the one-element-array shapes
// the alpha endpoint has served over time.
func decodeEntry(body []byte) (*restCountriesEntry, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []restCountriesEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, nil
		}
		return &entries[0], nil
	}

	var entry restCountriesEntry
	if err := json.Unmarshal(trimmed, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (e *restCountriesEntry) toCountry(requested string) *Country {
	name := e.Name.Common
	if name == "" {
		name = e.Name.Official
	}
	if name == "" {
		name = "Unknown"
	}

	capital := ""
	if len(e.Capital) > 0 {
		capital = e.Capital[0]
	}

	flag := e.Flags.PNG
	if flag == "" {
		flag = e.Flags.SVG
	}

	code := strings.ToUpper(e.CCA3)
	if code == "" {
		code = requested
	}

	population := e.Population
	if population < 0 {
		population = 0
	}

	return &Country{
		Code:       code,
		Name:       name,
		Region:     e.Region,
		Subregion:  e.Subregion,
		Capital:    capital,
		Population: population,
		Flag:       flag,
	}
}
