package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the upstream nearby-search endpoint.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"

// ErrUpstreamUnavailable indicates the place-search provider is unreachable
// or failing. Callers should answer HTTP 503 with a retry hint.
var ErrUpstreamUnavailable = errors.New("places: upstream provider unavailable")

// Place is one search result.
type Place struct {
	PlaceID string   `json:"placeId"`
	Name    string   `json:"name"`
	Address string   `json:"address,omitempty"`
	Rating  float64  `json:"rating,omitempty"`
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Types   []string `json:"types,omitempty"`
	OpenNow *bool    `json:"openNow,omitempty"`
}

// Client calls the upstream place-search provider. The call is a plain
// parameter mapping; all interesting state lives in the caller.
type Client struct {
	// APIKey authenticates with the provider.
	APIKey string

	// BaseURL overrides the provider endpoint, mainly for tests.
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a 10-second-timeout
	// client is used.
	HTTPClient *http.Client
}

// NewClient creates a provider client with a 10-second request timeout.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// upstream response shapes, trimmed to the fields this service forwards.
type upstreamResponse struct {
	Status       string           `json:"status"`
	ErrorMessage string           `json:"error_message"`
	Results      []upstreamResult `json:"results"`
}

type upstreamResult struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Vicinity string   `json:"vicinity"`
	Rating   float64  `json:"rating"`
	Types    []string `json:"types"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	OpeningHours *struct {
		OpenNow bool `json:"open_now"`
	} `json:"opening_hours"`
}

// Search performs a nearby search with the validated request parameters.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Place, error) {
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	params := url.Values{}
	params.Set("location", req.Location())
	params.Set("radius", strconv.Itoa(req.Radius))
	params.Set("key", c.APIKey)
	if req.Keyword != "" {
		params.Set("keyword", req.Keyword)
	}
	if req.Type != "" {
		params.Set("type", req.Type)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, httpResp.StatusCode)
	}

	var upstream upstreamResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&upstream); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrUpstreamUnavailable, err)
	}

	switch upstream.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []Place{}, nil
	default:
		return nil, fmt.Errorf("%w: provider status %s: %s", ErrUpstreamUnavailable, upstream.Status, upstream.ErrorMessage)
	}

	results := make([]Place, 0, len(upstream.Results))
	for _, r := range upstream.Results {
		place := Place{
			PlaceID: r.PlaceID,
			Name:    r.Name,
			Address: r.Vicinity,
			Rating:  r.Rating,
			Lat:     r.Geometry.Location.Lat,
			Lng:     r.Geometry.Location.Lng,
			Types:   r.Types,
		}
		if r.OpeningHours != nil {
			openNow := r.OpeningHours.OpenNow
			place.OpenNow = &openNow
		}
		results = append(results, place)
	}
	return results, nil
}
