// Package geocode resolves free-text place names to coordinates through a
// Nominatim-style endpoint.
package geocode

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

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "trip-planner/1.0"
)

// ErrNotFound is returned when the geocoder has no match for a query.
var ErrNotFound = errors.New("place not found")

// Hit is the best match for a geocode query.
type Hit struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Config holds the tunables for a Client. Zero values fall back to the
// package defaults. CountryCodes, when set, biases results to those
// countries (comma-separated ISO codes).
type Config struct {
	BaseURL      string
	UserAgent    string
	CountryCodes string
	Timeout      time.Duration
}

// Client performs forward geocoding.
type Client struct {
	baseURL      string
	userAgent    string
	countryCodes string
	client       *http.Client
}

// NewClient constructs a Client, applying defaults for unset Config fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		userAgent:    cfg.UserAgent,
		countryCodes: cfg.CountryCodes,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

type nominatimHit struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search returns the single best match for q, or ErrNotFound.
func (c *Client) Search(ctx context.Context, q string) (*Hit, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}
	endpoint := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode for %q: %w", q, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode for %q: status %d", q, resp.StatusCode)
	}

	var hits []nominatimHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, fmt.Errorf("decoding geocode response for %q: %w", q, err)
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("geocode for %q: %w", q, ErrNotFound)
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing geocode lat for %q: %w", q, err)
	}
	lon, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing geocode lon for %q: %w", q, err)
	}

	return &Hit{Name: hits[0].DisplayName, Lat: lat, Lon: lon}, nil
}
