// Package forecast wraps the daily weather forecast service with
// retry/backoff. The service itself is a black box returning per-day
// temperature and precipitation estimates with optional high-bound
// variants.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/async"
)

const (
	defaultBaseURL = "http://127.0.0.1:8000"
	defaultTimeout = 45 * time.Second
	defaultRetries = 2
	defaultBackoff = 800 * time.Millisecond
)

// Day is one day's forecast for a coordinate. Nil fields mean the value is
// not modeled for that day, which is different from zero.
type Day struct {
	Date     string   `json:"date"`
	T2M      *float64 `json:"t2m,omitempty"`
	T2MHi    *float64 `json:"t2m_hi,omitempty"`
	Precip   *float64 `json:"precip,omitempty"`
	PrecipHi *float64 `json:"precip_hi,omitempty"`
}

type envelope struct {
	Code int `json:"code"`
	Data struct {
		Daily []Day `json:"daily"`
	} `json:"data"`
}

// Config holds the tunables for a Client. Zero values fall back to the
// package defaults.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// Client fetches daily forecasts. Transient failures are retried with
// exponential backoff; each call is retried independently, there is no
// circuit breaking across calls.
type Client struct {
	baseURL string
	retries int
	backoff time.Duration
	client  *http.Client
}

// NewClient constructs a Client, applying defaults for unset Config fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	return &Client{
		baseURL: cfg.BaseURL,
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Daily returns the multi-day forecast for the given coordinate,
// propagating the last error once retries are exhausted.
func (c *Client) Daily(ctx context.Context, lat, lon float64) ([]Day, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("interp", "1")
	params.Set("vars", "T2M,PRECIP")
	endpoint := c.baseURL + "/forecast?" + params.Encode()

	env, err := async.Retry(ctx, c.retries, c.backoff, func(ctx context.Context) (*envelope, error) {
		return c.get(ctx, endpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("forecast for (%f, %f): %w", lat, lon, err)
	}

	return env.Data.Daily, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &env, nil
}
