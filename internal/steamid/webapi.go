package steamid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.steampowered.com"

var ErrVanityNotFound = errors.New("vanity name not found")

// WebAPI talks to the public Steam Web API.
type WebAPI struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

// WebAPIConfig configures a WebAPI client.
type WebAPIConfig struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewWebAPI creates a rate-limited Steam Web API client.
func NewWebAPI(cfg WebAPIConfig) *WebAPI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &WebAPI{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
	}
}

type vanityResponse struct {
	Response struct {
		SteamID string `json:"steamid"`
		Success int    `json:"success"`
		Message string `json:"message"`
	} `json:"response"`
}

// ResolveVanity calls ISteamUser/ResolveVanityURL.
func (a *WebAPI) ResolveVanity(ctx context.Context, name string) (SID64, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("waiting for steam api rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("key", a.apiKey)
	q.Set("vanityurl", name)
	endpoint := a.baseURL + "/ISteamUser/ResolveVanityURL/v0001/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("creating steam api request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("steam api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status from steam api: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return 0, fmt.Errorf("reading steam api response: %w", err)
	}

	var body vanityResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return 0, fmt.Errorf("decoding steam api response: %w", err)
	}
	if body.Response.Success != 1 {
		return 0, fmt.Errorf("%w: %s", ErrVanityNotFound, name)
	}

	return Parse(body.Response.SteamID)
}
