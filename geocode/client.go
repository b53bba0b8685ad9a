// Package geocode resolves address strings to coordinates through a
// persistent cache backed by a rate-limited external provider.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"farm_prospector/config"
)

// Client queries the geocoding provider. The provider's usage policy
// requires at most one request per second, so the client serializes lookups
// and enforces a minimum delay between them.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client

	mu       sync.Mutex
	lastReq  time.Time
	minDelay time.Duration
}

func NewClient(cfg config.GeocodeConfig) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		minDelay: cfg.MinDelay,
	}
}

type providerResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Lookup geocodes a free-text query. Only one lookup is in flight at a
// time; callers are paced to the provider's minimum delay.
func (c *Client) Lookup(ctx context.Context, query string) (float64, float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := c.minDelay - time.Since(c.lastReq); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		}
	}
	c.lastReq = time.Now()

	reqURL := fmt.Sprintf("%s?q=%s&format=json&limit=1", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return 0, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var results []providerResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, fmt.Errorf("decode response: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("no match for %q", query)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse lon: %w", err)
	}
	return lat, lon, nil
}
