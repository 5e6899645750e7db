package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prana-chat/internal/logger"
)

// DefaultIPInfoURL is the ipinfo.io lookup for the caller's own address.
const DefaultIPInfoURL = "https://ipinfo.io/json"

// IPInfo resolves an approximate location from the public IP address.
type IPInfo struct {
	url        string
	token      string
	httpClient *http.Client
}

// ipInfoResponse is the subset of the ipinfo.io reply we use.
type ipInfoResponse struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Loc     string `json:"loc"`
}

// NewIPInfo creates an ipinfo.io locator. An empty url uses DefaultIPInfoURL.
func NewIPInfo(url, token string, timeout time.Duration) *IPInfo {
	if url == "" {
		url = DefaultIPInfoURL
	}
	return &IPInfo{
		url:   url,
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Locate queries ipinfo.io once. Every failure yields a failed Location.
func (c *IPInfo) Locate(ctx context.Context) Location {
	lat, lon, err := c.lookup(ctx)
	if err != nil {
		logger.Debug("ip location lookup failed", "error", err)
		return Failed(err)
	}
	return Resolved(lat, lon)
}

func (c *IPInfo) lookup(ctx context.Context) (float64, float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("ipinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, 0, fmt.Errorf("ipinfo returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info ipInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, 0, fmt.Errorf("failed to parse ipinfo response: %w", err)
	}
	lat, lon, err := parseLoc(info.Loc)
	if err != nil {
		return 0, 0, err
	}

	logger.Debug("ip location resolved", "city", info.City, "region", info.Region, "country", info.Country)
	return lat, lon, nil
}

// parseLoc parses ipinfo's "lat,lng" field.
func parseLoc(loc string) (float64, float64, error) {
	latStr, lonStr, found := strings.Cut(loc, ",")
	if !found {
		return 0, 0, fmt.Errorf("invalid loc %q", loc)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude in %q: %w", loc, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude in %q: %w", loc, err)
	}
	if !ValidCoordinates(lat, lon) {
		return 0, 0, fmt.Errorf("coordinates out of range in %q", loc)
	}
	return lat, lon, nil
}
