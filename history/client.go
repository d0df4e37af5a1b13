package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/theoremus-urban-solutions/fleet-replay/config"
	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

// Client is a simple HTTP client for the remote telemetry endpoints.
type Client struct {
	cfg        config.APIConfig
	httpClient *http.Client
}

// NewClient creates a client over the configured endpoints.
func NewClient(cfg config.APIConfig) *Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, baseURL, deviceID string, from, to int64, out any) error {
	if baseURL == "" {
		return nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", baseURL, err)
	}
	q := u.Query()
	q.Set("device", deviceID)
	q.Set("from", strconv.FormatInt(from, 10))
	q.Set("to", strconv.FormatInt(to, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", u.String(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, u.String())
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// FetchHistory fetches raw samples for one chunk window. Returns nil when
// no history endpoint is configured (allows cache-only operation).
func (c *Client) FetchHistory(ctx context.Context, deviceID string, from, to int64) ([]telemetry.RawSample, error) {
	var body struct {
		Raw []telemetry.RawSample `json:"raw"`
	}
	if err := c.get(ctx, c.cfg.HistoryURL, deviceID, from, to, &body); err != nil {
		return nil, err
	}
	return body.Raw, nil
}

// FetchPreview asks the lighter preview endpoint how many chunks the window
// should be split into. Zero means no recommendation.
func (c *Client) FetchPreview(ctx context.Context, deviceID string, from, to int64) (int, error) {
	var body struct {
		Chunks int `json:"chunks"`
	}
	if err := c.get(ctx, c.cfg.PreviewURL, deviceID, from, to, &body); err != nil {
		return 0, err
	}
	return body.Chunks, nil
}

// FetchFuelEvents fetches raw fuel events for the window.
func (c *Client) FetchFuelEvents(ctx context.Context, deviceID string, from, to int64) ([]telemetry.RawFuelEvent, error) {
	var body struct {
		FuelEvents []telemetry.RawFuelEvent `json:"fuelEvents"`
	}
	if err := c.get(ctx, c.cfg.FuelEventsURL, deviceID, from, to, &body); err != nil {
		return nil, err
	}
	return body.FuelEvents, nil
}
