package rideapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-tracker/internal/models"
)

// Client talks to the ride REST API: snapshot fetches for the initial load
// and the polling fallback, and the cancel command.
type Client struct {
	BaseURL   string
	AuthToken string
	HTTP      *http.Client
}

func NewClient(baseURL, authToken string) *Client {
	return &Client{
		BaseURL:   baseURL,
		AuthToken: authToken,
		HTTP:      &http.Client{Timeout: 5 * time.Second},
	}
}

// FetchSnapshot performs GET /rides/{id}. Missing payload fields stay nil
// on the returned snapshot rather than erroring.
func (c *Client) FetchSnapshot(ctx context.Context, rideID string) (models.RideSnapshot, error) {
	var snap models.RideSnapshot
	url := fmt.Sprintf("%s/rides/%s", c.BaseURL, rideID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return snap, err
	}
	c.authorize(req)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("fetch ride %s: unexpected status %d", rideID, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("fetch ride %s: decode: %w", rideID, err)
	}
	if snap.RideID == "" {
		snap.RideID = rideID
	}
	return snap, nil
}

// FetchSnapshotWithRetry retries transient fetch failures with exponential
// backoff, for the initial load on tracking start.
func (c *Client) FetchSnapshotWithRetry(ctx context.Context, rideID string, attempts int, delay time.Duration) (models.RideSnapshot, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		snap, err := c.FetchSnapshot(ctx, rideID)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return models.RideSnapshot{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return models.RideSnapshot{}, lastErr
}

// CancelRide performs POST /rides/{id}/cancel with the rider's reason.
func (c *Client) CancelRide(ctx context.Context, rideID, reason string) error {
	body, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/rides/%s/cancel", c.BaseURL, rideID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cancel ride %s: unexpected status %d", rideID, resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}
}
