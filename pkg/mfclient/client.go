// Package mfclient is a Go client for the Magic Formula dashboard API
// served by "mf serve".
package mfclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"magicformula/internal/httpapi"
	"magicformula/internal/util"
)

// ErrNotFound is returned when the server has no such resource.
var ErrNotFound = errors.New("not found")

// Client talks to a running dashboard.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// Attempts bounds retries of transient failures (network errors and 5xx).
	Attempts  int
	BaseDelay time.Duration
}

// NewClient creates a client for the dashboard at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		Attempts:   3,
		BaseDelay:  200 * time.Millisecond,
	}
}

// Summary retrieves the run summary.
func (c *Client) Summary(ctx context.Context) (*httpapi.SummaryJSON, error) {
	var out httpapi.SummaryJSON
	if err := c.get(ctx, "/api/summary", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Comparison retrieves the cumulative comparison table.
func (c *Client) Comparison(ctx context.Context) (*httpapi.ComparisonJSON, error) {
	var out httpapi.ComparisonJSON
	if err := c.get(ctx, "/api/comparison", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Holdings retrieves the holdings of every period.
func (c *Client) Holdings(ctx context.Context) ([]httpapi.HoldingsJSON, error) {
	var out []httpapi.HoldingsJSON
	if err := c.get(ctx, "/api/holdings", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HoldingsFor retrieves the holdings of one period (YYYY-MM or YYYY-MM-DD).
func (c *Client) HoldingsFor(ctx context.Context, period string) (*httpapi.HoldingsJSON, error) {
	var out httpapi.HoldingsJSON
	if err := c.get(ctx, "/api/holdings/"+url.PathEscape(period), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Heatmap retrieves the monthly heatmap of "strategy" or "benchmark".
func (c *Client) Heatmap(ctx context.Context, series string) (*httpapi.HeatmapJSON, error) {
	var out httpapi.HeatmapJSON
	if err := c.get(ctx, "/api/heatmap/"+url.PathEscape(series), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func (c *Client) get(ctx context.Context, path string, v any) error {
	var permanent error
	err := util.Retry(ctx, max(c.Attempts, 1), c.BaseDelay, func() error {
		err := c.getOnce(ctx, path, v)
		var pe permanentError
		if errors.As(err, &pe) {
			permanent = pe.err
			return nil
		}
		return err
	})
	if permanent != nil {
		return permanent
	}
	return err
}

func (c *Client) getOnce(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return permanentError{err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return permanentError{fmt.Errorf("GET %s: %w", path, ErrNotFound)}
	case resp.StatusCode >= 500:
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return permanentError{fmt.Errorf("GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return permanentError{fmt.Errorf("decoding %s: %w", path, err)}
	}
	return nil
}
