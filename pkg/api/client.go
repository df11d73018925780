package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Client fetches the formatted event feed from a running server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// RecentEvents fetches the display strings for the most recent events.
func (c *Client) RecentEvents(ctx context.Context) ([]string, error) {
	endpoint, err := c.endpoint("/events")
	if err != nil {
		return nil, err
	}
	var events []string
	if err := c.getJSON(ctx, endpoint.String(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Healthy reports whether the server's health endpoint answers ok.
func (c *Client) Healthy(ctx context.Context) error {
	endpoint, err := c.endpoint("/healthz")
	if err != nil {
		return err
	}
	var body map[string]string
	return c.getJSON(ctx, endpoint.String(), &body)
}

func (c *Client) endpoint(path string) (*url.URL, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return nil, errors.New("base url is required")
	}
	return url.Parse(base + path)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("events api failed: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
