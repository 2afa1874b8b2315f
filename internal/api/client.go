package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a thin HTTP client for the meshdiag service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL (e.g. http://host:port).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Nodes lists every node in the current snapshot.
func (c *Client) Nodes(ctx context.Context) ([]NodeSummary, error) {
	var resp []NodeSummary
	if err := c.getJSON(ctx, "/nodes", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Node fetches the detail view for one node.
func (c *Client) Node(ctx context.Context, id string) (NodeDetail, error) {
	var resp NodeDetail
	err := c.getJSON(ctx, "/nodes/"+url.PathEscape(id), &resp)
	return resp, err
}

// Relay resolves a raw relay suffix. owner may be empty.
func (c *Client) Relay(ctx context.Context, suffix int, owner string) (RelayAttribution, error) {
	q := url.Values{}
	q.Set("suffix", strconv.Itoa(suffix))
	if owner != "" {
		q.Set("owner", owner)
	}
	var resp RelayAttribution
	err := c.getJSON(ctx, "/relay?"+q.Encode(), &resp)
	return resp, err
}

// Health reports service status.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.getJSON(ctx, "/healthz", &resp)
	return resp, err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return fmt.Errorf("request failed: %s: %s", res.Status, msg)
		}
		return fmt.Errorf("request failed: %s", res.Status)
	}

	decoder := json.NewDecoder(res.Body)
	return decoder.Decode(out)
}
