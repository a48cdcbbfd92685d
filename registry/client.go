package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// healthTimeout bounds the liveness probe. The probe must never hang the
// startup sequence.
const healthTimeout = 5 * time.Second

// Client talks to the marketplace registry over HTTP.
type Client struct {
	// BaseURL is the registry endpoint (e.g., "https://registry.perkos.xyz").
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a default client with a
	// 30-second timeout is used.
	HTTPClient *http.Client
}

// NewClient creates a registry client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Health probes the registry's liveness endpoint with a fixed 5-second
// timeout. It reports reachability only; any 2xx counts as alive.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ListVendors fetches the registry's full vendor list.
func (c *Client) ListVendors(ctx context.Context) ([]Vendor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/vendors", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list vendors: status %d", resp.StatusCode)
	}

	body, err := readAll(resp)
	if err != nil {
		return nil, err
	}

	// Some registry versions wrap the list, others return it bare. A wrapped
	// answer with a null list is an empty registry, not a shape error.
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var bare []Vendor
		if err := json.Unmarshal(trimmed, &bare); err != nil {
			return nil, fmt.Errorf("list vendors: unrecognized response shape")
		}
		return bare, nil
	}
	var wrapped vendorListResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("list vendors: unrecognized response shape")
	}
	return wrapped.Vendors, nil
}

// Register submits one registration attempt with the given idempotent body.
func (c *Client) Register(ctx context.Context, body registerRequest) (*registerResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/vendors", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("registration request failed: %w", err)
	}
	defer resp.Body.Close()

	var regResp registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&regResp); err != nil {
		return nil, fmt.Errorf("registration response: status %d: %w", resp.StatusCode, err)
	}
	return &regResp, nil
}

func readAll(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return buf.Bytes(), nil
}
