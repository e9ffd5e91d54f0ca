// Package cli holds the pieces of the tenantctl command line tool:
// an HTTP client for the router API and the tenant manifest format.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arvid/tenantdb/internal/model"
)

// Client is a minimal router API client authenticated with an admin
// API key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: resp.Status}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// APIError is a non-2xx response from the router API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (c *Client) ProvisionTenant(ctx context.Context, id, displayName string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := c.do(ctx, http.MethodPost, "/api/v1/tenants", map[string]string{
		"tenant_id":    id,
		"display_name": displayName,
	}, &tenant)
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (c *Client) GetTenant(ctx context.Context, id string) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := c.do(ctx, http.MethodGet, "/api/v1/tenants/"+id, nil, &tenant); err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (c *Client) ListTenants(ctx context.Context, status string) ([]model.Tenant, error) {
	var tenants []model.Tenant
	cursor := ""
	for {
		path := "/api/v1/tenants?limit=200"
		if status != "" {
			path += "&status=" + status
		}
		if cursor != "" {
			path += "&cursor=" + cursor
		}

		var page struct {
			Items      []model.Tenant `json:"items"`
			NextCursor string         `json:"next_cursor"`
			HasMore    bool           `json:"has_more"`
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		tenants = append(tenants, page.Items...)
		if !page.HasMore {
			return tenants, nil
		}
		cursor = page.NextCursor
	}
}

func (c *Client) CreateGrant(ctx context.Context, tenantID, principalID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/tenants/"+tenantID+"/grants", map[string]string{
		"principal_id": principalID,
	}, nil)
}

func (c *Client) PoolHealth(ctx context.Context) ([]model.PoolHealth, error) {
	var pools []model.PoolHealth
	if err := c.do(ctx, http.MethodGet, "/api/v1/pools", nil, &pools); err != nil {
		return nil, err
	}
	return pools, nil
}
