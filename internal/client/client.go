// Package client is the HTTP client for the management API, used by the CLI
// commands to drive a running control process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"menagerie/internal/api"
)

// Client talks to a menagerie management server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) call(ctx context.Context, method, path string, body, into interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&e); decodeErr == nil && e.Error != "" {
			return fmt.Errorf("%s", e.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if into == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

func (c *Client) ListInstances(ctx context.Context) ([]api.InstanceStatus, error) {
	var out []api.InstanceStatus
	return out, c.call(ctx, http.MethodGet, "/api/instances", nil, &out)
}

func (c *Client) GetInstance(ctx context.Context, id string) (*api.InstanceStatus, error) {
	var out api.InstanceStatus
	return &out, c.call(ctx, http.MethodGet, "/api/instances/"+id, nil, &out)
}

func (c *Client) CreateInstance(ctx context.Context, req api.CreateInstanceRequest) (*api.InstanceStatus, error) {
	var out api.InstanceStatus
	return &out, c.call(ctx, http.MethodPost, "/api/instances", req, &out)
}

func (c *Client) UpdateInstance(ctx context.Context, id string, req api.UpdateInstanceRequest) (*api.InstanceStatus, error) {
	var out api.InstanceStatus
	return &out, c.call(ctx, http.MethodPut, "/api/instances/"+id, req, &out)
}

func (c *Client) StartInstance(ctx context.Context, id string) (*api.InstanceStatus, error) {
	var out api.InstanceStatus
	return &out, c.call(ctx, http.MethodPost, "/api/instances/"+id+"/start", nil, &out)
}

func (c *Client) StopInstance(ctx context.Context, id string) (*api.InstanceStatus, error) {
	var out api.InstanceStatus
	return &out, c.call(ctx, http.MethodPost, "/api/instances/"+id+"/stop", nil, &out)
}

func (c *Client) RestartInstance(ctx context.Context, id string) (*api.InstanceStatus, error) {
	var out api.InstanceStatus
	return &out, c.call(ctx, http.MethodPost, "/api/instances/"+id+"/restart", nil, &out)
}

func (c *Client) DeleteInstance(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/instances/"+id, nil, nil)
}

func (c *Client) ListTemplates(ctx context.Context) ([]api.TemplateInfo, error) {
	var out []api.TemplateInfo
	return out, c.call(ctx, http.MethodGet, "/api/templates", nil, &out)
}

func (c *Client) ListCredentials(ctx context.Context) ([]api.CredentialInfo, error) {
	var out []api.CredentialInfo
	return out, c.call(ctx, http.MethodGet, "/api/credentials", nil, &out)
}

type addCredentialRequest struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

func (c *Client) AddCredential(ctx context.Context, name, token string) (*api.CredentialInfo, error) {
	var out api.CredentialInfo
	return &out, c.call(ctx, http.MethodPost, "/api/credentials", addCredentialRequest{Name: name, Token: token}, &out)
}

func (c *Client) DeactivateCredential(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/api/credentials/"+id+"/deactivate", nil, nil)
}

func (c *Client) Stats(ctx context.Context) (*api.SystemStats, error) {
	var out api.SystemStats
	return &out, c.call(ctx, http.MethodGet, "/api/system/stats", nil, &out)
}
