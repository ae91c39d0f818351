package scouting_api_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mcdev12/astraea/go/clients"
)

// ScoutingApiClient talks to the scouting server's JSON API.
type ScoutingApiClient struct {
	*clients.BaseClient
}

// NewScoutingApiClient creates a new client for the server at baseURL.
func NewScoutingApiClient(baseURL string) *ScoutingApiClient {
	return &ScoutingApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login opens a session; the cookie is kept by the client for later calls.
func (c *ScoutingApiClient) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("failed to marshal login request: %w", err)
	}

	if _, err := c.Post(ctx, LoginEndpoint, body); err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}
	return nil
}

// Logout ends the current session.
func (c *ScoutingApiClient) Logout(ctx context.Context) error {
	if _, err := c.Post(ctx, LogoutEndpoint, nil); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// Health performs a single request against ProbeEndpoint. Use
// clients.IsReachable to interpret the result.
func (c *ScoutingApiClient) Health(ctx context.Context) error {
	_, err := c.Get(ctx, ProbeEndpoint)
	return err
}

// fetchJSON runs a GET through the retry helper and decodes the body into out.
func (c *ScoutingApiClient) fetchJSON(ctx context.Context, endpoint string, out interface{}) (bool, error) {
	result, err := c.FetchWithRetry(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(result.Body, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(result.Body))
	}
	return result.Stale, nil
}

// postJSON sends a single POST and decodes an optional response body.
func (c *ScoutingApiClient) postJSON(ctx context.Context, endpoint string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := c.Post(ctx, endpoint, body)
	if err != nil {
		return err
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(respBody))
	}
	return nil
}
