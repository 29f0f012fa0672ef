// Package provider implements the HTTP client for federated identity
// providers. Each provider exposes a session endpoint that, given the
// browser's cookies, returns the provider-native user object or nothing.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltdesk/be-plt-auth/internal/service"
)

// Client calls one provider's session endpoint. A Client with an empty
// base URL is disabled and always reports no session.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(name, baseURL string, log zerolog.Logger) *Client {
	return &Client{
		name:    name,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
}

func (c *Client) Name() string { return c.name }

// Session forwards the request's cookies to the provider and decodes the
// session payload. No session (401/404 or empty body) returns (nil, nil);
// transport failures return an error for the caller to absorb.
func (c *Client) Session(ctx context.Context, r *http.Request) (*service.ProviderIdentity, error) {
	if c.baseURL == "" {
		return nil, nil
	}
	if r.Header.Get("Cookie") == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/session", nil)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Cookie", r.Header.Get("Cookie"))
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider %s session call: %w", c.name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusNotFound, http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("provider %s session call: unexpected status %d", c.name, resp.StatusCode)
	}

	var ident service.ProviderIdentity
	if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil {
		return nil, fmt.Errorf("decode provider %s session: %w", c.name, err)
	}
	if ident.ID == "" && ident.Email == "" {
		return nil, nil
	}
	return &ident, nil
}
