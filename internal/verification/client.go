// Package verification talks to the remote identity-verification service.
//
// The service exposes two GET endpoints under a configured base route:
//
//	{apiRoute}get_profile?id={username}&service={serviceName}
//	{apiRoute}get_token?id={username}&service={serviceName}
//
// Both expect the shared secret in the Authorization header and answer JSON.
// Calls are made once: no retries, no backoff. The caller decides what a
// failure means.
package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-querystring/query"

	"github.com/cryptonite/profiles/internal/model"
)

// maxBodyBytes caps how much of an upstream response we are willing to read.
const maxBodyBytes = 1 << 20

// Config holds the verification service settings.
type Config struct {
	APIRoute    string // base route, e.g. "https://truanon.com/api/"
	ServiceName string // our service id at the verification provider
	PrivateKey  string // shared secret sent as the Authorization header
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("verification: %s returned status %d", e.Endpoint, e.StatusCode)
}

// lookupQuery is the query string shared by both endpoints.
type lookupQuery struct {
	ID      string `url:"id"`
	Service string `url:"service"`
}

// Client fetches verification profiles and tokens.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a Client. httpClient should carry a timeout; the server
// wires one from OUTBOUND_TIMEOUT.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if cfg.APIRoute == "" {
		return nil, errors.New("verification: API route must not be empty")
	}
	if !strings.HasSuffix(cfg.APIRoute, "/") {
		cfg.APIRoute += "/"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}, nil
}

// FetchProfile returns the verified profile for username.
func (c *Client) FetchProfile(ctx context.Context, username string) (*model.VerificationPayload, error) {
	body, err := c.get(ctx, "get_profile", username)
	if err != nil {
		return nil, err
	}
	payload, err := DecodePayload(body)
	if err != nil {
		return nil, fmt.Errorf("verification: get_profile for %q: %w", username, err)
	}
	return payload, nil
}

// FetchToken returns a one-time verification token for username.
func (c *Client) FetchToken(ctx context.Context, username string) (string, error) {
	body, err := c.get(ctx, "get_token", username)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID *string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("verification: decoding get_token response: %w", err)
	}
	if resp.ID == nil || *resp.ID == "" {
		return "", errors.New("verification: get_token response has no id")
	}
	return *resp.ID, nil
}

// DecodePayload parses a get_profile body. The body must be a JSON object and
// its known fields must have the expected types.
func DecodePayload(body []byte) (*model.VerificationPayload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("decoding profile: response is not a JSON object")
	}

	var p model.VerificationPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	p.Raw = json.RawMessage(trimmed)
	return &p, nil
}

func (c *Client) get(ctx context.Context, endpoint, username string) ([]byte, error) {
	values, err := query.Values(lookupQuery{ID: username, Service: c.cfg.ServiceName})
	if err != nil {
		return nil, fmt.Errorf("verification: encoding %s query: %w", endpoint, err)
	}
	url := c.cfg.APIRoute + endpoint + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("verification: building %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", c.cfg.PrivateKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verification: calling %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("verification service returned an error",
			slog.String("endpoint", endpoint),
			slog.String("username", username),
			slog.Int("status", resp.StatusCode),
		)
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("verification: reading %s response: %w", endpoint, err)
	}
	return body, nil
}
