// Package enrichment fetches public repository metadata from GitHub and
// Bitbucket for profiles that link those accounts.
//
// Both clients authenticate with an optional static token. The token is
// attached by an oauth2 transport, so request code never handles it; with an
// empty token the calls are anonymous (and rate-limited accordingly).
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// StatusError is returned when an API answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("enrichment: %s returned status %d", e.URL, e.StatusCode)
}

// newHTTPClient returns an http.Client with the given timeout that sends
// "Authorization: Bearer <token>" when token is non-empty.
func newHTTPClient(token string, timeout time.Duration, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	transport := base
	if token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   base,
		}
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// getJSON issues a GET and decodes a 2xx JSON response into dst.
func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("enrichment: building request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("enrichment: calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("enrichment: decoding %s: %w", url, err)
	}
	return nil
}

// AccountName extracts an account name from a profile link's display value.
// Verified profiles store either a bare name ("octocat") or a full URL
// ("https://github.com/octocat/").
func AccountName(displayValue string) string {
	v := strings.TrimSpace(displayValue)
	v = strings.TrimPrefix(v, "@")

	hasHost := false
	if i := strings.Index(v, "://"); i >= 0 {
		v = v[i+3:]
		hasHost = true
	}
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == '/' })
	if len(parts) > 1 && strings.Contains(parts[0], ".") {
		hasHost = true
	}
	if hasHost {
		if len(parts) < 2 {
			return ""
		}
		return parts[1]
	}
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}
