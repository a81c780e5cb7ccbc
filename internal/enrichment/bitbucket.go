package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type bitbucketLink struct {
	Href string `json:"href"`
}

// BitbucketUser is the part of GET /users/{name} we expose.
type BitbucketUser struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"display_name"`
	Nickname    string `json:"nickname"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
}

// BitbucketRepo is one repository from GET /repositories/{name}.
type BitbucketRepo struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	IsPrivate   bool   `json:"is_private"`
	HTMLURL     string `json:"html_url"`
}

// BitbucketSummary is what GET /users/{username}/bitbucket returns.
type BitbucketSummary struct {
	User  BitbucketUser   `json:"user"`
	Repos []BitbucketRepo `json:"repos"`
}

// BitbucketConfig configures a BitbucketClient.
type BitbucketConfig struct {
	BaseURL   string // default https://api.bitbucket.org/2.0
	Token     string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// BitbucketClient reads public account and repository data from Bitbucket.
type BitbucketClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewBitbucketClient creates a BitbucketClient.
func NewBitbucketClient(cfg BitbucketConfig, logger *slog.Logger) *BitbucketClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.bitbucket.org/2.0"
	}
	return &BitbucketClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    newHTTPClient(cfg.Token, cfg.Timeout, cfg.Transport),
		logger:  logger,
	}
}

// Summary fetches the account and the first page of its repositories.
func (c *BitbucketClient) Summary(ctx context.Context, name string) (*BitbucketSummary, error) {
	escaped := url.PathEscape(name)

	var rawUser struct {
		UUID        string `json:"uuid"`
		DisplayName string `json:"display_name"`
		Nickname    string `json:"nickname"`
		Links       struct {
			Avatar bitbucketLink `json:"avatar"`
			HTML   bitbucketLink `json:"html"`
		} `json:"links"`
	}
	if err := getJSON(ctx, c.http, c.baseURL+"/users/"+escaped, &rawUser); err != nil {
		return nil, fmt.Errorf("bitbucket: fetching user %s: %w", name, err)
	}

	var page struct {
		Values []struct {
			Name        string `json:"name"`
			FullName    string `json:"full_name"`
			Description string `json:"description"`
			Language    string `json:"language"`
			IsPrivate   bool   `json:"is_private"`
			Links       struct {
				HTML bitbucketLink `json:"html"`
			} `json:"links"`
		} `json:"values"`
	}
	if err := getJSON(ctx, c.http, c.baseURL+"/repositories/"+escaped, &page); err != nil {
		return nil, fmt.Errorf("bitbucket: fetching repositories of %s: %w", name, err)
	}

	summary := &BitbucketSummary{
		User: BitbucketUser{
			UUID:        rawUser.UUID,
			DisplayName: rawUser.DisplayName,
			Nickname:    rawUser.Nickname,
			AvatarURL:   rawUser.Links.Avatar.Href,
			HTMLURL:     rawUser.Links.HTML.Href,
		},
		Repos: make([]BitbucketRepo, 0, len(page.Values)),
	}
	for _, v := range page.Values {
		summary.Repos = append(summary.Repos, BitbucketRepo{
			Name:        v.Name,
			FullName:    v.FullName,
			Description: v.Description,
			Language:    v.Language,
			IsPrivate:   v.IsPrivate,
			HTMLURL:     v.Links.HTML.Href,
		})
	}

	c.logger.Debug("bitbucket summary fetched",
		slog.String("name", name),
		slog.Int("repos", len(summary.Repos)),
	)
	return summary, nil
}
