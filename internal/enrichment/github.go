package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// GitHubUser is the part of GET /users/{name} we expose.
type GitHubUser struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	Bio         string `json:"bio"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
}

// GitHubRepo is one public repository with its language breakdown.
type GitHubRepo struct {
	Name         string         `json:"name"`
	FullName     string         `json:"full_name"`
	Description  string         `json:"description"`
	HTMLURL      string         `json:"html_url"`
	Stars        int            `json:"stargazers_count"`
	Forks        int            `json:"forks_count"`
	Fork         bool           `json:"fork"`
	LanguagesURL string         `json:"languages_url"`
	Languages    map[string]int `json:"languages"` // bytes of code per language
}

// GitHubSummary is what GET /users/{username}/github returns.
type GitHubSummary struct {
	User  GitHubUser   `json:"user"`
	Repos []GitHubRepo `json:"repos"`
}

// GitHubConfig configures a GitHubClient.
type GitHubConfig struct {
	BaseURL     string        // default https://api.github.com
	Token       string        // optional personal access token
	Timeout     time.Duration // per request
	Concurrency int           // max parallel language requests
	Transport   http.RoundTripper
}

// GitHubClient reads public profile and repository data from the GitHub API.
type GitHubClient struct {
	baseURL     string
	http        *http.Client
	concurrency int
	logger      *slog.Logger
}

// NewGitHubClient creates a GitHubClient.
func NewGitHubClient(cfg GitHubConfig, logger *slog.Logger) *GitHubClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &GitHubClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		http:        newHTTPClient(cfg.Token, cfg.Timeout, cfg.Transport),
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// Summary fetches the user, their repositories, and each repository's
// languages.
//
// Language requests run in parallel, at most c.concurrency at a time. If any
// of them fails the whole summary fails; there are no partial results.
func (c *GitHubClient) Summary(ctx context.Context, login string) (*GitHubSummary, error) {
	name := url.PathEscape(login)

	var user GitHubUser
	if err := getJSON(ctx, c.http, c.baseURL+"/users/"+name, &user); err != nil {
		return nil, fmt.Errorf("github: fetching user %s: %w", login, err)
	}

	var repos []GitHubRepo
	if err := getJSON(ctx, c.http, c.baseURL+"/users/"+name+"/repos", &repos); err != nil {
		return nil, fmt.Errorf("github: fetching repos of %s: %w", login, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range repos {
		repo := &repos[i]
		g.Go(func() error {
			langURL := repo.LanguagesURL
			if langURL == "" {
				langURL = c.baseURL + "/repos/" + repo.FullName + "/languages"
			}
			langs := map[string]int{}
			if err := getJSON(gctx, c.http, langURL, &langs); err != nil {
				return fmt.Errorf("github: fetching languages of %s: %w", repo.FullName, err)
			}
			repo.Languages = langs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("github summary fetched",
		slog.String("login", login),
		slog.Int("repos", len(repos)),
	)

	if repos == nil {
		repos = []GitHubRepo{}
	}
	return &GitHubSummary{User: user, Repos: repos}, nil
}
