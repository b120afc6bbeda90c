// internal/github/client.go
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "repohealth/internal/errors"
)

// Repo is the subset of repository metadata the pipeline needs alongside
// the raw API document.
type Repo struct {
	Owner      string
	Name       string
	CloneURL   string
	Stargazers int
	Raw        map[string]any
}

// Client is a wrapper around the go-github client for the single-call
// endpoints: repository validation and metadata.
type Client struct {
	gh      *github.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient creates and configures a new Client instance. An empty token
// yields an unauthenticated client, which GitHub permits for public
// read-only data at lower rate limits. baseURL overrides the API root for
// tests.
func NewClient(token, baseURL string, logger *slog.Logger) (*Client, error) {
	httpClient := http.DefaultClient
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	gh := github.NewClient(httpClient)
	if baseURL != "" && baseURL != "https://api.github.com" {
		var err error
		gh, err = gh.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure API base URL: %w", err)
		}
	}

	return &Client{gh: gh, baseURL: baseURL, logger: logger}, nil
}

// GetRepository fetches repository metadata, doubling as the existence
// check. A 404 from the API is translated to the typed not-found error so
// the coordinator can cache it as a deliberate outcome.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*Repo, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, &custom_errors.ErrRepoNotFound{Repo: owner + "/" + name}
		}
		return nil, fmt.Errorf("failed to fetch repository %s/%s: %w", owner, name, err)
	}

	raw, err := rawDocument(repo)
	if err != nil {
		return nil, err
	}

	return &Repo{
		Owner:      repo.GetOwner().GetLogin(),
		Name:       repo.GetName(),
		CloneURL:   repo.GetCloneURL(),
		Stargazers: repo.GetStargazersCount(),
		Raw:        raw,
	}, nil
}

// IssuesURL returns the paginated issues endpoint for an identifier,
// including the state filter the report needs.
func (c *Client) IssuesURL(owner, name string) string {
	return fmt.Sprintf("%s/repos/%s/%s/issues?state=all", c.baseURL, owner, name)
}

// StargazersURL returns the paginated stargazers endpoint.
func (c *Client) StargazersURL(owner, name string) string {
	return fmt.Sprintf("%s/repos/%s/%s/stargazers", c.baseURL, owner, name)
}

// rawDocument round-trips the typed repository back into the raw JSON
// mapping persisted in the API snapshot.
func rawDocument(repo *github.Repository) (map[string]any, error) {
	data, err := json.Marshal(repo)
	if err != nil {
		return nil, fmt.Errorf("failed to encode repository metadata: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode repository metadata: %w", err)
	}
	return raw, nil
}
