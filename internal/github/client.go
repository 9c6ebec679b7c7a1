// Package github provides the GitHub issue tracker backend.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/danielolaszy/projectmd/internal/backend"
	"github.com/danielolaszy/projectmd/internal/config"
	"github.com/danielolaszy/projectmd/internal/logging"
	"github.com/danielolaszy/projectmd/pkg/models"
	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"
)

// BackendName is the value of the project header's backend key for GitHub.
const BackendName = "github"

func init() {
	backend.Register(BackendName, func(ctx context.Context, cfg *config.Config, target string) (backend.Backend, error) {
		client, err := NewClient(ctx, cfg, target)
		if err != nil {
			return nil, err
		}
		if _, err := client.Authenticate(ctx); err != nil {
			return nil, err
		}
		return client, nil
	})
}

// Client is a Backend bound to one GitHub repository.
type Client struct {
	client *github.Client
	owner  string
	repo   string
}

// APIURL returns the REST API base URL for a GitHub domain. An empty domain
// means github.com.
func APIURL(domain string) string {
	if domain == "" || domain == config.DefaultGitHubDomain {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

// NewClient creates a GitHub client for the repository "owner/repo". It does
// not contact the API; use Authenticate to verify the token.
func NewClient(ctx context.Context, cfg *config.Config, repository string) (*Client, error) {
	if err := config.ValidateGitHubConfig(cfg); err != nil {
		return nil, err
	}

	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	domain := cfg.GitHub.Domain
	if domain == "" {
		domain = config.DefaultGitHubDomain
	}
	apiURL := APIURL(domain)

	logging.Debug("github configuration",
		"domain", domain,
		"api_url", apiURL,
		"repository", repository,
		"token", logging.MaskSensitive(cfg.GitHub.Token))

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.GitHub.Token},
	)
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	// GitHub Enterprise serves the API under the instance's own domain
	if domain != config.DefaultGitHubDomain {
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}

	return &Client{client: client, owner: owner, repo: repo}, nil
}

func splitRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

// Name returns the backend identifier.
func (c *Client) Name() string {
	return BackendName
}

// Authenticate verifies the token and returns the login it belongs to.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	user, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", classify("authenticate", 0, resp, err)
	}

	logging.Info("github authentication successful", "username", user.GetLogin())
	return user.GetLogin(), nil
}

// CreateIssue opens a new issue in the repository.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (*models.Issue, error) {
	logging.Debug("creating github issue", "repository", c.repository(), "title", title, "labels", labels)

	issue, resp, err := c.client.Issues.Create(ctx, c.owner, c.repo, issueRequest(title, body, labels))
	if err != nil {
		return nil, classify("create issue", 0, resp, err)
	}

	result := toIssue(issue)
	logging.Debug("created github issue", "repository", c.repository(), "issue_number", result.Number)
	return &result, nil
}

// UpdateIssue replaces the title, body and labels of an existing issue.
func (c *Client) UpdateIssue(ctx context.Context, number int, title, body string, labels []string) (*models.Issue, error) {
	logging.Debug("updating github issue", "repository", c.repository(), "issue_number", number, "labels", labels)

	issue, resp, err := c.client.Issues.Edit(ctx, c.owner, c.repo, number, issueRequest(title, body, labels))
	if err != nil {
		return nil, classify("update issue", number, resp, err)
	}

	result := toIssue(issue)
	return &result, nil
}

// GetIssue fetches a single issue.
func (c *Client) GetIssue(ctx context.Context, number int) (*models.Issue, error) {
	issue, resp, err := c.client.Issues.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, classify("get issue", number, resp, err)
	}

	result := toIssue(issue)
	return &result, nil
}

// ListIssues retrieves every issue of the repository, open and closed.
// Pull requests are filtered out.
func (c *Client) ListIssues(ctx context.Context) ([]models.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State: "all",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var result []models.Issue
	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, classify("list issues", 0, resp, err)
		}

		for _, issue := range issues {
			// Pull requests are also returned by the issues API
			if issue.PullRequestLinks != nil {
				continue
			}
			result = append(result, toIssue(issue))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logging.Debug("listed github issues", "repository", c.repository(), "count", len(result))
	return result, nil
}

func (c *Client) repository() string {
	return c.owner + "/" + c.repo
}

func issueRequest(title, body string, labels []string) *github.IssueRequest {
	if labels == nil {
		labels = []string{}
	}
	return &github.IssueRequest{
		Title:  github.String(title),
		Body:   github.String(body),
		Labels: &labels,
	}
}

func toIssue(issue *github.Issue) models.Issue {
	labelNames := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labelNames = append(labelNames, label.GetName())
	}

	return models.Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		State:  strings.ToLower(issue.GetState()),
		Labels: labelNames,
		URL:    issue.GetHTMLURL(),
	}
}

// classify wraps a go-github error into a *backend.Error.
func classify(op string, number int, resp *github.Response, err error) error {
	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		kind     backend.ErrorKind
	)

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		kind = backend.KindRateLimited
	case resp != nil && resp.Response != nil:
		kind = backend.KindFromStatus(resp.StatusCode)
	default:
		kind = backend.KindNetwork
	}

	logging.Error("github request failed", "operation", op, "issue_number", number, "kind", kind, "error", err)
	return &backend.Error{Op: op, Number: number, Kind: kind, Err: err}
}
