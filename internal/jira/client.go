// Package jira provides the JIRA issue tracker backend.
package jira

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/danielolaszy/projectmd/internal/backend"
	"github.com/danielolaszy/projectmd/internal/config"
	"github.com/danielolaszy/projectmd/internal/logging"
	"github.com/danielolaszy/projectmd/pkg/models"
)

// BackendName is the value of the project header's backend key for JIRA.
const BackendName = "jira"

// searchPageSize is the number of issues requested per search page.
const searchPageSize = 100

func init() {
	backend.Register(BackendName, func(ctx context.Context, cfg *config.Config, target string) (backend.Backend, error) {
		client, err := NewClient(cfg, target)
		if err != nil {
			return nil, err
		}
		if _, err := client.Authenticate(ctx); err != nil {
			return nil, err
		}
		return client, nil
	})
}

// Client is a Backend bound to one JIRA project. Issue numbers are the
// numeric part of the issue key, so issue 42 of project PROJ is PROJ-42.
type Client struct {
	client     *jira.Client
	baseURL    string
	projectKey string
	issueType  string
}

// NewClient creates a JIRA client for the given project key. It does not
// contact the server; use Authenticate to verify the credentials.
func NewClient(cfg *config.Config, projectKey string) (*Client, error) {
	if err := config.ValidateJiraConfig(cfg); err != nil {
		return nil, err
	}

	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" || strings.ContainsAny(projectKey, " -/") {
		return nil, fmt.Errorf("invalid project key: %q", projectKey)
	}

	issueType := cfg.Jira.IssueType
	if issueType == "" {
		issueType = config.DefaultJiraIssueType
	}

	logging.Debug("jira configuration",
		"url", cfg.Jira.URL,
		"username", cfg.Jira.Username,
		"project", projectKey,
		"issue_type", issueType,
		"token", logging.MaskSensitive(cfg.Jira.Token))

	tp := jira.BasicAuthTransport{
		Username: cfg.Jira.Username,
		Password: cfg.Jira.Token,
	}

	client, err := jira.NewClient(tp.Client(), cfg.Jira.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	return &Client{
		client:     client,
		baseURL:    strings.TrimRight(cfg.Jira.URL, "/"),
		projectKey: projectKey,
		issueType:  issueType,
	}, nil
}

// Name returns the backend identifier.
func (c *Client) Name() string {
	return BackendName
}

// Authenticate verifies the credentials and returns the account name.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	user, resp, err := c.client.User.GetSelfWithContext(ctx)
	if err != nil {
		return "", classify("authenticate", 0, resp, err)
	}

	name := user.DisplayName
	if name == "" {
		name = user.Name
	}
	logging.Info("jira authentication successful", "username", name)
	return name, nil
}

// CreateIssue creates an issue of the configured type in the project.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (*models.Issue, error) {
	logging.Debug("creating jira issue", "project", c.projectKey, "title", title, "labels", labels)

	created, resp, err := c.client.Issue.CreateWithContext(ctx, &jira.Issue{
		Fields: &jira.IssueFields{
			Project:     jira.Project{Key: c.projectKey},
			Type:        jira.IssueType{Name: c.issueType},
			Summary:     title,
			Description: body,
			Labels:      labels,
		},
	})
	if err != nil {
		return nil, classify("create issue", 0, resp, err)
	}

	number, err := c.issueNumber(created.Key)
	if err != nil {
		return nil, &backend.Error{Op: "create issue", Kind: backend.KindOther, Err: err}
	}

	logging.Debug("created jira issue", "key", created.Key, "issue_number", number)
	return &models.Issue{
		Number: number,
		Title:  title,
		Body:   body,
		State:  "open",
		Labels: labelsOrEmpty(labels),
		URL:    c.browseURL(created.Key),
	}, nil
}

// UpdateIssue replaces the summary, description and labels of an issue.
func (c *Client) UpdateIssue(ctx context.Context, number int, title, body string, labels []string) (*models.Issue, error) {
	key := c.issueKey(number)
	logging.Debug("updating jira issue", "key", key, "labels", labels)

	resp, err := c.client.Issue.UpdateIssueWithContext(ctx, key, map[string]interface{}{
		"fields": map[string]interface{}{
			"summary":     title,
			"description": body,
			"labels":      labelsOrEmpty(labels),
		},
	})
	if err != nil {
		return nil, classify("update issue", number, resp, err)
	}

	return &models.Issue{
		Number: number,
		Title:  title,
		Body:   body,
		Labels: labelsOrEmpty(labels),
		URL:    c.browseURL(key),
	}, nil
}

// GetIssue fetches a single issue by number.
func (c *Client) GetIssue(ctx context.Context, number int) (*models.Issue, error) {
	issue, resp, err := c.client.Issue.GetWithContext(ctx, c.issueKey(number), nil)
	if err != nil {
		return nil, classify("get issue", number, resp, err)
	}

	result, err := c.toIssue(issue)
	if err != nil {
		return nil, &backend.Error{Op: "get issue", Number: number, Kind: backend.KindOther, Err: err}
	}
	return &result, nil
}

// ListIssues returns every issue of the project.
func (c *Client) ListIssues(ctx context.Context) ([]models.Issue, error) {
	jql := fmt.Sprintf("project = %q ORDER BY key ASC", c.projectKey)

	var result []models.Issue
	startAt := 0
	for {
		issues, resp, err := c.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
			StartAt:    startAt,
			MaxResults: searchPageSize,
		})
		if err != nil {
			return nil, classify("list issues", 0, resp, err)
		}

		for i := range issues {
			issue, err := c.toIssue(&issues[i])
			if err != nil {
				logging.Warn("skipping jira issue with unexpected key", "key", issues[i].Key, "error", err)
				continue
			}
			result = append(result, issue)
		}

		startAt += len(issues)
		if len(issues) == 0 || startAt >= resp.Total {
			break
		}
	}

	logging.Debug("listed jira issues", "project", c.projectKey, "count", len(result))
	return result, nil
}

func (c *Client) issueKey(number int) string {
	return fmt.Sprintf("%s-%d", c.projectKey, number)
}

// issueNumber extracts the number from an issue key of this project.
func (c *Client) issueNumber(key string) (int, error) {
	prefix := c.projectKey + "-"
	if !strings.HasPrefix(key, prefix) {
		return 0, fmt.Errorf("issue key %q does not belong to project %s", key, c.projectKey)
	}
	number, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("issue key %q has no issue number", key)
	}
	return number, nil
}

func (c *Client) browseURL(key string) string {
	return c.baseURL + "/browse/" + key
}

func (c *Client) toIssue(issue *jira.Issue) (models.Issue, error) {
	number, err := c.issueNumber(issue.Key)
	if err != nil {
		return models.Issue{}, err
	}

	result := models.Issue{
		Number: number,
		State:  "open",
		Labels: []string{},
		URL:    c.browseURL(issue.Key),
	}
	if fields := issue.Fields; fields != nil {
		result.Title = fields.Summary
		result.Body = fields.Description
		result.Labels = labelsOrEmpty(fields.Labels)
		if fields.Status != nil && fields.Status.StatusCategory.Key == "done" {
			result.State = "closed"
		}
	}
	return result, nil
}

func labelsOrEmpty(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}

// classify wraps a go-jira error into a *backend.Error.
func classify(op string, number int, resp *jira.Response, err error) error {
	kind := backend.KindNetwork
	if resp != nil && resp.Response != nil {
		kind = backend.KindFromStatus(resp.StatusCode)
	}

	logging.Error("jira request failed", "operation", op, "issue_number", number, "kind", kind, "error", err)
	return &backend.Error{Op: op, Number: number, Kind: kind, Err: err}
}
