package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/danielolaszy/projectmd/internal/backend"
	"github.com/danielolaszy/projectmd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ backend.Backend = (*Client)(nil)

func testConfig(url string) *config.Config {
	return &config.Config{
		Jira: config.JiraConfig{
			URL:       url,
			Username:  "test@example.com",
			Token:     "test-token",
			IssueType: "Story",
		},
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(testConfig(srv.URL), "PROJ")
	require.NoError(t, err)
	return client
}

func TestJiraClientCredentialValidation(t *testing.T) {
	testCases := []struct {
		name          string
		url           string
		username      string
		token         string
		project       string
		errorContains string
	}{
		{
			name:          "Missing URL",
			username:      "test@example.com",
			token:         "test-token",
			project:       "PROJ",
			errorContains: "JIRA_URL",
		},
		{
			name:          "Missing username",
			url:           "https://example.atlassian.net",
			token:         "test-token",
			project:       "PROJ",
			errorContains: "JIRA_USERNAME",
		},
		{
			name:          "Missing token",
			url:           "https://example.atlassian.net",
			username:      "test@example.com",
			project:       "PROJ",
			errorContains: "JIRA_TOKEN",
		},
		{
			name:          "Invalid project key",
			url:           "https://example.atlassian.net",
			username:      "test@example.com",
			token:         "test-token",
			project:       "owner/repo",
			errorContains: "invalid project key",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{Jira: config.JiraConfig{URL: tc.url, Username: tc.username, Token: tc.token}}

			_, err := NewClient(cfg, tc.project)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorContains)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/myself", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "test@example.com", user)
		assert.Equal(t, "test-token", pass)
		fmt.Fprint(w, `{"name":"tester","displayName":"Test User"}`)
	})

	name, err := newTestClient(t, mux).Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Test User", name)
}

func TestAuthenticateUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/myself", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := newTestClient(t, mux).Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, backend.KindAuth, backend.KindOf(err))
}

func TestCreateIssue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Fields map[string]any `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Fix login", req.Fields["summary"])
		assert.Equal(t, "It breaks.", req.Fields["description"])
		assert.Equal(t, "PROJ", req.Fields["project"].(map[string]any)["key"])
		assert.Equal(t, "Story", req.Fields["issuetype"].(map[string]any)["name"])
		assert.Equal(t, []any{"bug"}, req.Fields["labels"])

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"10001","key":"PROJ-42","self":"x"}`)
	})

	client := newTestClient(t, mux)
	issue, err := client.CreateIssue(context.Background(), "Fix login", "It breaks.", []string{"bug"})
	require.NoError(t, err)
	assert.Equal(t, 42, issue.Number)
	assert.Equal(t, client.baseURL+"/browse/PROJ-42", issue.URL)
}

func TestUpdateIssue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/PROJ-7", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)

		var req struct {
			Fields map[string]any `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "New title", req.Fields["summary"])
		assert.Equal(t, []any{}, req.Fields["labels"])

		w.WriteHeader(http.StatusNoContent)
	})

	issue, err := newTestClient(t, mux).UpdateIssue(context.Background(), 7, "New title", "body", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, issue.Number)
	assert.Equal(t, []string{}, issue.Labels)
}

func TestGetIssue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/PROJ-3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"key":"PROJ-3","fields":{"summary":"Done thing","description":"d","labels":["ops"],"status":{"name":"Done","statusCategory":{"key":"done"}}}}`)
	})

	issue, err := newTestClient(t, mux).GetIssue(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, issue.Number)
	assert.Equal(t, "Done thing", issue.Title)
	assert.Equal(t, "closed", issue.State)
	assert.Equal(t, []string{"ops"}, issue.Labels)
}

func TestGetIssueNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/PROJ-9", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errorMessages":["Issue does not exist"]}`)
	})

	_, err := newTestClient(t, mux).GetIssue(context.Background(), 9)
	require.Error(t, err)

	var backendErr *backend.Error
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, backend.KindNotFound, backendErr.Kind)
	assert.Equal(t, 9, backendErr.Number)
}

func TestListIssuesPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `project = "PROJ" ORDER BY key ASC`, r.URL.Query().Get("jql"))

		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		switch startAt {
		case 0:
			fmt.Fprint(w, `{"startAt":0,"maxResults":2,"total":3,"issues":[
				{"key":"PROJ-1","fields":{"summary":"one","status":{"statusCategory":{"key":"new"}}}},
				{"key":"PROJ-2","fields":{"summary":"two","status":{"statusCategory":{"key":"done"}}}}]}`)
		case 2:
			fmt.Fprint(w, `{"startAt":2,"maxResults":2,"total":3,"issues":[
				{"key":"PROJ-3","fields":{"summary":"three"}}]}`)
		default:
			t.Errorf("unexpected startAt %d", startAt)
		}
	})

	issues, err := newTestClient(t, mux).ListIssues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, "open", issues[0].State)
	assert.Equal(t, "closed", issues[1].State)
	assert.Equal(t, 3, issues[2].Number)
}

func TestRateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := newTestClient(t, mux).ListIssues(context.Background())
	require.Error(t, err)
	assert.Equal(t, backend.KindRateLimited, backend.KindOf(err))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client, err := NewClient(testConfig(srv.URL), "PROJ")
	require.NoError(t, err)
	srv.Close()

	_, err = client.CreateIssue(context.Background(), "t", "b", nil)
	require.Error(t, err)
	assert.Equal(t, backend.KindNetwork, backend.KindOf(err))
}

func TestIssueNumber(t *testing.T) {
	client := &Client{projectKey: "PROJ"}

	testCases := []struct {
		key     string
		want    int
		wantErr bool
	}{
		{key: "PROJ-1", want: 1},
		{key: "PROJ-1234", want: 1234},
		{key: "OTHER-1", wantErr: true},
		{key: "PROJ-", wantErr: true},
		{key: "PROJ-x", wantErr: true},
		{key: "PROJ-0", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			got, err := client.issueNumber(tc.key)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
	assert.Equal(t, "PROJ-5", client.issueKey(5))
}
