package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielolaszy/projectmd/internal/backend"
	"github.com/danielolaszy/projectmd/internal/config"
	"github.com/danielolaszy/projectmd/internal/syncer"
	"github.com/danielolaszy/projectmd/internal/taskfile"
	"github.com/danielolaszy/projectmd/pkg/models"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockBackend implements backend.Backend with overridable functions.
type MockBackend struct {
	CreateIssueFunc func(title string) (*models.Issue, error)
	ListIssuesFunc  func() ([]models.Issue, error)
}

func (m *MockBackend) Name() string { return "cmd-mock" }

func (m *MockBackend) CreateIssue(_ context.Context, title, body string, labels []string) (*models.Issue, error) {
	if m.CreateIssueFunc != nil {
		return m.CreateIssueFunc(title)
	}
	return nil, errors.New("CreateIssue not implemented")
}

func (m *MockBackend) UpdateIssue(_ context.Context, number int, title, body string, labels []string) (*models.Issue, error) {
	return &models.Issue{Number: number, Title: title}, nil
}

func (m *MockBackend) GetIssue(_ context.Context, number int) (*models.Issue, error) {
	return &models.Issue{Number: number}, nil
}

func (m *MockBackend) ListIssues(context.Context) ([]models.Issue, error) {
	if m.ListIssuesFunc != nil {
		return m.ListIssuesFunc()
	}
	return nil, errors.New("ListIssues not implemented")
}

var mockBackend = &MockBackend{}

func init() {
	color.NoColor = true
	backend.Register("cmd-mock", func(context.Context, *config.Config, string) (backend.Backend, error) {
		return mockBackend, nil
	})
}

const testProject = `---
backend: cmd-mock
repo: acme/app
---

# App

* [new] - tasks/login.md - Login page
* [new] - tasks/broken.md - Broken task
`

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tasks"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tasks", "login.md"),
		[]byte("---\ntype: feature\ntags: [ui]\n---\n# Login page\n\nBuild it.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tasks", "broken.md"),
		[]byte("---\n---\n# Broken task\n"), 0o644))

	path := filepath.Join(root, "project.md")
	require.NoError(t, os.WriteFile(path, []byte(testProject), 0o644))
	return path
}

func TestRunProjectSync(t *testing.T) {
	path := writeProject(t)
	mockBackend.CreateIssueFunc = func(title string) (*models.Issue, error) {
		if title == "Broken task" {
			return nil, &backend.Error{Op: "create issue", Kind: backend.KindAuth, Err: errors.New("bad credentials")}
		}
		return &models.Issue{Number: 11, Title: title}, nil
	}

	var out bytes.Buffer
	err := runProjectSync(context.Background(), &out, &config.Config{}, path, false)
	require.Error(t, err)
	assert.Equal(t, "1 of 2 tasks failed", err.Error())

	output := out.String()
	assert.Contains(t, output, "created tasks/login.md (#11)")
	assert.Contains(t, output, "failed  tasks/broken.md: create issue: auth: bad credentials")
	assert.Contains(t, output, "2 tasks: 1 created, 0 updated, 0 skipped, 1 failed")

	project, err := taskfile.ReadProject(path)
	require.NoError(t, err)
	assert.Equal(t, models.LinkedStatus(11), project.Tasks[0].Status)
	assert.True(t, project.Tasks[1].Status.IsNew())
}

func TestRunProjectSyncMissingProject(t *testing.T) {
	var out bytes.Buffer
	err := runProjectSync(context.Background(), &out, &config.Config{}, filepath.Join(t.TempDir(), "project.md"), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, out.String())
}

func TestPlanSync(t *testing.T) {
	path := writeProject(t)

	var out bytes.Buffer
	require.NoError(t, planSync(context.Background(), &out, path, false))

	output := out.String()
	assert.Contains(t, output, "Dry run for acme/app (cmd-mock)")
	assert.Contains(t, output, `create tasks/login.md: "Login page"`)
	assert.Contains(t, output, "2 to create, 0 to update, 0 unchanged, 0 with errors")
}

func TestPrintStatus(t *testing.T) {
	path := writeProject(t)
	mockBackend.ListIssuesFunc = func() ([]models.Issue, error) {
		return []models.Issue{
			{Number: 1, State: "open"},
			{Number: 2, State: "closed"},
			{Number: 3, State: "open"},
		}, nil
	}

	var out bytes.Buffer
	require.NoError(t, printStatus(context.Background(), &out, &config.Config{}, path, true))

	output := out.String()
	assert.Contains(t, output, "Project: acme/app (cmd-mock)")
	assert.Contains(t, output, "[NEW]  tasks/login.md - Login page")
	assert.Contains(t, output, "title: Login page")
	assert.Contains(t, output, "type: feature")
	assert.Contains(t, output, "tags: ui")
	assert.Contains(t, output, "last sync: never")
	assert.Contains(t, output, "Linked: 0, new: 2")
	assert.Contains(t, output, "Remote: 3 issues (2 open, 1 closed)")
}

func TestPrintStatusWithoutRemote(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "project.md")
	require.NoError(t, os.WriteFile(path, []byte("backend: gitea\nrepo: acme/app\n---\n* [#4] - tasks/a.md - A\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, printStatus(context.Background(), &out, &config.Config{}, path, false))

	output := out.String()
	assert.Contains(t, output, "[#4]   tasks/a.md - A")
	assert.Contains(t, output, "Remote: unavailable (unsupported backend")
}

func TestPrintStatusAbsoluteTaskPath(t *testing.T) {
	taskPath := filepath.Join(t.TempDir(), "elsewhere.md")
	require.NoError(t, os.WriteFile(taskPath, []byte("---\ntype: bug\n---\n# Elsewhere\n"), 0o644))

	path := filepath.Join(t.TempDir(), "project.md")
	project := "---\nbackend: gitea\nrepo: acme/app\n---\n* [new] - " + taskPath + " - Elsewhere\n"
	require.NoError(t, os.WriteFile(path, []byte(project), 0o644))

	var out bytes.Buffer
	require.NoError(t, printStatus(context.Background(), &out, &config.Config{}, path, true))

	output := out.String()
	assert.Contains(t, output, "title: Elsewhere")
	assert.Contains(t, output, "type: bug")
}

func TestPrintReport(t *testing.T) {
	report := &syncer.Report{}
	report.Add("a.md", syncer.Created(1))
	report.Add("b.md", syncer.Updated(2))
	report.Add("c.md", syncer.Skipped())

	var out bytes.Buffer
	printReport(&out, report)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"created a.md (#1)",
		"updated b.md (#2)",
		"skipped c.md",
		"",
		"3 tasks: 1 created, 1 updated, 1 skipped, 0 failed",
	}, lines)
}

func TestScaffoldProject(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "project.md")

	var out bytes.Buffer
	require.NoError(t, scaffoldProject(&out, path, "github", "acme/app"))

	project, err := taskfile.ReadProject(path)
	require.NoError(t, err)
	assert.Equal(t, "github", project.Config.Backend)
	assert.Equal(t, "acme/app", project.Config.Repo)
	require.Len(t, project.Tasks, 1)
	assert.Equal(t, exampleTaskPath, project.Tasks[0].Path)
	assert.True(t, project.Tasks[0].Status.IsNew())

	record, _, err := taskfile.ReadTask(filepath.Join(root, exampleTaskPath))
	require.NoError(t, err)
	assert.Equal(t, "Example task", record.Title)
	assert.Empty(t, record.UpdatedAt)

	err = scaffoldProject(&out, path, "github", "acme/app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestScaffoldProjectValidation(t *testing.T) {
	testCases := []struct {
		name          string
		backend       string
		repo          string
		errorContains string
	}{
		{name: "Missing repo", backend: "github", repo: "", errorContains: "repo flag is required"},
		{name: "Unknown backend", backend: "trello", repo: "board", errorContains: "invalid backend"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "project.md")

			err := scaffoldProject(&bytes.Buffer{}, path, tc.backend, tc.repo)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorContains)

			_, statErr := os.Stat(path)
			assert.ErrorIs(t, statErr, os.ErrNotExist)
		})
	}
}

func TestRootCommandWiring(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"sync", "status", "init"})

	flag := rootCmd.PersistentFlags().Lookup("project-file")
	require.NotNil(t, flag)
	assert.Equal(t, DefaultProjectFile, flag.DefValue)
	assert.Equal(t, "p", flag.Shorthand)

	assert.Contains(t, backend.Available(), "github")
	assert.Contains(t, backend.Available(), "jira")
}
