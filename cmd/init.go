package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/danielolaszy/projectmd/internal/backend"
	"github.com/spf13/cobra"
)

const exampleTaskPath = "tasks/example.md"

const exampleTask = `---
type: task
tags: []
---
# Example task

Describe the work to be done. Everything below the title becomes the issue body.
`

// initCmd writes a starter project file and an example task.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a project file and an example task",
	Long: `Create a project file for the given backend and repository, together with
an example task file in tasks/. An existing project file is never overwritten.

Example:
  projectmd init --backend github --repo owner/repo
  projectmd init --backend jira --repo PROJ`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := projectFile(cmd)
		if err != nil {
			return err
		}
		backendName, err := cmd.Flags().GetString("backend")
		if err != nil {
			return err
		}
		repo, err := cmd.Flags().GetString("repo")
		if err != nil {
			return err
		}

		return scaffoldProject(cmd.OutOrStdout(), path, backendName, repo)
	},
}

func init() {
	initCmd.Flags().String("backend", "github", "Issue tracker backend")
	initCmd.Flags().String("repo", "", "Remote project: 'owner/repo' for GitHub, a project key for JIRA")
}

func scaffoldProject(w io.Writer, path, backendName, repo string) error {
	if repo == "" {
		return fmt.Errorf("repo flag is required")
	}
	if !slices.Contains(backend.Available(), backendName) {
		return fmt.Errorf("invalid backend '%s': must be one of %v", backendName, backend.Available())
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	root := filepath.Dir(path)
	taskPath := filepath.Join(root, exampleTaskPath)
	if err := os.MkdirAll(filepath.Dir(taskPath), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(taskPath), err)
	}

	if _, err := os.Stat(taskPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(taskPath, []byte(exampleTask), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", taskPath, err)
		}
		fmt.Fprintf(w, "Created %s\n", taskPath)
	}

	project := fmt.Sprintf(`---
backend: %s
repo: %s
---

# %s

Describe the project here.

## Tasks

* [new] - %s - Example task
`, backendName, repo, repo, exampleTaskPath)

	if err := os.WriteFile(path, []byte(project), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(w, "Created %s\n", path)
	return nil
}
