package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/danielolaszy/projectmd/internal/backend"
	"github.com/danielolaszy/projectmd/internal/config"
	"github.com/danielolaszy/projectmd/internal/logging"
	"github.com/danielolaszy/projectmd/internal/syncer"
	"github.com/danielolaszy/projectmd/internal/taskfile"
	"github.com/danielolaszy/projectmd/pkg/models"
	"github.com/spf13/cobra"
)

// statusCmd shows the project's task list and the state of the remote tracker.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the project's tasks and their sync state",
	Long: `List the tasks of the project file with their link state.

With --verbose every task file is read to show its title, type, tags, last
sync time and whether it changed since. When credentials for the project's
backend are configured, the open and closed issue counts of the remote project
are shown too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := projectFile(cmd)
		if err != nil {
			return err
		}
		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		return printStatus(cmd.Context(), cmd.OutOrStdout(), cfg, path, verbose)
	},
}

func init() {
	statusCmd.Flags().BoolP("verbose", "v", false, "Show details from every task file")
}

func printStatus(ctx context.Context, w io.Writer, cfg *config.Config, path string, verbose bool) error {
	project, err := taskfile.ReadProject(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Project: %s (%s)\n", project.Config.Repo, project.Config.Backend)
	fmt.Fprintf(w, "Tasks: %d\n\n", len(project.Tasks))

	root := filepath.Dir(path)
	linked := 0
	for _, ref := range project.Tasks {
		if !ref.Status.IsNew() {
			linked++
		}
		fmt.Fprintf(w, "%-6s %s - %s\n", "["+strings.ToUpper(ref.Status.String())+"]", ref.Path, ref.Description)
		if verbose {
			printTaskDetails(w, taskfile.ResolvePath(root, ref.Path))
		}
	}
	fmt.Fprintf(w, "\nLinked: %d, new: %d\n", linked, len(project.Tasks)-linked)

	printRemoteStatus(ctx, w, cfg, project.Config)
	return nil
}

func printTaskDetails(w io.Writer, path string) {
	record, modTime, err := taskfile.ReadTask(path)
	if err != nil {
		fmt.Fprintf(w, "       error: %v\n", err)
		return
	}

	fmt.Fprintf(w, "       title: %s\n", record.Title)
	if record.Type != nil {
		fmt.Fprintf(w, "       type: %s\n", *record.Type)
	}
	if len(record.Tags) > 0 {
		fmt.Fprintf(w, "       tags: %s\n", strings.Join(record.Tags, ", "))
	}

	if record.UpdatedAt == "" {
		fmt.Fprintln(w, "       last sync: never")
		return
	}
	stale, err := syncer.ShouldSync(modTime, record.UpdatedAt, false)
	switch {
	case err != nil:
		fmt.Fprintf(w, "       last sync: %v\n", err)
	case stale:
		fmt.Fprintf(w, "       last sync: %s (changed since)\n", record.UpdatedAt)
	default:
		fmt.Fprintf(w, "       last sync: %s\n", record.UpdatedAt)
	}
}

func printRemoteStatus(ctx context.Context, w io.Writer, cfg *config.Config, project models.ProjectConfig) {
	b, err := backend.New(ctx, project.Backend, cfg, project.Repo)
	if err != nil {
		logging.Debug("remote status unavailable", "backend", project.Backend, "error", err)
		fmt.Fprintf(w, "Remote: unavailable (%v)\n", err)
		return
	}

	issues, err := b.ListIssues(ctx)
	if err != nil {
		fmt.Fprintf(w, "Remote: unavailable (%v)\n", err)
		return
	}

	open := 0
	for _, issue := range issues {
		if issue.State != "closed" {
			open++
		}
	}
	fmt.Fprintf(w, "Remote: %d issues (%d open, %d closed)\n", len(issues), open, len(issues)-open)
}
