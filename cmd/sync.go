package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/danielolaszy/projectmd/internal/config"
	"github.com/danielolaszy/projectmd/internal/logging"
	"github.com/danielolaszy/projectmd/internal/syncer"
	"github.com/danielolaszy/projectmd/internal/taskfile"
	"github.com/spf13/cobra"
)

// syncCmd pushes changed task files to the project's issue tracker.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push changed task files to the issue tracker",
	Long: `Synchronize the task files listed in the project file with the issue tracker.

For every task reference, in file order:

1. Tasks marked [new] get a new issue; the project file is then updated to [#n]
2. Tasks marked [#n] update issue n with the task's title, body and tags
3. Tasks whose file has not changed since the last sync are skipped

After a successful remote call the task file header records issue_id,
created_at and updated_at. A failing task is reported and does not stop the
others; the command exits with an error if any task failed. A task file saved
while its issue is being written is left untouched and the task is reported
as failed; record the printed issue number in its header before syncing again.

Example:
  projectmd sync -p project.md
  projectmd sync --force
  projectmd sync --dry-run`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolP("force", "f", false, "Sync every task, even if unchanged")
	syncCmd.Flags().Bool("dry-run", false, "Show what would be synced without contacting the tracker")
}

func runSync(cmd *cobra.Command, args []string) error {
	path, err := projectFile(cmd)
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	if dryRun {
		return planSync(cmd.Context(), cmd.OutOrStdout(), path, force)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return runProjectSync(cmd.Context(), cmd.OutOrStdout(), cfg, path, force)
}

// runProjectSync syncs the project and prints the report. It fails when the
// run could not complete or when any task failed.
func runProjectSync(ctx context.Context, w io.Writer, cfg *config.Config, path string, force bool) error {
	logging.Info("starting synchronization", "project", path, "force", force)

	report, err := syncer.Run(ctx, cfg, path, syncer.Options{Force: force})
	if report != nil {
		printReport(w, report)
	}
	if err != nil {
		return err
	}

	if report.HasFailures() {
		return fmt.Errorf("%d of %d tasks failed", report.Count(syncer.OutcomeFailed), report.Total())
	}
	return nil
}

func planSync(ctx context.Context, w io.Writer, path string, force bool) error {
	project, err := taskfile.ReadProject(path)
	if err != nil {
		return err
	}

	engine := syncer.NewEngine(nil, filepath.Dir(path), syncer.Options{Force: force})
	actions, err := engine.Plan(ctx, project.Tasks)
	printPlan(w, project.Config.Backend, project.Config.Repo, actions)
	return err
}
