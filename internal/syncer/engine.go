// Package syncer pushes local task files to an issue tracker. Tasks are
// processed one at a time in project order; a failing task is recorded in the
// report and never stops the run.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/danielolaszy/projectmd/internal/backend"
	"github.com/danielolaszy/projectmd/internal/config"
	"github.com/danielolaszy/projectmd/internal/logging"
	"github.com/danielolaszy/projectmd/internal/taskfile"
	"github.com/danielolaszy/projectmd/pkg/models"
	"github.com/google/uuid"
)

// ErrIssueMismatch is returned when a project file and a task file disagree
// about which issue a task is linked to.
var ErrIssueMismatch = errors.New("issue id mismatch")

// ErrTaskChanged is returned when a task file is modified while its remote
// call is in flight. The file is left as the user saved it.
var ErrTaskChanged = errors.New("task file changed during sync")

// Options controls a sync run.
type Options struct {
	// Force bypasses the staleness check for every task.
	Force bool

	// Now returns the time recorded in synced task files. Defaults to time.Now.
	Now func() time.Time

	// Logger receives the run's log records. Defaults to the package logger.
	Logger *slog.Logger
}

// Engine syncs the task references of one project against a backend.
type Engine struct {
	backend backend.Backend
	root    string
	force   bool
	now     func() time.Time
	logger  *slog.Logger
}

// NewEngine returns an engine that resolves task paths relative to root.
func NewEngine(b backend.Backend, root string, opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		backend: b,
		root:    root,
		force:   opts.Force,
		now:     now,
		logger:  opts.Logger,
	}
}

// Sync processes refs in order and returns one outcome per reference. The
// error is non-nil only when ctx is cancelled, in which case the report holds
// the tasks processed so far.
func (e *Engine) Sync(ctx context.Context, refs []models.TaskReference) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	log := e.runLogger(report.RunID)

	log.Info("starting sync",
		"backend", e.backend.Name(),
		"tasks", len(refs),
		"force", e.force)

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			log.Warn("sync cancelled", "processed", report.Total(), "remaining", len(refs)-report.Total())
			return report, fmt.Errorf("sync cancelled: %w", err)
		}

		outcome := e.syncTask(ctx, ref, log.With("path", ref.Path))
		report.Add(ref.Path, outcome)
	}

	log.Info("sync finished",
		"total", report.Total(),
		"created", report.Count(OutcomeCreated),
		"updated", report.Count(OutcomeUpdated),
		"skipped", report.Count(OutcomeSkipped),
		"failed", report.Count(OutcomeFailed))

	return report, nil
}

// SyncProject syncs every task of project and then rewrites the project file
// at projectPath so newly linked tasks carry their issue number. A failure
// to rewrite the project file is returned with the complete report.
func (e *Engine) SyncProject(ctx context.Context, projectPath string, project *models.Project) (*Report, error) {
	report, err := e.Sync(ctx, project.Tasks)

	links := NewLinks(project.Tasks, report)
	if len(links) > 0 {
		if linkErr := taskfile.UpdateProjectLinks(projectPath, links); linkErr != nil {
			return report, errors.Join(err, fmt.Errorf("update project links: %w", linkErr))
		}
		e.runLogger(report.RunID).Info("linked new tasks in project file",
			"project", projectPath,
			"count", len(links))
	}

	return report, err
}

// NewLinks returns the issue numbers that references still marked new in the
// project file now point to, keyed by task path.
func NewLinks(refs []models.TaskReference, report *Report) map[string]int {
	links := make(map[string]int)
	for i, entry := range report.Entries {
		if i >= len(refs) || !refs[i].Status.IsNew() {
			continue
		}
		switch entry.Outcome.Kind {
		case OutcomeCreated, OutcomeUpdated:
			links[entry.Path] = entry.Outcome.IssueNumber
		}
	}
	return links
}

// Run reads the project file, connects to the backend it names and syncs
// all of its tasks. Errors that prevent the run from starting are returned
// with a nil report.
func Run(ctx context.Context, cfg *config.Config, projectPath string, opts Options) (*Report, error) {
	project, err := taskfile.ReadProject(projectPath)
	if err != nil {
		return nil, err
	}

	b, err := backend.New(ctx, project.Config.Backend, cfg, project.Config.Repo)
	if err != nil {
		return nil, fmt.Errorf("connect to %s backend: %w", project.Config.Backend, err)
	}

	engine := NewEngine(b, filepath.Dir(projectPath), opts)
	return engine.SyncProject(ctx, projectPath, project)
}

func (e *Engine) syncTask(ctx context.Context, ref models.TaskReference, log *slog.Logger) Outcome {
	path := e.resolve(ref.Path)

	record, modTime, err := taskfile.ReadTask(path)
	if err != nil {
		log.Error("failed to load task", "error", err)
		return Failed(err)
	}

	if !e.force {
		stale, err := ShouldSync(modTime, record.UpdatedAt, false)
		if err != nil {
			log.Error("failed to evaluate staleness", "error", err)
			return Failed(err)
		}
		if !stale {
			log.Debug("task unchanged since last sync", "updated_at", record.UpdatedAt)
			return Skipped()
		}
	}

	number, linked, err := target(ref, record)
	if err != nil {
		log.Error("task link mismatch", "error", err)
		return Failed(err)
	}

	var issue *models.Issue
	if linked {
		issue, err = e.backend.UpdateIssue(ctx, number, record.Title, record.Body, record.Labels())
	} else {
		issue, err = e.backend.CreateIssue(ctx, record.Title, record.Body, record.Labels())
	}
	if err != nil {
		log.Error("remote call failed", "issue_number", number, "error", err)
		return Failed(err)
	}
	if issue == nil {
		return Failed(fmt.Errorf("%s backend returned no issue", e.backend.Name()))
	}

	// issue_id is never reassigned
	if linked {
		issue.Number = number
	}

	if err := unchangedSince(path, modTime); err != nil {
		log.Error("task file changed during sync", "issue_number", issue.Number, "error", err)
		return Failed(fmt.Errorf("issue #%d synced but task file not updated: %w", issue.Number, err))
	}

	if _, err := taskfile.SaveSyncMetadata(path, record, issue.Number, !linked, e.now()); err != nil {
		log.Error("failed to save sync metadata", "issue_number", issue.Number, "error", err)
		return Failed(fmt.Errorf("issue #%d synced but task file not updated: %w", issue.Number, err))
	}

	if linked {
		log.Info("updated issue", "issue_number", issue.Number)
		return Updated(issue.Number)
	}
	log.Info("created issue", "issue_number", issue.Number, "url", issue.URL)
	return Created(issue.Number)
}

// target decides which issue a task maps to. linked is false when a new issue
// must be created. A task file that already records an issue id keeps it,
// even if the project file still lists the task as new.
func target(ref models.TaskReference, record models.TaskRecord) (int, bool, error) {
	refNumber, refLinked := ref.Status.IssueNumber()

	switch {
	case record.IssueID == nil && !refLinked:
		return 0, false, nil
	case record.IssueID == nil:
		return refNumber, true, nil
	case !refLinked:
		return *record.IssueID, true, nil
	case *record.IssueID != refNumber:
		return 0, false, fmt.Errorf("%w: project file links #%d, task file records issue_id %d",
			ErrIssueMismatch, refNumber, *record.IssueID)
	default:
		return refNumber, true, nil
	}
}

func (e *Engine) resolve(path string) string {
	return taskfile.ResolvePath(e.root, path)
}

// unchangedSince reports ErrTaskChanged when the file at path was modified
// after modTime.
func unchangedSince(path string, modTime time.Time) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat task file: %w", err)
	}
	if info.ModTime().UTC().After(modTime) {
		return fmt.Errorf("%w: %s", ErrTaskChanged, path)
	}
	return nil
}

func (e *Engine) runLogger(runID string) *slog.Logger {
	if e.logger != nil {
		return e.logger.With("run_id", runID)
	}
	return logging.ForRun(runID)
}
