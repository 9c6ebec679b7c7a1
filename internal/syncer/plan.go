package syncer

import (
	"context"
	"fmt"

	"github.com/danielolaszy/projectmd/internal/taskfile"
	"github.com/danielolaszy/projectmd/pkg/models"
)

// Action is what a sync run would do with one task.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
	ActionError  Action = "error"
)

// PlannedAction is the dry run result for one task reference.
type PlannedAction struct {
	Path   string
	Action Action
	// IssueNumber is the issue an update would target.
	IssueNumber int
	// Title is the issue title that would be sent.
	Title string
	Err   error
}

// Plan evaluates every reference the way Sync would, without calling the
// backend or writing any file.
func (e *Engine) Plan(ctx context.Context, refs []models.TaskReference) ([]PlannedAction, error) {
	actions := make([]PlannedAction, 0, len(refs))

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return actions, fmt.Errorf("plan cancelled: %w", err)
		}
		actions = append(actions, e.planTask(ref))
	}

	return actions, nil
}

func (e *Engine) planTask(ref models.TaskReference) PlannedAction {
	planned := PlannedAction{Path: ref.Path}

	record, modTime, err := taskfile.ReadTask(e.resolve(ref.Path))
	if err != nil {
		planned.Action, planned.Err = ActionError, err
		return planned
	}
	planned.Title = record.Title

	stale, err := ShouldSync(modTime, record.UpdatedAt, e.force)
	if err != nil {
		planned.Action, planned.Err = ActionError, err
		return planned
	}
	if !stale {
		planned.Action = ActionSkip
		return planned
	}

	number, linked, err := target(ref, record)
	switch {
	case err != nil:
		planned.Action, planned.Err = ActionError, err
	case linked:
		planned.Action, planned.IssueNumber = ActionUpdate, number
	default:
		planned.Action = ActionCreate
	}
	return planned
}
