package cmd

import (
	"fmt"
	"io"

	"github.com/danielolaszy/projectmd/internal/syncer"
	"github.com/fatih/color"
)

var (
	createdLabel = color.New(color.FgGreen).SprintFunc()
	updatedLabel = color.New(color.FgCyan).SprintFunc()
	skippedLabel = color.New(color.Faint).SprintFunc()
	failedLabel  = color.New(color.FgRed, color.Bold).SprintFunc()
)

// printReport writes one line per task followed by the outcome counts.
func printReport(w io.Writer, report *syncer.Report) {
	for _, entry := range report.Entries {
		outcome := entry.Outcome
		switch outcome.Kind {
		case syncer.OutcomeCreated:
			fmt.Fprintf(w, "%s %s (#%d)\n", createdLabel("created"), entry.Path, outcome.IssueNumber)
		case syncer.OutcomeUpdated:
			fmt.Fprintf(w, "%s %s (#%d)\n", updatedLabel("updated"), entry.Path, outcome.IssueNumber)
		case syncer.OutcomeSkipped:
			fmt.Fprintf(w, "%s %s\n", skippedLabel("skipped"), entry.Path)
		case syncer.OutcomeFailed:
			fmt.Fprintf(w, "%s  %s: %v\n", failedLabel("failed"), entry.Path, outcome.Err)
		}
	}

	fmt.Fprintf(w, "\n%d tasks: %s, %s, %s, %s\n",
		report.Total(),
		createdLabel(fmt.Sprintf("%d created", report.Count(syncer.OutcomeCreated))),
		updatedLabel(fmt.Sprintf("%d updated", report.Count(syncer.OutcomeUpdated))),
		skippedLabel(fmt.Sprintf("%d skipped", report.Count(syncer.OutcomeSkipped))),
		failedLabel(fmt.Sprintf("%d failed", report.Count(syncer.OutcomeFailed))))
}

// printPlan writes the actions a sync run would take.
func printPlan(w io.Writer, backendName, repo string, actions []syncer.PlannedAction) {
	fmt.Fprintf(w, "Dry run for %s (%s)\n\n", repo, backendName)

	counts := make(map[syncer.Action]int)
	for _, action := range actions {
		counts[action.Action]++
		switch action.Action {
		case syncer.ActionCreate:
			fmt.Fprintf(w, "%s %s: %q\n", createdLabel("create"), action.Path, action.Title)
		case syncer.ActionUpdate:
			fmt.Fprintf(w, "%s %s: #%d %q\n", updatedLabel("update"), action.Path, action.IssueNumber, action.Title)
		case syncer.ActionSkip:
			fmt.Fprintf(w, "%s   %s\n", skippedLabel("skip"), action.Path)
		case syncer.ActionError:
			fmt.Fprintf(w, "%s  %s: %v\n", failedLabel("error"), action.Path, action.Err)
		}
	}

	fmt.Fprintf(w, "\n%d to create, %d to update, %d unchanged, %d with errors\n",
		counts[syncer.ActionCreate],
		counts[syncer.ActionUpdate],
		counts[syncer.ActionSkip],
		counts[syncer.ActionError])
}
