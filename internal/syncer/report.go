package syncer

import "fmt"

// OutcomeKind is the result category of syncing one task.
type OutcomeKind string

const (
	OutcomeCreated OutcomeKind = "created"
	OutcomeUpdated OutcomeKind = "updated"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome is the result of syncing one task reference.
type Outcome struct {
	Kind OutcomeKind
	// IssueNumber is set for created and updated outcomes.
	IssueNumber int
	// Err is set for failed outcomes.
	Err error
}

// Created returns the outcome of a task that got a new remote issue.
func Created(number int) Outcome {
	return Outcome{Kind: OutcomeCreated, IssueNumber: number}
}

// Updated returns the outcome of a task whose remote issue was updated.
func Updated(number int) Outcome {
	return Outcome{Kind: OutcomeUpdated, IssueNumber: number}
}

// Skipped returns the outcome of a task that had no local changes.
func Skipped() Outcome {
	return Outcome{Kind: OutcomeSkipped}
}

// Failed returns the outcome of a task that could not be synced.
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// String describes the outcome for humans.
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeCreated:
		return fmt.Sprintf("created #%d", o.IssueNumber)
	case OutcomeUpdated:
		return fmt.Sprintf("updated #%d", o.IssueNumber)
	case OutcomeFailed:
		return fmt.Sprintf("failed: %v", o.Err)
	default:
		return string(o.Kind)
	}
}

// Entry pairs a task path with its outcome.
type Entry struct {
	Path    string
	Outcome Outcome
}

// Report collects the outcomes of one sync run in task list order.
type Report struct {
	RunID   string
	Entries []Entry
}

// Add appends the outcome for path.
func (r *Report) Add(path string, outcome Outcome) {
	r.Entries = append(r.Entries, Entry{Path: path, Outcome: outcome})
}

// Total returns the number of task references processed.
func (r *Report) Total() int {
	return len(r.Entries)
}

// Count returns the number of outcomes of the given kind.
func (r *Report) Count(kind OutcomeKind) int {
	n := 0
	for _, entry := range r.Entries {
		if entry.Outcome.Kind == kind {
			n++
		}
	}
	return n
}

// HasFailures reports whether any task failed.
func (r *Report) HasFailures() bool {
	return r.Count(OutcomeFailed) > 0
}

// Failures returns the failed entries.
func (r *Report) Failures() []Entry {
	var failed []Entry
	for _, entry := range r.Entries {
		if entry.Outcome.Kind == OutcomeFailed {
			failed = append(failed, entry)
		}
	}
	return failed
}
