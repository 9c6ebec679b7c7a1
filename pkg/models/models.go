// Package models defines data structures shared across the application.
package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// RemoteStatus records whether a task reference is already linked to a
// remote issue. The zero value means the task is new.
type RemoteStatus struct {
	number int
}

// NewStatus returns the status of a task that has no remote issue yet.
func NewStatus() RemoteStatus {
	return RemoteStatus{}
}

// LinkedStatus returns the status of a task linked to the given issue number.
func LinkedStatus(number int) RemoteStatus {
	return RemoteStatus{number: number}
}

// IsNew reports whether the task has no remote issue yet.
func (s RemoteStatus) IsNew() bool {
	return s.number == 0
}

// IssueNumber returns the linked issue number and true, or 0 and false for new tasks.
func (s RemoteStatus) IssueNumber() (int, bool) {
	return s.number, s.number != 0
}

// String renders the status the way it is written in a project file.
func (s RemoteStatus) String() string {
	if s.IsNew() {
		return "new"
	}
	return fmt.Sprintf("#%d", s.number)
}

// TaskReference is one entry of a project's task list.
type TaskReference struct {
	// Path is the task file location, relative to the project root
	Path string

	// Description is the short label written next to the path
	Description string

	// Status is either new or linked to an issue number
	Status RemoteStatus
}

// ProjectConfig is the header of a project file.
type ProjectConfig struct {
	// Backend names the issue tracker (e.g., "github", "jira")
	Backend string

	// Repo identifies the remote project ("owner/repo" for GitHub, a project key for JIRA)
	Repo string

	// Extra holds header keys this tool does not interpret
	Extra Fields
}

// Project is a parsed project file.
type Project struct {
	Config ProjectConfig
	Tasks  []TaskReference
}

// Field is a single header key with its raw YAML value.
type Field struct {
	Key   string
	Value *yaml.Node
}

// Fields is an ordered set of header keys. Values are kept as YAML nodes so
// they survive a read-modify-write cycle without needing a schema.
type Fields []Field

// Get returns the value node stored under key.
func (f Fields) Get(key string) (*yaml.Node, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in their original order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for _, field := range f {
		keys = append(keys, field.Key)
	}
	return keys
}

// Decode decodes the value stored under key into out.
func (f Fields) Decode(key string, out any) error {
	node, ok := f.Get(key)
	if !ok {
		return fmt.Errorf("field %q not present", key)
	}
	return node.Decode(out)
}

// TaskRecord is the structured content of one task file.
type TaskRecord struct {
	// IssueID is the remote issue number once the task has been linked
	IssueID *int

	// Type is a free-form classification (e.g., "bug", "feature")
	Type *string

	// Tags are sent to the tracker as labels; nil when the header has no tags key
	Tags []string

	// CreatedAt is the RFC 3339 time of the first successful sync, empty if never synced
	CreatedAt string

	// UpdatedAt is the RFC 3339 time of the last successful sync, empty if never synced
	UpdatedAt string

	// Extra holds unrecognized header keys in file order
	Extra Fields

	// Title is the text of the first "# " heading
	Title string

	// Body is the text following the title, trimmed
	Body string

	// Content is everything after the closing header delimiter, byte for byte
	Content string
}

// Clone returns a copy of r that shares no mutable state with it.
func (r TaskRecord) Clone() TaskRecord {
	out := r
	if r.IssueID != nil {
		id := *r.IssueID
		out.IssueID = &id
	}
	if r.Type != nil {
		t := *r.Type
		out.Type = &t
	}
	if r.Tags != nil {
		out.Tags = append([]string{}, r.Tags...)
	}
	if r.Extra != nil {
		out.Extra = append(Fields{}, r.Extra...)
	}
	return out
}

// Labels returns the tags to send to the tracker, never nil.
func (r TaskRecord) Labels() []string {
	if r.Tags == nil {
		return []string{}
	}
	return append([]string{}, r.Tags...)
}

// Issue represents a remote issue with its essential fields.
type Issue struct {
	// Number is the issue number in the tracker (e.g., 42)
	Number int

	// Title is the issue's title or summary
	Title string

	// Body is the full description text of the issue
	Body string

	// State is either "open" or "closed"
	State string

	// Labels is a slice of label names attached to the issue
	Labels []string

	// URL links to the issue in the tracker's web UI
	URL string
}
