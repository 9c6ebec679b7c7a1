// Package backend defines the capability the sync engine needs from an issue
// tracker, and a registry of the concrete tracker adapters.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/danielolaszy/projectmd/internal/config"
	"github.com/danielolaszy/projectmd/pkg/models"
)

// Backend is the set of issue tracker operations used by the sync engine.
// Every error returned by an implementation is an *Error.
type Backend interface {
	// Name returns the backend identifier used in project files (e.g., "github").
	Name() string

	// CreateIssue creates a new issue and returns it with its assigned number.
	CreateIssue(ctx context.Context, title, body string, labels []string) (*models.Issue, error)

	// UpdateIssue replaces the title, body and labels of an existing issue.
	UpdateIssue(ctx context.Context, number int, title, body string, labels []string) (*models.Issue, error)

	// GetIssue fetches a single issue by number.
	GetIssue(ctx context.Context, number int) (*models.Issue, error)

	// ListIssues returns every issue of the remote project, open and closed.
	ListIssues(ctx context.Context) ([]models.Issue, error)
}

// ErrorKind classifies backend failures.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindAuth        ErrorKind = "auth"
	KindNotFound    ErrorKind = "not_found"
	KindRateLimited ErrorKind = "rate_limited"
	KindOther       ErrorKind = "other"
)

// Error is returned by every Backend operation that fails.
type Error struct {
	// Op is the operation that failed (e.g., "create issue").
	Op string
	// Number is the issue number involved, 0 if none.
	Number int
	Kind   ErrorKind
	Err    error
}

func (e *Error) Error() string {
	if e.Number != 0 {
		return fmt.Sprintf("%s #%d: %s: %v", e.Op, e.Number, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a backend error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var backendErr *Error
	if errors.As(err, &backendErr) {
		return backendErr.Kind
	}
	return ""
}

// KindFromStatus maps an HTTP status code to an error kind. Zero means the
// request never got a response.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == 0:
		return KindNetwork
	case status == 401 || status == 403:
		return KindAuth
	case status == 404:
		return KindNotFound
	case status == 429:
		return KindRateLimited
	default:
		return KindOther
	}
}

// Factory creates a Backend for the remote project named by target
// ("owner/repo" for GitHub, a project key for JIRA).
type Factory func(ctx context.Context, cfg *config.Config, target string) (Backend, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a backend factory under the given name.
// It panics on duplicate registration.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("backend: duplicate registration %q", name))
	}
	factories[name] = factory
}

// New creates a backend by name using the registered factory.
func New(ctx context.Context, name string, cfg *config.Config, target string) (Backend, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported backend %q (available: %v)", name, Available())
	}
	return factory(ctx, cfg, target)
}

// Available returns the sorted list of registered backend names.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
