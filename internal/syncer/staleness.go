package syncer

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielolaszy/projectmd/internal/taskfile"
)

// ErrMalformedTimestamp is returned when a stored updated_at cannot be parsed.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// ShouldSync reports whether a task needs to be pushed to the tracker.
//
// Force always wins. A task that was never synchronized (empty storedUpdatedAt)
// is stale. Otherwise the task is stale only if the file was modified strictly
// after the stored time; equal instants count as unchanged. Both sides are
// compared in UTC.
func ShouldSync(modTime time.Time, storedUpdatedAt string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	if storedUpdatedAt == "" {
		return true, nil
	}

	updatedAt, err := taskfile.ParseTimestamp(storedUpdatedAt)
	if err != nil {
		return false, fmt.Errorf("%w: updated_at %q: %v", ErrMalformedTimestamp, storedUpdatedAt, err)
	}

	return modTime.UTC().After(updatedAt), nil
}
