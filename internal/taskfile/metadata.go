package taskfile

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/danielolaszy/projectmd/internal/logging"
	"github.com/danielolaszy/projectmd/pkg/models"
	"github.com/natefinch/atomic"
)

// FormatTimestamp renders t the way sync timestamps are stored in task files:
// RFC 3339 in UTC with nanoseconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a stored sync timestamp and returns it in UTC.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ApplySyncMetadata returns a copy of record stamped after a successful
// remote call. The issue id and updated_at are always set; created_at is only
// set on the first link or when it was never recorded. All other fields,
// including the text, are left alone.
func ApplySyncMetadata(record models.TaskRecord, issueNumber int, firstLink bool, now time.Time) models.TaskRecord {
	updated := record.Clone()
	stamp := FormatTimestamp(now)

	updated.IssueID = &issueNumber
	if firstLink || updated.CreatedAt == "" {
		updated.CreatedAt = stamp
	}
	updated.UpdatedAt = stamp

	return updated
}

// WriteTask atomically replaces the task file at path with the rendered
// record and sets its modification time to modTime. Readers see either the
// old file or the new one, never a partial write.
func WriteTask(path string, record models.TaskRecord, modTime time.Time) error {
	data, err := MarshalTask(record)
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write task file %s: %w", path, err)
	}

	// The stored updated_at and the file clock must agree, otherwise the
	// rewrite itself would make the task look modified on the next run.
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		logging.Warn("failed to set task file modification time",
			"path", path,
			"error", err)
	}

	return nil
}

// SaveSyncMetadata stamps record with the sync result and persists it. On
// failure the original record is returned unchanged together with the error,
// so nothing is reported as saved unless the write completed.
func SaveSyncMetadata(path string, record models.TaskRecord, issueNumber int, firstLink bool, now time.Time) (models.TaskRecord, error) {
	updated := ApplySyncMetadata(record, issueNumber, firstLink, now)
	if err := WriteTask(path, updated, now); err != nil {
		return record, err
	}

	logging.Debug("saved sync metadata",
		"path", path,
		"issue_id", issueNumber,
		"updated_at", updated.UpdatedAt)

	return updated, nil
}
