// Package errlog implements the shared append-only error log. Every skipped
// item across the whole multi-project run lands here with enough context
// (project, stage, identifier) to re-run just that item.
package errlog

import (
	"fmt"
	"os"
	"time"
)

// Log appends one line per failure to a text file. Writes are sequential
// (the pipeline is single-threaded) so no locking is required.
type Log struct {
	f *os.File
}

// Open opens or creates the error log file in append mode.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open error log %s: %w", path, err)
	}
	return &Log{f: f}, nil
}

// Append records one failure. The format is stable: timestamp, project,
// stage, message.
func (l *Log) Append(projectID, stage, message string) {
	if l == nil || l.f == nil {
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	fmt.Fprintf(l.f, "%s\tproject=%s\tstage=%s\t%s\n", ts, projectID, stage, message)
}

// Appendf is Append with a formatted message.
func (l *Log) Appendf(projectID, stage, format string, args ...any) {
	l.Append(projectID, stage, fmt.Sprintf(format, args...))
}

// Close closes the underlying file.
func (l *Log) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}
