// Package metrics persists task runs and the live progress snapshot as
// flat JSON files. These files are the IPC surface between the running
// session and the short-lived inspection commands.
package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/taskmill/mill/internal/models"
)

// SchemaVersion is bumped when the document layout changes.
const SchemaVersion = 1

// DefaultRetentionDays bounds how long task runs are kept.
const DefaultRetentionDays = 90

// Document is the on-disk shape of the metrics store.
type Document struct {
	Version       int               `json:"version"`
	RetentionDays int               `json:"retention_days"`
	Tasks         []*models.TaskRun `json:"tasks"`
}

// Store reads and appends task runs. The session loop is the only writer
// during a run; history/replay/insights commands are concurrent readers.
type Store struct {
	Path          string
	RetentionDays int
}

// NewStore creates a store at path with the default retention window.
func NewStore(path string) *Store {
	return &Store{Path: path, RetentionDays: DefaultRetentionDays}
}

// Load reads the document, returning an empty one if the file does not
// exist yet. A transiently unreadable or torn file is reported as an
// error; readers are expected to retry.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return &Document{Version: SchemaVersion, RetentionDays: s.RetentionDays}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metrics: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse metrics %s: %w", s.Path, err)
	}
	if doc.RetentionDays == 0 {
		doc.RetentionDays = s.RetentionDays
	}
	return &doc, nil
}

// Append adds a finalized run, prunes records past the retention window,
// and writes the document atomically.
func (s *Store) Append(run *models.TaskRun) error {
	doc, err := s.Load()
	if err != nil {
		return err
	}
	doc.Version = SchemaVersion
	doc.Tasks = append(doc.Tasks, run)
	doc.Tasks = prune(doc.Tasks, doc.RetentionDays, time.Now())
	return WriteJSONAtomic(s.Path, doc)
}

// Runs returns all retained runs, oldest first.
func (s *Store) Runs() ([]*models.TaskRun, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	return doc.Tasks, nil
}

// FailedRuns returns retained runs that did not complete.
func (s *Store) FailedRuns() ([]*models.TaskRun, error) {
	runs, err := s.Runs()
	if err != nil {
		return nil, err
	}
	var failed []*models.TaskRun
	for _, r := range runs {
		if r.Outcome != models.OutcomeCompleted && r.Outcome != models.OutcomeSkipped {
			failed = append(failed, r)
		}
	}
	return failed, nil
}

// LastRun returns the most recent run, nil if the store is empty.
func (s *Store) LastRun() (*models.TaskRun, error) {
	runs, err := s.Runs()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[len(runs)-1], nil
}

// prune drops runs older than retentionDays, preserving order.
func prune(runs []*models.TaskRun, retentionDays int, now time.Time) []*models.TaskRun {
	if retentionDays <= 0 {
		return runs
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	kept := runs[:0]
	for _, r := range runs {
		if r.StartedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}
