package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/taskmill/mill/internal/models"
)

// ProgressWriter overwrites the progress snapshot in place. Only the
// session loop writes it; status/watch read it without locking.
type ProgressWriter struct {
	Path      string
	StartedAt time.Time
}

// NewProgressWriter creates a writer anchored to the session start time.
func NewProgressWriter(path string) *ProgressWriter {
	return &ProgressWriter{Path: path, StartedAt: time.Now()}
}

// Write persists the snapshot, stamping elapsed time and last-updated.
func (w *ProgressWriter) Write(p *models.Progress) error {
	p.StartedAt = w.StartedAt
	p.ElapsedSeconds = int64(time.Since(w.StartedAt).Seconds())
	p.LastUpdated = time.Now()
	return WriteJSONAtomic(w.Path, p)
}

// ReadProgress loads the snapshot. A missing file means no session has
// run; callers render that as idle.
func ReadProgress(path string) (*models.Progress, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &models.Progress{Status: models.SessionIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read progress: %w", err)
	}
	var p models.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse progress %s: %w", path, err)
	}
	return &p, nil
}
