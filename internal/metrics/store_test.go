package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/mill/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "metrics.json"))
}

func run(issue int, outcome models.Outcome, started time.Time) *models.TaskRun {
	return &models.TaskRun{
		ID:        "01JTEST" + string(rune('A'+issue%26)),
		Issue:     issue,
		Branch:    "mill/test",
		Outcome:   outcome,
		Retries:   issue % 3,
		CostUSD:   0.5,
		StartedAt: started,
	}
}

func TestAppendAndRoundTrip(t *testing.T) {
	s := testStore(t)
	in := run(142, models.OutcomeCompleted, time.Now())
	in.CostUSD = 1.25
	in.Retries = 2
	require.NoError(t, s.Append(in))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, 142, got.Issue)
	assert.Equal(t, models.OutcomeCompleted, got.Outcome)
	assert.Equal(t, 1.25, got.CostUSD)
	assert.Equal(t, 2, got.Retries)
}

func TestAppend_PrunesOldRuns(t *testing.T) {
	s := testStore(t)
	s.RetentionDays = 30

	old := run(1, models.OutcomeFailed, time.Now().AddDate(0, 0, -60))
	require.NoError(t, s.Append(old))
	fresh := run(2, models.OutcomeCompleted, time.Now())
	require.NoError(t, s.Append(fresh))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Issue)
}

func TestLoad_MissingFile(t *testing.T) {
	s := testStore(t)
	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, doc.Version)
	assert.Empty(t, doc.Tasks)
}

func TestLoad_CorruptFile(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.WriteFile(s.Path, []byte("{not json"), 0o644))
	_, err := s.Load()
	assert.Error(t, err)
}

func TestFailedRuns(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Append(run(1, models.OutcomeCompleted, time.Now())))
	require.NoError(t, s.Append(run(2, models.OutcomeFailed, time.Now())))
	require.NoError(t, s.Append(run(3, models.OutcomeTimeout, time.Now())))
	require.NoError(t, s.Append(run(4, models.OutcomeSkipped, time.Now())))

	failed, err := s.FailedRuns()
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, 2, failed[0].Issue)
	assert.Equal(t, 3, failed[1].Issue)
}

func TestLastRun(t *testing.T) {
	s := testStore(t)

	last, err := s.LastRun()
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, s.Append(run(1, models.OutcomeCompleted, time.Now())))
	require.NoError(t, s.Append(run(2, models.OutcomeFailed, time.Now())))

	last, err = s.LastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 2, last.Issue)
}

func TestWriteJSONAtomic_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.json")
	require.NoError(t, WriteJSONAtomic(path, map[string]int{"a": 1}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "metrics.json", entries[0].Name())
}

func TestWriteJSONAtomic_AlwaysValidJSON(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(run(i, models.OutcomeCompleted, time.Now())))
		data, err := os.ReadFile(s.Path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "{"))
		_, err = s.Load()
		require.NoError(t, err)
	}
}

func TestProgressRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	w := NewProgressWriter(path)

	require.NoError(t, w.Write(&models.Progress{
		Status:         models.SessionRunning,
		CurrentTask:    142,
		Phase:          models.PhaseImplementation,
		Iteration:      2,
		TasksCompleted: 3,
	}))

	p, err := ReadProgress(path)
	require.NoError(t, err)
	assert.Equal(t, models.SessionRunning, p.Status)
	assert.Equal(t, 142, p.CurrentTask)
	assert.Equal(t, models.PhaseImplementation, p.Phase)
	assert.Equal(t, 3, p.TasksCompleted)
	assert.False(t, p.LastUpdated.IsZero())
}

func TestReadProgress_Missing(t *testing.T) {
	p, err := ReadProgress(filepath.Join(t.TempDir(), "progress.json"))
	require.NoError(t, err)
	assert.Equal(t, models.SessionIdle, p.Status)
}
