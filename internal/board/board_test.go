package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/mill/internal/config"
	"github.com/taskmill/mill/internal/models"
)

const itemListJSON = `{
  "items": [
    {"id": "PVTI_1", "status": "Ready", "content": {"type": "Issue", "number": 142, "title": "Fix login crash", "body": "steps to reproduce", "url": "https://github.com/acme/widgets/issues/142", "labels": ["bug", "p1"]}},
    {"id": "PVTI_2", "status": "In progress", "content": {"type": "Issue", "number": 143, "title": "Add dark mode", "body": "", "url": "https://github.com/acme/widgets/issues/143", "labels": ["enhancement"]}},
    {"id": "PVTI_3", "status": "Ready", "content": {"type": "DraftIssue", "number": 0, "title": "scratch note", "body": "", "url": "", "labels": []}},
    {"id": "PVTI_4", "status": "Ready", "content": {"type": "Issue", "number": 150, "title": "Update deps", "body": "", "url": "https://github.com/acme/widgets/issues/150", "labels": []}}
  ]
}`

func TestParseReadyItems(t *testing.T) {
	tasks, err := ParseReadyItems(itemListJSON, "Ready")
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, 142, tasks[0].Number)
	assert.Equal(t, "Fix login crash", tasks[0].Title)
	assert.Equal(t, []string{"bug", "p1"}, tasks[0].Labels)
	assert.Equal(t, 150, tasks[1].Number)
}

func TestParseReadyItems_ColumnCaseInsensitive(t *testing.T) {
	tasks, err := ParseReadyItems(itemListJSON, "ready")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestParseReadyItems_SkipsDrafts(t *testing.T) {
	tasks, err := ParseReadyItems(itemListJSON, "Ready")
	require.NoError(t, err)
	for _, task := range tasks {
		assert.NotEqual(t, 0, task.Number)
	}
}

func TestParseReadyItems_Empty(t *testing.T) {
	tasks, err := ParseReadyItems(`{"items": []}`, "Ready")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestParseReadyItems_BadJSON(t *testing.T) {
	_, err := ParseReadyItems(`{`, "Ready")
	assert.Error(t, err)
}

func TestParseStatusField(t *testing.T) {
	doc := `{
  "fields": [
    {"id": "PVTF_title", "name": "Title"},
    {"id": "PVTSSF_status", "name": "Status", "options": [
      {"id": "opt1", "name": "Ready"},
      {"id": "opt2", "name": "In progress"},
      {"id": "opt3", "name": "Done"}
    ]}
  ]
}`
	fieldID, options, err := ParseStatusField(doc)
	require.NoError(t, err)
	assert.Equal(t, "PVTSSF_status", fieldID)
	assert.Equal(t, "opt1", options["ready"])
	assert.Equal(t, "opt2", options["in progress"])
}

func TestParseStatusField_Missing(t *testing.T) {
	_, _, err := ParseStatusField(`{"fields": [{"id": "x", "name": "Title"}]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Status field")
}

func newTestBoard(t *testing.T, mappings map[string]string) *GhBoard {
	t.Helper()
	cfg := config.Default()
	cfg.GitHub.Repo = "acme/widgets"
	cfg.Category.Mappings = mappings
	b, err := New(cfg, nil)
	require.NoError(t, err)
	return b
}

func TestNew_BadRepo(t *testing.T) {
	cfg := config.Default()
	cfg.GitHub.Repo = "not-a-slug"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestCategory_Mapping(t *testing.T) {
	b := newTestBoard(t, map[string]string{"enhancement": "feature", "defect": "bug"})
	task := &models.Task{Title: "anything", Labels: []string{"p1", "defect"}}
	assert.Equal(t, models.CategoryBug, b.Category(task))
}

func TestCategory_DirectLabel(t *testing.T) {
	b := newTestBoard(t, nil)
	task := &models.Task{Title: "anything", Labels: []string{"refactor"}}
	assert.Equal(t, models.CategoryRefactor, b.Category(task))
}

func TestCategory_TitleHeuristic(t *testing.T) {
	b := newTestBoard(t, nil)

	assert.Equal(t, models.CategoryBug, b.Category(&models.Task{Title: "Fix crash on startup"}))
	assert.Equal(t, models.CategoryDocs, b.Category(&models.Task{Title: "Update README installation steps"}))
	assert.Equal(t, models.CategoryChore, b.Category(&models.Task{Title: "Bump golang.org/x/sys"}))
	assert.Equal(t, models.CategoryFeature, b.Category(&models.Task{Title: "Add dark mode"}))
}

type fakeCategorizer struct {
	cat models.Category
	err error
}

func (f fakeCategorizer) Categorize(title, body string) (models.Category, error) {
	return f.cat, f.err
}

func TestCategory_LLMFallback(t *testing.T) {
	cfg := config.Default()
	cfg.GitHub.Repo = "acme/widgets"
	b, err := New(cfg, fakeCategorizer{cat: models.CategoryTest})
	require.NoError(t, err)

	// No labels match, fallback answers before heuristics run.
	task := &models.Task{Title: "Investigate CI flakiness", Labels: []string{"p2"}}
	assert.Equal(t, models.CategoryTest, b.Category(task))
}

func TestCategoryFromTitle_BugBeforeChore(t *testing.T) {
	// "fix the migration" contains both bug and chore keywords; bug wins.
	assert.Equal(t, models.CategoryBug, CategoryFromTitle("fix the migration"))
}
