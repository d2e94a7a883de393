package board

import (
	"strings"

	"github.com/taskmill/mill/internal/models"
)

// Category derives a task's category: configured label mappings first,
// then labels that name a category directly, then the optional LLM
// fallback, then keyword heuristics on the title.
func (b *GhBoard) Category(task *models.Task) models.Category {
	for _, label := range task.Labels {
		if mapped, ok := b.mappings[strings.ToLower(label)]; ok {
			return models.Category(mapped)
		}
	}
	for _, label := range task.Labels {
		if models.ValidCategory(strings.ToLower(label)) {
			return models.Category(strings.ToLower(label))
		}
	}
	if b.fallback != nil {
		if cat, err := b.fallback.Categorize(task.Title, task.Body); err == nil && cat != "" {
			return cat
		}
	}
	return CategoryFromTitle(task.Title)
}

// CategoryFromTitle infers the category from the title using keyword
// heuristics. Bug keywords are checked before chore keywords (e.g.
// "fix the migration" = bug). Defaults to "feature" if nothing matches.
func CategoryFromTitle(title string) models.Category {
	lower := strings.ToLower(title)

	bugPhrases := []string{"issue with", "not working"}
	for _, kw := range bugPhrases {
		if strings.Contains(lower, kw) {
			return models.CategoryBug
		}
	}

	bugWords := []string{
		"fix ", "fix:", "fixed", "fixes", "fixing",
		"bug", "broken", "crash", "error",
		"regression", "fail", "fault", "defect",
	}
	for _, kw := range bugWords {
		if strings.Contains(lower, kw) {
			return models.CategoryBug
		}
	}
	if strings.HasSuffix(lower, "fix") {
		return models.CategoryBug
	}

	docsKeywords := []string{"document", "docs", "readme", "changelog"}
	for _, kw := range docsKeywords {
		if strings.Contains(lower, kw) {
			return models.CategoryDocs
		}
	}

	testKeywords := []string{"test coverage", "add test", "unit test", "e2e test", "flaky test"}
	for _, kw := range testKeywords {
		if strings.Contains(lower, kw) {
			return models.CategoryTest
		}
	}

	refactorKeywords := []string{"refactor", "reorganize", "restructure", "extract", "simplify"}
	for _, kw := range refactorKeywords {
		if strings.Contains(lower, kw) {
			return models.CategoryRefactor
		}
	}

	choreKeywords := []string{
		"cleanup", "clean up", "update dep", "migrate",
		"upgrade", "rename", "chore", "lint", "bump",
	}
	for _, kw := range choreKeywords {
		if strings.Contains(lower, kw) {
			return models.CategoryChore
		}
	}

	return models.CategoryFeature
}
