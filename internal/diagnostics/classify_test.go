package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskmill/mill/internal/models"
)

func TestClassify_TimeoutWinsRegardlessOfOutput(t *testing.T) {
	assert.Equal(t, models.ErrorTimeout, Classify(124, ""))
	assert.Equal(t, models.ErrorTimeout, Classify(124, "fatal: not a git repository"))
	assert.Equal(t, models.ErrorTimeout, Classify(124, "npm ERR! everything broke"))
}

func TestClassify_GitError(t *testing.T) {
	assert.Equal(t, models.ErrorGit, Classify(1, "fatal: not a git repository"))
	assert.Equal(t, models.ErrorGit, Classify(1, "CONFLICT (content): Merge conflict in main.go"))
	assert.Equal(t, models.ErrorGit, Classify(128, "fatal: could not read from remote"))
}

func TestClassify_APIError(t *testing.T) {
	assert.Equal(t, models.ErrorAPI, Classify(1, "API rate limit exceeded for user"))
	assert.Equal(t, models.ErrorAPI, Classify(1, "HTTP 403: Forbidden"))
	assert.Equal(t, models.ErrorAPI, Classify(1, "401 Unauthorized"))
}

func TestClassify_BuildFailure(t *testing.T) {
	assert.Equal(t, models.ErrorBuild, Classify(1, "npm ERR! code ELIFECYCLE"))
	assert.Equal(t, models.ErrorBuild, Classify(2, "--- FAILED: TestLogin (0.01s)"))
}

func TestClassify_ExecutionFallback(t *testing.T) {
	assert.Equal(t, models.ErrorExecution, Classify(1, "something unexpected happened"))
	assert.Equal(t, models.ErrorExecution, Classify(1, ""))
}

func TestClassify_GitBeforeBuild(t *testing.T) {
	// Output matching both git and build patterns classifies as git;
	// the rule list is ordered.
	out := "fatal: could not push\nnpm ERR! also failed"
	assert.Equal(t, models.ErrorGit, Classify(1, out))
}

func TestHint_CoversAllKinds(t *testing.T) {
	kinds := []models.ErrorKind{
		models.ErrorTimeout, models.ErrorGit, models.ErrorAPI,
		models.ErrorBuild, models.ErrorExecution,
	}
	for _, k := range kinds {
		assert.NotEmpty(t, Hint(k), string(k))
	}
}

func TestTailLines(t *testing.T) {
	s := "one\ntwo\nthree\nfour\n"
	assert.Equal(t, "three\nfour", TailLines(s, 2))
	assert.Equal(t, "one\ntwo\nthree\nfour", TailLines(s, 10))
	assert.Equal(t, "", TailLines(s, 0))
}
