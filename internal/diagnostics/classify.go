// Package diagnostics classifies task failures and captures the evidence
// needed to debug them.
package diagnostics

import (
	"strings"

	"github.com/taskmill/mill/internal/models"
)

// TimeoutExitCode is the conventional exit code for a timed-out process.
const TimeoutExitCode = 124

// rule pairs a match predicate with the error kind it implies. Rules are
// evaluated top-down; first match wins.
type rule struct {
	kind  models.ErrorKind
	match func(string) bool
}

var rules = []rule{
	{models.ErrorGit, containsAny(
		"fatal:",
		"merge conflict",
		"conflict (content)",
		"not a git repository",
		"failed to push",
		"git command failed",
	)},
	{models.ErrorAPI, containsAny(
		"api rate limit exceeded",
		"rate limit",
		"http 403",
		"403 forbidden",
		"401 unauthorized",
		"authentication failed",
		"overloaded_error",
	)},
	{models.ErrorBuild, containsAny(
		"failed",
		"npm err!",
		"build error",
		"compilation failed",
		"cannot find module",
		"test failure",
	)},
}

// Classify maps an exit code and captured output to an error kind.
// The timeout check is exit-code based and unambiguous, so it runs
// before any pattern matching.
func Classify(exitCode int, output string) models.ErrorKind {
	if exitCode == TimeoutExitCode {
		return models.ErrorTimeout
	}
	text := strings.ToLower(output)
	for _, r := range rules {
		if r.match(text) {
			return r.kind
		}
	}
	return models.ErrorExecution
}

// Hint returns a quick-reference remediation hint for an error kind.
func Hint(kind models.ErrorKind) string {
	switch kind {
	case models.ErrorTimeout:
		return "Task exceeded its time budget. Raise iteration.task_timeout, split the issue into smaller tasks, or check for a hung verification command."
	case models.ErrorGit:
		return "Git operation failed. Check for merge conflicts on the task branch, verify remote access, and confirm the base branch exists."
	case models.ErrorAPI:
		return "API rejected the request. Check gh auth status and API rate limits, then wait for the limit window to reset before replaying."
	case models.ErrorBuild:
		return "Build or tests failed. Inspect build-output.txt in the diagnostics bundle and re-run the verify commands locally."
	default:
		return "Unclassified failure. Read build-output.txt and system-state.txt in the diagnostics bundle for the raw evidence."
	}
}

func containsAny(parts ...string) func(string) bool {
	return func(text string) bool {
		for _, part := range parts {
			if strings.Contains(text, part) {
				return true
			}
		}
		return false
	}
}
