package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taskmill/mill/internal/git"
	"github.com/taskmill/mill/internal/mask"
	"github.com/taskmill/mill/internal/models"
)

// DefaultOutputLines is how many trailing output lines are captured.
const DefaultOutputLines = 50

// Collector snapshots failure evidence into a timestamped bundle.
type Collector struct {
	Root        string // diagnostics root directory
	RepoPath    string
	Git         git.Client
	OutputLines int
}

// NewCollector builds a collector writing bundles under root.
func NewCollector(root, repoPath string, gc git.Client) *Collector {
	return &Collector{Root: root, RepoPath: repoPath, Git: gc, OutputLines: DefaultOutputLines}
}

// Collect writes a diagnostics bundle for a failed run and returns its
// path. Capture is best-effort: a missing artifact is noted in place,
// never fatal. The caller decides whether collection is enabled at all.
func (c *Collector) Collect(task *models.Task, kind models.ErrorKind, output string) (string, error) {
	dir := filepath.Join(c.Root, fmt.Sprintf("%d-%s", task.Number, time.Now().Format("20060102-150405")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create diagnostics dir: %w", err)
	}

	diff, err := c.Git.Diff(c.RepoPath)
	if err != nil {
		diff = "diff unavailable: " + err.Error()
	}
	c.writeFile(dir, "git-diff.txt", diff)

	c.writeFile(dir, "build-output.txt", mask.String(TailLines(output, c.OutputLines)))

	var state strings.Builder
	if branch, err := c.Git.CurrentBranch(c.RepoPath); err == nil {
		fmt.Fprintf(&state, "branch: %s\n", branch)
	} else {
		fmt.Fprintf(&state, "branch unavailable: %v\n", err)
	}
	if status, err := c.Git.StatusSummary(c.RepoPath); err == nil {
		fmt.Fprintf(&state, "status:\n%s\n", status)
	} else {
		fmt.Fprintf(&state, "status unavailable: %v\n", err)
	}
	fmt.Fprintf(&state, "captured_at: %s\n", time.Now().Format(time.RFC3339))
	c.writeFile(dir, "system-state.txt", state.String())

	summary := fmt.Sprintf("issue: #%d\ntitle: %s\nerror_kind: %s\n\nhint: %s\n",
		task.Number, task.Title, kind, Hint(kind))
	c.writeFile(dir, "error-summary.txt", summary)

	return dir, nil
}

// writeFile is best-effort; a failed artifact write does not abort the bundle.
func (c *Collector) writeFile(dir, name, content string) {
	_ = os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}

// TailLines returns the last n lines of s.
func TailLines(s string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
