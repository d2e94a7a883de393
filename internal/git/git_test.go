package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo creates a git repo in dir with a user config so commits work on CI.
func initTestRepo(t *testing.T, dir string) {
	t.Helper()
	cmds := [][]string{
		{"git", "-C", dir, "init", "-b", "main"},
		{"git", "-C", dir, "config", "user.email", "test@test.com"},
		{"git", "-C", dir, "config", "user.name", "Test"},
	}
	for _, args := range cmds {
		require.NoError(t, exec.Command(args[0], args[1:]...).Run())
	}
}

func commitFile(t *testing.T, dir, name, content, msg string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	require.NoError(t, exec.Command("git", "-C", dir, "add", name).Run())
	require.NoError(t, exec.Command("git", "-C", dir, "commit", "-m", msg).Run())
}

func TestCreateAndCheckoutBranch(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "a.txt", "a", "init")

	c := NewClient()
	require.NoError(t, c.CreateBranch(dir, "mill/142-fix-login", "main"))

	branch, err := c.CurrentBranch(dir)
	require.NoError(t, err)
	assert.Equal(t, "mill/142-fix-login", branch)

	exists, err := c.BranchExists(dir, "mill/142-fix-login")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.CheckoutBranch(dir, "main"))
	branch, err = c.CurrentBranch(dir)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestBranchExists_Missing(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "a.txt", "a", "init")

	c := NewClient()
	exists, err := c.BranchExists(dir, "mill/999-nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCommitAllAndDiff(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "a.txt", "a\n", "init")

	c := NewClient()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a\nb\n"), 0o644))
	dirty, err := c.IsDirty(dir)
	require.NoError(t, err)
	assert.True(t, dirty)

	diff, err := c.Diff(dir)
	require.NoError(t, err)
	assert.Contains(t, diff, "+b")

	require.NoError(t, c.CommitAll(dir, "[WIP] issue 142: timed out"))
	dirty, err = c.IsDirty(dir)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestDiffAgainstBase(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "a.txt", "a\n", "init")

	c := NewClient()
	require.NoError(t, c.CreateBranch(dir, "mill/7-feature", "main"))
	commitFile(t, dir, "b.txt", "new file\n", "add b")

	diff, err := c.DiffAgainst(dir, "main")
	require.NoError(t, err)
	assert.Contains(t, diff, "b.txt")
}

func TestStatusSummary(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "a.txt", "a", "init")

	c := NewClient()
	out, err := c.StatusSummary(dir)
	require.NoError(t, err)
	assert.Contains(t, out, "main")
}

func TestBranchForIssue(t *testing.T) {
	assert.Equal(t, "mill/142-fix-login-crash", BranchForIssue(142, "Fix login crash"))
	assert.Equal(t, "mill/7-add-oauth2-support", BranchForIssue(7, "Add OAuth2 support!"))
	assert.Equal(t, "mill/99", BranchForIssue(99, "???"))
}

func TestBranchForIssue_Truncates(t *testing.T) {
	b := BranchForIssue(1, "this is a very long issue title that keeps going and going and going")
	assert.LessOrEqual(t, len(b), len("mill/1-")+40)
	assert.NotContains(t, b[len(b)-1:], "-")
}
