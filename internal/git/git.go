package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Client defines the interface for git operations in the working repo.
// All methods take a path parameter so the engine can operate on any checkout.
type Client interface {
	RepoRoot(path string) (string, error)
	CurrentBranch(path string) (string, error)
	BranchExists(path, branch string) (bool, error)
	CreateBranch(path, branch, base string) error
	CheckoutBranch(path, branch string) error
	DeleteBranch(path, branch string, remote bool) error
	CommitAll(path, subject string) error
	Push(path, branch string) error
	Diff(path string) (string, error)
	DiffAgainst(path, base string) (string, error)
	IsDirty(path string) (bool, error)
	StatusSummary(path string) (string, error)
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitCmd(path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.Command("git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *RealClient) RepoRoot(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--show-toplevel")
}

func (c *RealClient) CurrentBranch(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--abbrev-ref", "HEAD")
}

func (c *RealClient) BranchExists(path, branch string) (bool, error) {
	_, err := gitCmd(path, "rev-parse", "--verify", "refs/heads/"+branch)
	if err != nil {
		return false, nil // unknown ref, not an operational error
	}
	return true, nil
}

func (c *RealClient) CreateBranch(path, branch, base string) error {
	args := []string{"checkout", "-b", branch}
	if base != "" {
		args = append(args, base)
	}
	_, err := gitCmd(path, args...)
	return err
}

func (c *RealClient) CheckoutBranch(path, branch string) error {
	_, err := gitCmd(path, "checkout", branch)
	return err
}

func (c *RealClient) DeleteBranch(path, branch string, remote bool) error {
	if _, err := gitCmd(path, "branch", "-D", branch); err != nil {
		return err
	}
	if remote {
		if _, err := gitCmd(path, "push", "origin", "--delete", branch); err != nil {
			return err
		}
	}
	return nil
}

// CommitAll stages everything and commits. Used for the post-verification
// commit and for the WIP capture on timeout.
func (c *RealClient) CommitAll(path, subject string) error {
	if _, err := gitCmd(path, "add", "-A"); err != nil {
		return err
	}
	_, err := gitCmd(path, "commit", "-m", subject)
	return err
}

func (c *RealClient) Push(path, branch string) error {
	_, err := gitCmd(path, "push", "-u", "origin", branch)
	return err
}

// Diff returns uncommitted changes, staged and unstaged.
func (c *RealClient) Diff(path string) (string, error) {
	return gitCmd(path, "diff", "HEAD")
}

// DiffAgainst returns the diff of the current branch against base.
func (c *RealClient) DiffAgainst(path, base string) (string, error) {
	return gitCmd(path, "diff", base+"...HEAD")
}

func (c *RealClient) IsDirty(path string) (bool, error) {
	out, err := gitCmd(path, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// StatusSummary returns a short human-readable status for diagnostics capture.
func (c *RealClient) StatusSummary(path string) (string, error) {
	return gitCmd(path, "status", "--short", "--branch")
}

// BranchPrefix namespaces every branch mill creates.
const BranchPrefix = "mill/"

// BranchForIssue builds a branch name from an issue number and title,
// e.g. 142 "Fix login crash" -> "mill/142-fix-login-crash".
func BranchForIssue(number int, title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	if slug == "" {
		return fmt.Sprintf("%s%d", BranchPrefix, number)
	}
	return fmt.Sprintf("%s%d-%s", BranchPrefix, number, slug)
}
