package board

import (
	"fmt"
)

// CreatePR opens a pull request for the task branch, or returns the URL
// of the existing one if a PR for the branch is already open.
func (b *GhBoard) CreatePR(branch, title string, issue int, base string) (string, error) {
	existing, err := ghCmd("pr", "list",
		"--repo", b.owner+"/"+b.repo,
		"--head", branch, "--state", "open",
		"--json", "url", "--jq", ".[0].url")
	if err == nil && existing != "" {
		return existing, nil
	}

	url, err := ghCmd("pr", "create",
		"--repo", b.owner+"/"+b.repo,
		"--head", branch,
		"--base", base,
		"--title", title,
		"--body", fmt.Sprintf("Closes #%d\n\nAutomated by mill.", issue))
	if err != nil {
		return "", err
	}
	return url, nil
}

// MergePR merges the pull request. With squash true a squash merge is
// attempted; the caller falls back to a regular merge on failure.
func (b *GhBoard) MergePR(url string, squash bool) error {
	strategy := "--merge"
	if squash {
		strategy = "--squash"
	}
	_, err := ghCmd("pr", "merge", url, "--repo", b.owner+"/"+b.repo, strategy)
	return err
}
