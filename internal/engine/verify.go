package engine

import (
	"fmt"
	"os/exec"
	"strings"
)

// Verifier runs the configured build/test commands after each successful
// agent iteration.
type Verifier interface {
	Verify(dir string) (output string, err error)
}

// ShellVerifier runs each command through the shell, stopping at the
// first failure.
type ShellVerifier struct {
	Commands []string
}

// Verify runs the commands in order and returns their combined output.
// A non-nil error means verification failed; the output still carries
// everything captured up to and including the failing command.
func (v *ShellVerifier) Verify(dir string) (string, error) {
	var out strings.Builder
	for _, command := range v.Commands {
		fmt.Fprintf(&out, "$ %s\n", command)
		cmd := exec.Command("sh", "-c", command)
		cmd.Dir = dir
		combined, err := cmd.CombinedOutput()
		out.Write(combined)
		if err != nil {
			return out.String(), fmt.Errorf("verify %q: %w", command, err)
		}
	}
	return out.String(), nil
}
