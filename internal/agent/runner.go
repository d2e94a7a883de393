// Package agent launches the AI coding agent as a subprocess and parses
// its structured completion signal.
package agent

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
)

// outputCap bounds how much subprocess output is retained in memory.
// Only the tail matters for signal parsing and diagnostics.
const outputCap = 256 * 1024

// Request describes one agent invocation.
type Request struct {
	Dir     string   // working directory (the task branch checkout)
	Prompt  string   // rendered task prompt, passed on stdin
	Explore bool     // read-only exploration mode, no mutations allowed
	Env     []string // extra environment, appended to the parent env
}

// Runner starts agent invocations. The engine holds the Invocation while
// its watchdog decides whether to interrupt it.
type Runner interface {
	Start(req Request) (Invocation, error)
}

// Invocation is a running agent subprocess.
type Invocation interface {
	// Wait blocks until the process exits and returns the parsed result.
	// Wait never returns an error for a non-zero exit; the exit code and
	// output land in the Result for classification.
	Wait() (*Result, error)
	// RequestGracefulStop sends SIGTERM so the agent can flush its state.
	RequestGracefulStop() error
	// ForceKill sends SIGKILL. Used after the grace period lapses.
	ForceKill() error
}

// CLIRunner runs a configurable agent CLI (claude by default).
type CLIRunner struct {
	Command string
	Args    []string
}

// NewCLIRunner builds a runner for the given agent command line.
func NewCLIRunner(command string, args []string) *CLIRunner {
	return &CLIRunner{Command: command, Args: args}
}

// Start launches the agent with the prompt on stdin.
func (r *CLIRunner) Start(req Request) (Invocation, error) {
	args := append([]string{}, r.Args...)
	if req.Explore {
		// Exploration runs must not touch the tree.
		args = append(args, "--permission-mode", "plan")
	}

	cmd := exec.Command(r.Command, args...)
	cmd.Dir = req.Dir
	cmd.Stdin = strings.NewReader(req.Prompt)
	if len(req.Env) > 0 {
		cmd.Env = append(cmd.Environ(), req.Env...)
	}

	buf := &tailBuffer{cap: outputCap}
	cmd.Stdout = buf
	cmd.Stderr = buf

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start agent %s: %w", r.Command, err)
	}
	return &cliInvocation{cmd: cmd, buf: buf}, nil
}

type cliInvocation struct {
	cmd *exec.Cmd
	buf *tailBuffer
}

func (inv *cliInvocation) Wait() (*Result, error) {
	err := inv.cmd.Wait()
	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("wait for agent: %w", err)
		}
		exitCode = exitErr.ExitCode()
		if exitCode < 0 {
			// Killed by signal; the watchdog path reports this as timeout.
			exitCode = 124
		}
	}

	output := inv.buf.String()
	result := ParseResult(output)
	result.ExitCode = exitCode
	if exitCode != 0 && result.Signal == SignalSuccess {
		result.Signal = SignalHardFailure
	}
	return result, nil
}

func (inv *cliInvocation) RequestGracefulStop() error {
	if inv.cmd.Process == nil {
		return nil
	}
	return inv.cmd.Process.Signal(syscall.SIGTERM)
}

func (inv *cliInvocation) ForceKill() error {
	if inv.cmd.Process == nil {
		return nil
	}
	return inv.cmd.Process.Kill()
}

// tailBuffer keeps the last cap bytes written to it. Concurrent writes
// come from the subprocess's stdout and stderr pipes.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	cap int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if t.buf.Len() > t.cap {
		data := t.buf.Bytes()
		trimmed := make([]byte, t.cap)
		copy(trimmed, data[len(data)-t.cap:])
		t.buf.Reset()
		t.buf.Write(trimmed)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
