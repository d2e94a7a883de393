package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/mill/internal/models"
)

func TestCLIRunner_Success(t *testing.T) {
	r := NewCLIRunner("sh", []string{"-c", `cat >/dev/null; echo '{"signal":"success","cost_usd":0.01}'`})

	inv, err := r.Start(Request{Dir: t.TempDir(), Prompt: "do the thing"})
	require.NoError(t, err)

	result, err := inv.Wait()
	require.NoError(t, err)
	assert.Equal(t, SignalSuccess, result.Signal)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, 0.01, result.CostUSD)
}

func TestCLIRunner_NonZeroExit(t *testing.T) {
	r := NewCLIRunner("sh", []string{"-c", "echo boom >&2; exit 3"})

	inv, err := r.Start(Request{Dir: t.TempDir()})
	require.NoError(t, err)

	result, err := inv.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, SignalHardFailure, result.Signal)
	assert.Contains(t, result.Output, "boom")
}

func TestCLIRunner_ForceKill(t *testing.T) {
	r := NewCLIRunner("sh", []string{"-c", "sleep 30"})

	inv, err := r.Start(Request{Dir: t.TempDir()})
	require.NoError(t, err)

	done := make(chan *Result, 1)
	go func() {
		result, _ := inv.Wait()
		done <- result
	}()

	require.NoError(t, inv.ForceKill())

	select {
	case result := <-done:
		// Signal deaths map to the timeout exit code convention.
		assert.Equal(t, 124, result.ExitCode)
	case <-time.After(5 * time.Second):
		t.Fatal("killed process did not exit")
	}
}

func TestCLIRunner_GracefulStop(t *testing.T) {
	r := NewCLIRunner("sh", []string{"-c", "sleep 30"})

	inv, err := r.Start(Request{Dir: t.TempDir()})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, _ = inv.Wait()
		close(done)
	}()

	require.NoError(t, inv.RequestGracefulStop())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("terminated process did not exit")
	}
}

func TestCLIRunner_MissingBinary(t *testing.T) {
	r := NewCLIRunner("mill-no-such-agent-binary", nil)
	_, err := r.Start(Request{Dir: t.TempDir()})
	assert.Error(t, err)
}

func TestTailBuffer_Caps(t *testing.T) {
	buf := &tailBuffer{cap: 16}
	_, err := buf.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = buf.Write([]byte("abcdefghij"))
	require.NoError(t, err)

	s := buf.String()
	assert.Len(t, s, 16)
	assert.True(t, strings.HasSuffix(s, "abcdefghij"))
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := RenderPrompt(PromptData{
		Task:           &models.Task{Number: 142, Title: "Fix login crash", Body: "stack trace attached"},
		Branch:         "mill/142-fix-login-crash",
		Category:       models.CategoryBug,
		VerifyCommands: []string{"go build ./...", "go test ./..."},
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "issue #142")
	assert.Contains(t, prompt, "mill/142-fix-login-crash")
	assert.Contains(t, prompt, "go test ./...")
	assert.Contains(t, prompt, `{"signal":"success"}`)
	assert.NotContains(t, prompt, "previous attempt")
}

func TestRenderPrompt_RetryIncludesPreviousOutput(t *testing.T) {
	prompt, err := RenderPrompt(PromptData{
		Task:           &models.Task{Number: 7, Title: "Add export"},
		Branch:         "mill/7-add-export",
		Category:       models.CategoryFeature,
		PreviousOutput: "FAIL: TestExport (0.01s)",
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "previous attempt")
	assert.Contains(t, prompt, "FAIL: TestExport")
}
