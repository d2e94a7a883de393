package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResult_NativeSignal(t *testing.T) {
	out := `working on it...
done with the change
{"signal":"success","cost_usd":0.42,"input_tokens":1200,"output_tokens":350,"summary":"added retry"}`

	r := ParseResult(out)
	assert.Equal(t, SignalSuccess, r.Signal)
	assert.Equal(t, 0.42, r.CostUSD)
	assert.Equal(t, int64(1200), r.InputTokens)
	assert.Equal(t, int64(350), r.OutputTokens)
	assert.Equal(t, "added retry", r.Summary)
}

func TestParseResult_NeedsMoreWork(t *testing.T) {
	r := ParseResult(`{"signal":"needs_more_work"}`)
	assert.Equal(t, SignalNeedsMoreWork, r.Signal)
}

func TestParseResult_HardFailure(t *testing.T) {
	r := ParseResult(`{"signal":"hard_failure","summary":"issue describes removed API"}`)
	assert.Equal(t, SignalHardFailure, r.Signal)
}

func TestParseResult_ClaudeResultDoc(t *testing.T) {
	out := `{"type":"result","is_error":false,"result":"Implemented the fix.","total_cost_usd":0.13,"usage":{"input_tokens":900,"output_tokens":210}}`

	r := ParseResult(out)
	assert.Equal(t, SignalSuccess, r.Signal)
	assert.Equal(t, 0.13, r.CostUSD)
	assert.Equal(t, int64(900), r.InputTokens)
}

func TestParseResult_ClaudeError(t *testing.T) {
	out := `{"type":"result","is_error":true,"result":"context limit exceeded","total_cost_usd":0.02,"usage":{}}`
	r := ParseResult(out)
	assert.Equal(t, SignalHardFailure, r.Signal)
}

func TestParseResult_ClaudeNeedsMoreWork(t *testing.T) {
	out := `{"type":"result","is_error":false,"result":"Partial progress. NEEDS MORE WORK on the tests.","total_cost_usd":0.05,"usage":{}}`
	r := ParseResult(out)
	assert.Equal(t, SignalNeedsMoreWork, r.Signal)
}

func TestParseResult_LastSignalWins(t *testing.T) {
	out := `{"signal":"needs_more_work"}
more output
{"signal":"success","cost_usd":0.1}`
	r := ParseResult(out)
	assert.Equal(t, SignalSuccess, r.Signal)
}

func TestParseResult_NoSignal(t *testing.T) {
	r := ParseResult("some unstructured output\nwithout any json")
	assert.Equal(t, SignalNeedsMoreWork, r.Signal)
	assert.Zero(t, r.CostUSD)
}

func TestParseResult_GarbageJSON(t *testing.T) {
	r := ParseResult(`{"unrelated": true}`)
	assert.Equal(t, SignalNeedsMoreWork, r.Signal)
}

func TestNormalizeSignal(t *testing.T) {
	assert.Equal(t, SignalSuccess, normalizeSignal(" SUCCESS "))
	assert.Equal(t, SignalHardFailure, normalizeSignal("hard_failure"))
	assert.Equal(t, SignalNeedsMoreWork, normalizeSignal("whatever"))
}
