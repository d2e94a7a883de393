package agent

import (
	"encoding/json"
	"strings"
)

// Signal is the agent's structured completion signal.
type Signal string

const (
	SignalSuccess       Signal = "success"
	SignalNeedsMoreWork Signal = "needs_more_work"
	SignalHardFailure   Signal = "hard_failure"
)

// Result is the outcome of one agent invocation.
type Result struct {
	Signal       Signal
	ExitCode     int
	CostUSD      float64
	InputTokens  int64
	OutputTokens int64
	Summary      string
	Output       string // retained tail of combined stdout/stderr
}

// millSignal is mill's native completion line:
// {"signal":"success","cost_usd":0.12,"input_tokens":1000,"output_tokens":400}
type millSignal struct {
	Signal       string  `json:"signal"`
	CostUSD      float64 `json:"cost_usd"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Summary      string  `json:"summary"`
}

// claudeResult is the claude CLI's --output-format json document.
type claudeResult struct {
	Type         string  `json:"type"`
	IsError      bool    `json:"is_error"`
	Result       string  `json:"result"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	Usage        struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// ParseResult scans the output tail for a completion signal. It accepts
// mill's native signal line or a claude CLI result document, whichever
// appears last. Output with no recognizable signal is treated as
// needs-more-work so the engine retries rather than committing blind.
func ParseResult(output string) *Result {
	result := &Result{Signal: SignalNeedsMoreWork, Output: output}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}

		var native millSignal
		if err := json.Unmarshal([]byte(line), &native); err == nil && native.Signal != "" {
			result.Signal = normalizeSignal(native.Signal)
			result.CostUSD = native.CostUSD
			result.InputTokens = native.InputTokens
			result.OutputTokens = native.OutputTokens
			result.Summary = native.Summary
			return result
		}

		var cr claudeResult
		if err := json.Unmarshal([]byte(line), &cr); err == nil && cr.Type == "result" {
			result.CostUSD = cr.TotalCostUSD
			result.InputTokens = cr.Usage.InputTokens
			result.OutputTokens = cr.Usage.OutputTokens
			result.Summary = cr.Result
			switch {
			case cr.IsError:
				result.Signal = SignalHardFailure
			case strings.Contains(strings.ToUpper(cr.Result), "NEEDS MORE WORK"):
				result.Signal = SignalNeedsMoreWork
			default:
				result.Signal = SignalSuccess
			}
			return result
		}
	}
	return result
}

func normalizeSignal(s string) Signal {
	switch Signal(strings.ToLower(strings.TrimSpace(s))) {
	case SignalSuccess:
		return SignalSuccess
	case SignalHardFailure:
		return SignalHardFailure
	default:
		return SignalNeedsMoreWork
	}
}
