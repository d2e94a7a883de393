// Package config loads and merges mill's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Backoff names a retry delay growth strategy.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// Iteration controls the per-task execution engine.
type Iteration struct {
	MaxIterations        int     `yaml:"max_iterations"`
	TaskTimeout          int     `yaml:"task_timeout"` // minutes, 0 disables the watchdog
	RetryDelay           int     `yaml:"retry_delay"`  // seconds
	RetryBackoff         Backoff `yaml:"retry_backoff"`
	RetryMaxDelay        int     `yaml:"retry_max_delay"` // seconds
	RetryJitter          bool    `yaml:"retry_jitter"`
	GigachadMode         bool    `yaml:"gigachad_mode"`
	GigachadCommitPrefix string  `yaml:"gigachad_commit_prefix"`
}

// TaskTimeoutDuration returns the task timeout as a duration, zero if disabled.
func (i Iteration) TaskTimeoutDuration() time.Duration {
	return time.Duration(i.TaskTimeout) * time.Minute
}

// Columns names the board columns mill moves tasks between.
type Columns struct {
	Ready      string `yaml:"ready"`
	InProgress string `yaml:"in_progress"`
	InReview   string `yaml:"in_review"`
	Done       string `yaml:"done"`
	Failed     string `yaml:"failed"`
}

// GitHub configures the task source.
type GitHub struct {
	Repo          string  `yaml:"repo"` // owner/name
	Project       int     `yaml:"project"`
	Columns       Columns `yaml:"columns"`
	BaseBranch    string  `yaml:"base_branch"`
	MoveOnFailure string  `yaml:"move_on_failure"` // "ready" or "failed"
}

// RateLimit bounds notification frequency.
type RateLimit struct {
	MinInterval int `yaml:"min_interval"` // seconds between sends
	BurstLimit  int `yaml:"burst_limit"`  // max sends per burst window
	BurstWindow int `yaml:"burst_window"` // seconds
}

// Target configures one webhook destination.
type Target struct {
	Enabled    bool     `yaml:"enabled"`
	WebhookURL string   `yaml:"webhook_url"`
	Events     []string `yaml:"events"` // empty = all events
}

// Notifications configures event fan-out.
type Notifications struct {
	Enabled   bool      `yaml:"enabled"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Slack     Target    `yaml:"slack"`
	Discord   Target    `yaml:"discord"`
	Webhook   Target    `yaml:"webhook"`
}

// Category configures label-to-category mapping.
type Category struct {
	Mappings    map[string]string `yaml:"mappings"` // label -> category
	LLMFallback bool              `yaml:"llm_fallback"`
	Model       string            `yaml:"model"`
}

// Budget caps spend in USD. Zero means unlimited.
type Budget struct {
	PerTaskLimit    float64 `yaml:"per_task_limit"`
	PerSessionLimit float64 `yaml:"per_session_limit"`
}

// Session controls the outer loop.
type Session struct {
	MaxTasks               int `yaml:"max_tasks"` // 0 = until queue empty
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
	PausePollSeconds       int `yaml:"pause_poll_seconds"`
}

// Output configures logging.
type Output struct {
	LogLevel     string `yaml:"log_level"`
	LogFile      string `yaml:"log_file"`
	MaxLogSizeMB int    `yaml:"max_log_size_mb"`
	MaxLogFiles  int    `yaml:"max_log_files"`
}

// Agent configures the AI agent subprocess.
type Agent struct {
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	VerifyCommands []string `yaml:"verify_commands"`
}

// Config is the fully resolved mill configuration.
type Config struct {
	Extends          string        `yaml:"extends"`
	BaseConfig       string        `yaml:"base_config"` // legacy alias for extends
	Iteration        Iteration     `yaml:"iteration"`
	GitHub           GitHub        `yaml:"github"`
	Agent            Agent         `yaml:"agent"`
	Notifications    Notifications `yaml:"notifications"`
	Category         Category      `yaml:"category"`
	Budget           Budget        `yaml:"budget"`
	Session          Session       `yaml:"session"`
	Output           Output        `yaml:"output"`
	ErrorDiagnostics *bool         `yaml:"error_diagnostics"`
	StateDir         string        `yaml:"state_dir"`
}

// DiagnosticsEnabled reports whether failure diagnostics are collected.
// Defaults to true when unset.
func (c *Config) DiagnosticsEnabled() bool {
	return c.ErrorDiagnostics == nil || *c.ErrorDiagnostics
}

// MetricsPath returns the metrics store location under the state dir.
func (c *Config) MetricsPath() string { return filepath.Join(c.StateDir, "metrics.json") }

// ProgressPath returns the progress snapshot location.
func (c *Config) ProgressPath() string { return filepath.Join(c.StateDir, "progress.json") }

// PauseLockPath returns the pause lock file location.
func (c *Config) PauseLockPath() string { return filepath.Join(c.StateDir, "pause.lock") }

// SessionPIDPath returns the session PID file location.
func (c *Config) SessionPIDPath() string { return filepath.Join(c.StateDir, "session.pid") }

// DiagnosticsDir returns the root directory for diagnostics bundles.
func (c *Config) DiagnosticsDir() string { return filepath.Join(c.StateDir, "diagnostics") }

// Default returns a Config with every default applied.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Iteration: Iteration{
			MaxIterations:        3,
			TaskTimeout:          30,
			RetryDelay:           5,
			RetryBackoff:         BackoffExponential,
			RetryMaxDelay:        60,
			RetryJitter:          true,
			GigachadCommitPrefix: "[gigachad]",
		},
		GitHub: GitHub{
			Columns: Columns{
				Ready:      "Ready",
				InProgress: "In progress",
				InReview:   "In review",
				Done:       "Done",
			},
			BaseBranch:    "main",
			MoveOnFailure: "ready",
		},
		Agent: Agent{
			Command: "claude",
		},
		Notifications: Notifications{
			RateLimit: RateLimit{
				MinInterval: 10,
				BurstLimit:  5,
				BurstWindow: 60,
			},
		},
		Category: Category{
			Model: "claude-haiku-4-5-20251001",
		},
		Session: Session{
			MaxConsecutiveFailures: 3,
			PausePollSeconds:       5,
		},
		Output: Output{
			LogLevel:     "info",
			MaxLogSizeMB: 10,
			MaxLogFiles:  5,
		},
		StateDir: filepath.Join(home, ".config", "mill"),
	}
}

// Validate checks invariants that would otherwise surface deep inside a run.
func (c *Config) Validate() error {
	if c.Iteration.MaxIterations < 1 {
		return fmt.Errorf("iteration.max_iterations must be >= 1, got %d", c.Iteration.MaxIterations)
	}
	if c.Iteration.TaskTimeout < 0 {
		return fmt.Errorf("iteration.task_timeout must be >= 0, got %d", c.Iteration.TaskTimeout)
	}
	switch c.Iteration.RetryBackoff {
	case BackoffFixed, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("iteration.retry_backoff must be fixed, linear, or exponential, got %q", c.Iteration.RetryBackoff)
	}
	if c.GitHub.Repo == "" {
		return fmt.Errorf("github.repo is required (owner/name)")
	}
	if mf := c.GitHub.MoveOnFailure; mf != "ready" && mf != "failed" {
		return fmt.Errorf("github.move_on_failure must be ready or failed, got %q", mf)
	}
	if c.GitHub.MoveOnFailure == "failed" && c.GitHub.Columns.Failed == "" {
		return fmt.Errorf("github.columns.failed is required when move_on_failure is failed")
	}
	for label, cat := range c.Category.Mappings {
		if !validCategory(cat) {
			return fmt.Errorf("category.mappings[%s]: unknown category %q", label, cat)
		}
	}
	if c.Budget.PerTaskLimit < 0 || c.Budget.PerSessionLimit < 0 {
		return fmt.Errorf("budget limits must be >= 0")
	}
	return nil
}

func validCategory(s string) bool {
	switch s {
	case "bug", "feature", "refactor", "docs", "test", "chore":
		return true
	}
	return false
}
