package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taskmill/mill/internal/mask"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that mill's environment is ready to run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorRun()
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type check struct {
	name string
	run  func() error
}

func doctorRun() error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	checks := []check{
		{"git installed", func() error {
			_, err := exec.LookPath("git")
			return err
		}},
		{"gh installed", func() error {
			_, err := exec.LookPath("gh")
			return err
		}},
		{"gh authenticated", func() error {
			out, err := exec.Command("gh", "auth", "status").CombinedOutput()
			if err != nil {
				return fmt.Errorf("gh auth status: %s", string(out))
			}
			return nil
		}},
		{fmt.Sprintf("agent command %q on PATH", c.Agent.Command), func() error {
			_, err := exec.LookPath(c.Agent.Command)
			return err
		}},
		{"configuration valid", func() error {
			return c.Validate()
		}},
		{"state directory writable", func() error {
			if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
				return err
			}
			probe := filepath.Join(c.StateDir, ".doctor-probe")
			if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
				return err
			}
			return os.Remove(probe)
		}},
		{"webhook URLs redacted in output", func() error {
			targets := map[string]string{
				"slack":   c.Notifications.Slack.WebhookURL,
				"discord": c.Notifications.Discord.WebhookURL,
				"webhook": c.Notifications.Webhook.WebhookURL,
			}
			for name, url := range targets {
				if url == "" {
					continue
				}
				if !mask.Contains(mask.String(url)) {
					return fmt.Errorf("%s webhook URL would appear unmasked in logs", name)
				}
			}
			return nil
		}},
		{"repository reachable", func() error {
			if c.GitHub.Repo == "" {
				return fmt.Errorf("github.repo not configured")
			}
			out, err := exec.Command("gh", "repo", "view", c.GitHub.Repo, "--json", "name").CombinedOutput()
			if err != nil {
				return fmt.Errorf("gh repo view %s: %s", c.GitHub.Repo, string(out))
			}
			return nil
		}},
	}

	failures := 0
	for _, chk := range checks {
		if err := chk.run(); err != nil {
			failures++
			ui.Error("%s: %v", chk.name, err)
			continue
		}
		ui.Success("%s", chk.name)
	}

	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	ui.Success("all checks passed")
	return nil
}
