package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmill/mill/internal/sessions"
)

var (
	pauseReason string
	pauseFor    time.Duration
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the session after the current task finishes",
	Long: `Pause writes a lock file the session loop checks between tasks. The
task in flight always runs to completion; the next one waits until the
lock is removed with 'mill resume' or its expiry passes.

Pausing an already-paused session updates the reason and expiry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return pauseRun()
	},
}

func init() {
	pauseCmd.Flags().StringVar(&pauseReason, "reason", "", "Why the session is paused (shown in status)")
	pauseCmd.Flags().DurationVar(&pauseFor, "for", 0, "Auto-resume after this duration (e.g. 2h, 45m)")
	rootCmd.AddCommand(pauseCmd)
}

func pauseRun() error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	pc := sessions.NewPauseController(c.PauseLockPath())
	if err := pc.Pause(pauseReason, pauseFor); err != nil {
		return err
	}

	switch {
	case pauseFor > 0 && pauseReason != "":
		ui.Success("paused for %s: %s", pauseFor, pauseReason)
	case pauseFor > 0:
		ui.Success("paused for %s", pauseFor)
	case pauseReason != "":
		ui.Success("paused: %s", pauseReason)
	default:
		ui.Success("paused")
	}
	ui.Info("the task in flight will finish; run 'mill resume' to continue")
	return nil
}
