package cmd

import (
	"github.com/spf13/cobra"

	"github.com/taskmill/mill/internal/sessions"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Remove the pause lock so the session continues",
	RunE: func(cmd *cobra.Command, args []string) error {
		return resumeRun()
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func resumeRun() error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	pc := sessions.NewPauseController(c.PauseLockPath())
	removed, err := pc.Resume()
	if err != nil {
		return err
	}
	if !removed {
		ui.Info("session was not paused")
		return nil
	}
	ui.Success("resumed")
	return nil
}
