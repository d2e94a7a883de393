package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmill/mill/internal/git"
	"github.com/taskmill/mill/internal/metrics"
	"github.com/taskmill/mill/internal/models"
)

var (
	cleanupBranches  bool
	cleanupDiag      bool
	cleanupOlderThan time.Duration
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove task branches and old diagnostics bundles",
	Long: `Cleanup deletes local task branches whose runs completed, and
diagnostics bundles older than the cutoff. With no flags both cleanups
run. Combine with the global --dry-run flag to preview deletions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanupRun()
	},
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupBranches, "branches", false, "Only clean up task branches")
	cleanupCmd.Flags().BoolVar(&cleanupDiag, "diagnostics", false, "Only clean up diagnostics bundles")
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 7*24*time.Hour, "Age cutoff for diagnostics bundles")
	rootCmd.AddCommand(cleanupCmd)
}

func cleanupRun() error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	doBranches := cleanupBranches || !cleanupDiag
	doDiag := cleanupDiag || !cleanupBranches

	if doBranches {
		if err := cleanupTaskBranches(c.MetricsPath()); err != nil {
			return err
		}
	}
	if doDiag {
		if err := cleanupDiagnostics(c.DiagnosticsDir()); err != nil {
			return err
		}
	}
	return nil
}

// cleanupTaskBranches deletes local branches of completed runs. Branches
// of failed runs are kept: they may hold WIP commits a replay continues.
func cleanupTaskBranches(metricsPath string) error {
	runs, err := metrics.NewStore(metricsPath).Runs()
	if err != nil {
		return err
	}

	gc := git.NewClient()
	removed := 0
	for _, run := range runs {
		if run.Outcome != models.OutcomeCompleted || run.Branch == "" {
			continue
		}
		if !strings.HasPrefix(run.Branch, git.BranchPrefix) {
			continue
		}
		if dryRun {
			ui.DryRunMsg("would delete branch %s", run.Branch)
			continue
		}
		if err := gc.DeleteBranch(runRepoPath, run.Branch, false); err != nil {
			ui.VerboseLog("delete %s: %v", run.Branch, err)
			continue
		}
		ui.Success("deleted branch %s", run.Branch)
		removed++
	}
	if removed == 0 && !dryRun {
		ui.Info("no completed task branches to delete")
	}
	return nil
}

func cleanupDiagnostics(root string) error {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		ui.Info("no diagnostics bundles")
		return nil
	}
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-cleanupOlderThan)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if dryRun {
			ui.DryRunMsg("would remove %s", path)
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			ui.Warning("remove %s: %v", path, err)
			continue
		}
		ui.Success("removed %s", path)
		removed++
	}
	if removed == 0 && !dryRun {
		ui.Info("no diagnostics bundles older than %s", cleanupOlderThan)
	}
	return nil
}
