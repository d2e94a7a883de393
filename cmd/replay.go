package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmill/mill/internal/git"
	"github.com/taskmill/mill/internal/metrics"
	"github.com/taskmill/mill/internal/models"
)

var (
	replayLast      bool
	replayAllFailed bool
	replayFresh     bool
	replayYes       bool
)

var replayCmd = &cobra.Command{
	Use:   "replay [issue]",
	Short: "Re-run failed tasks",
	Long: `Replay re-executes tasks whose last run failed. Pick a specific issue
number, --last for the most recent failure, or --all-failed for every
retained failure.

By default the replay continues on the existing task branch, keeping any
WIP commit from a timed-out run. --fresh deletes the branch and starts
over from the base branch. With the global --dry-run flag the agent runs
in read-only exploration mode and nothing is committed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		issue := 0
		if len(args) == 1 {
			n, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
			if err != nil {
				return fmt.Errorf("invalid issue number %q", args[0])
			}
			issue = n
		}
		return replayRun(issue)
	},
}

func init() {
	replayCmd.Flags().BoolVar(&replayLast, "last", false, "Replay the most recent failed run")
	replayCmd.Flags().BoolVar(&replayAllFailed, "all-failed", false, "Replay every retained failed run")
	replayCmd.Flags().BoolVar(&replayFresh, "fresh", false, "Delete the task branch and restart from the base branch")
	replayCmd.Flags().BoolVarP(&replayYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(replayCmd)
}

func replayRun(issue int) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}

	store := metrics.NewStore(c.MetricsPath())
	failed, err := store.FailedRuns()
	if err != nil {
		return err
	}

	targets, err := selectReplayTargets(failed, issue)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		ui.Info("nothing to replay")
		return nil
	}

	for _, run := range targets {
		ui.Info("replay #%d: %s (last outcome %s, reason %s)", run.Issue, run.Title, run.Outcome, run.Reason)
	}
	if !replayYes && !dryRun && !confirm(fmt.Sprintf("Replay %d task(s)?", len(targets))) {
		ui.Info("aborted")
		return nil
	}

	manager, err := buildManager(c, runRepoPath)
	if err != nil {
		return err
	}
	gc := git.NewClient()

	for _, prior := range targets {
		if replayFresh && prior.Branch != "" {
			if err := gc.DeleteBranch(runRepoPath, prior.Branch, false); err != nil {
				ui.VerboseLog("delete branch %s: %v", prior.Branch, err)
			}
		}
		task := &models.Task{
			Number:   prior.Issue,
			Title:    prior.Title,
			Category: models.Category(prior.Category),
		}
		run := manager.Engine.RunTask(task)
		ui.Info("#%d: %s", run.Issue, run.Outcome)
	}
	return nil
}

// selectReplayTargets keeps only the most recent run per issue, then
// applies the issue/--last/--all-failed selection.
func selectReplayTargets(failed []*models.TaskRun, issue int) ([]*models.TaskRun, error) {
	latest := map[int]*models.TaskRun{}
	var order []int
	for _, run := range failed {
		if _, seen := latest[run.Issue]; !seen {
			order = append(order, run.Issue)
		}
		latest[run.Issue] = run
	}

	switch {
	case issue != 0:
		run, ok := latest[issue]
		if !ok {
			return nil, fmt.Errorf("no failed run recorded for issue #%d", issue)
		}
		return []*models.TaskRun{run}, nil
	case replayLast:
		if len(order) == 0 {
			return nil, nil
		}
		var newest *models.TaskRun
		for _, run := range latest {
			if newest == nil || run.StartedAt.After(newest.StartedAt) {
				newest = run
			}
		}
		return []*models.TaskRun{newest}, nil
	case replayAllFailed:
		out := make([]*models.TaskRun, 0, len(order))
		for _, n := range order {
			out = append(out, latest[n])
		}
		return out, nil
	default:
		return nil, fmt.Errorf("specify an issue number, --last, or --all-failed")
	}
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
