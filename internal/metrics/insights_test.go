package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskmill/mill/internal/models"
)

func insightRun(outcome models.Outcome, reason, category string, cost float64, iterations int, dur time.Duration) *models.TaskRun {
	started := time.Now().Add(-dur)
	ended := started.Add(dur)
	return &models.TaskRun{
		Outcome:    outcome,
		Reason:     reason,
		Category:   category,
		CostUSD:    cost,
		Iterations: iterations,
		StartedAt:  started,
		EndedAt:    &ended,
	}
}

func TestSummarizeEmpty(t *testing.T) {
	ins := Summarize(nil)
	assert.Equal(t, 0, ins.TotalRuns)
	assert.Zero(t, ins.SuccessRate)
}

func TestSummarizeAggregates(t *testing.T) {
	runs := []*models.TaskRun{
		insightRun(models.OutcomeCompleted, "", "feature", 1.00, 2, time.Minute),
		insightRun(models.OutcomeCompleted, "", "bug", 0.50, 1, 30*time.Second),
		insightRun(models.OutcomeFailed, "build_failure", "feature", 0.80, 3, 2*time.Minute),
		insightRun(models.OutcomeFailed, "build_failure", "bug", 0.20, 3, time.Minute),
		insightRun(models.OutcomeFailed, "timeout", "chore", 0.50, 1, 30*time.Minute),
		insightRun(models.OutcomeSkipped, "dry_run", "", 0.05, 1, time.Second),
	}

	ins := Summarize(runs)

	assert.Equal(t, 6, ins.TotalRuns)
	assert.Equal(t, 2, ins.Completed)
	assert.Equal(t, 3, ins.Failed)
	assert.Equal(t, 1, ins.Skipped)
	assert.InDelta(t, 0.4, ins.SuccessRate, 1e-9)
	assert.InDelta(t, 3.05, ins.TotalCostUSD, 1e-9)

	// failure reasons sorted by count, then name
	assert.Equal(t, []ReasonCount{
		{Reason: "build_failure", Count: 2},
		{Reason: "timeout", Count: 1},
	}, ins.FailureReasons)

	// categories sorted by spend
	assert.Equal(t, "feature", ins.CostByCategory[0].Category)
	assert.InDelta(t, 1.80, ins.CostByCategory[0].CostUSD, 1e-9)
	assert.Equal(t, 2, ins.CostByCategory[0].Runs)
}

func TestSummarizeSkippedOnlyHasNoSuccessRate(t *testing.T) {
	ins := Summarize([]*models.TaskRun{
		insightRun(models.OutcomeSkipped, "dry_run", "", 0, 1, time.Second),
	})
	assert.Zero(t, ins.SuccessRate)
	assert.Equal(t, 1, ins.Skipped)
}
