package metrics

import (
	"sort"
	"time"

	"github.com/taskmill/mill/internal/models"
)

// Insights aggregates retained runs into the numbers an operator tunes
// against: where time and money go, and what keeps failing.
type Insights struct {
	TotalRuns      int
	Completed      int
	Failed         int
	Skipped        int
	SuccessRate    float64 // completed / (completed + failed)
	TotalCostUSD   float64
	AvgCostUSD     float64
	AvgIterations  float64
	AvgDuration    time.Duration
	FailureReasons []ReasonCount
	CostByCategory []CategoryCost
}

// ReasonCount is one failure reason with its occurrence count.
type ReasonCount struct {
	Reason string
	Count  int
}

// CategoryCost is the spend attributed to one task category.
type CategoryCost struct {
	Category string
	CostUSD  float64
	Runs     int
}

// Summarize computes insights over the given runs.
func Summarize(runs []*models.TaskRun) *Insights {
	ins := &Insights{TotalRuns: len(runs)}
	if len(runs) == 0 {
		return ins
	}

	reasons := map[string]int{}
	categories := map[string]*CategoryCost{}
	var iterations int
	var duration time.Duration
	var finished int

	for _, run := range runs {
		switch run.Outcome {
		case models.OutcomeCompleted:
			ins.Completed++
		case models.OutcomeSkipped:
			ins.Skipped++
		default:
			ins.Failed++
			if run.Reason != "" {
				reasons[run.Reason]++
			}
		}

		ins.TotalCostUSD += run.CostUSD
		iterations += run.Iterations
		if d := run.Duration(); d > 0 {
			duration += d
			finished++
		}

		cat := run.Category
		if cat == "" {
			cat = "uncategorized"
		}
		cc, ok := categories[cat]
		if !ok {
			cc = &CategoryCost{Category: cat}
			categories[cat] = cc
		}
		cc.CostUSD += run.CostUSD
		cc.Runs++
	}

	if n := ins.Completed + ins.Failed; n > 0 {
		ins.SuccessRate = float64(ins.Completed) / float64(n)
	}
	ins.AvgCostUSD = ins.TotalCostUSD / float64(len(runs))
	ins.AvgIterations = float64(iterations) / float64(len(runs))
	if finished > 0 {
		ins.AvgDuration = duration / time.Duration(finished)
	}

	for reason, count := range reasons {
		ins.FailureReasons = append(ins.FailureReasons, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(ins.FailureReasons, func(i, j int) bool {
		if ins.FailureReasons[i].Count != ins.FailureReasons[j].Count {
			return ins.FailureReasons[i].Count > ins.FailureReasons[j].Count
		}
		return ins.FailureReasons[i].Reason < ins.FailureReasons[j].Reason
	})

	for _, cc := range categories {
		ins.CostByCategory = append(ins.CostByCategory, *cc)
	}
	sort.Slice(ins.CostByCategory, func(i, j int) bool {
		return ins.CostByCategory[i].CostUSD > ins.CostByCategory[j].CostUSD
	})

	return ins
}
