package orchestrator

import (
	"github.com/kestrelabs/agentmesh/pkg/models"
)

// Aggregate combines subtask results, given in completion order, into one
// task-level result. Success requires every subtask to have succeeded.
// Duration is the sum of subtask durations; WallClock is the span from the
// earliest start to the latest end, so overlap shows as WallClock less
// than Duration. Resource usage sums elementwise.
func Aggregate(results []*models.TaskResult) *models.TaskResult {
	agg := &models.TaskResult{Success: true}
	outputs := make([]any, 0, len(results))

	var failures []string
	for _, r := range results {
		if r.Success {
			outputs = append(outputs, r.Output)
		} else {
			agg.Success = false
			if agg.Error == nil && r.Error != nil {
				agg.Error = &models.TaskError{Code: r.Error.Code, Message: r.Error.Message}
			}
			if r.Error != nil {
				failures = append(failures, r.Error.Message)
			}
		}

		agg.Metrics.Duration += r.Metrics.Duration
		agg.Metrics.ResourceUsage = agg.Metrics.ResourceUsage.Add(r.Metrics.ResourceUsage)

		if r.Metrics.StartTime.IsZero() {
			continue
		}
		if agg.Metrics.StartTime.IsZero() || r.Metrics.StartTime.Before(agg.Metrics.StartTime) {
			agg.Metrics.StartTime = r.Metrics.StartTime
		}
		if r.Metrics.EndTime.After(agg.Metrics.EndTime) {
			agg.Metrics.EndTime = r.Metrics.EndTime
		}
	}

	if !agg.Metrics.StartTime.IsZero() {
		agg.Metrics.WallClock = agg.Metrics.EndTime.Sub(agg.Metrics.StartTime)
	}
	agg.Output = outputs
	if agg.Error != nil && len(failures) > 1 {
		agg.Error.Details = failures
	}
	return agg
}
