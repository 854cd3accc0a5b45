package orchestrator

import (
	"time"

	"github.com/kestrelabs/agentmesh/pkg/models"
)

const (
	// DefaultPollInterval is the wait between scheduling passes when nothing
	// is ready and nothing has completed.
	DefaultPollInterval = 50 * time.Millisecond
)

// Options configures an Orchestrator.
type Options struct {
	// Manager is the agent that decomposes tasks and reviews results.
	// Required for decomposition; review is skipped when the manager has no
	// text-generation tool.
	Manager *models.Agent

	// PollInterval is the wait between scheduling passes. Zero uses
	// DefaultPollInterval.
	PollInterval time.Duration

	// SubtaskTimeout bounds each subtask execution. Zero means unbounded.
	SubtaskTimeout time.Duration

	// TaskTimeout bounds the whole task end to end. Zero means unbounded.
	TaskTimeout time.Duration

	// Progress receives subtask progress updates. Optional.
	Progress func(subtaskID string, progress float64)

	// Recorder persists tasks and subtasks as they change. Optional;
	// recording failures are logged and never fail the run.
	Recorder Recorder

	// Logger receives debug output. Nil means no debug logging.
	Logger *DebugLogger
}

// Recorder persists orchestration state for later inspection.
type Recorder interface {
	RecordTask(task *models.Task) error
	RecordSubtask(subtask *models.Subtask) error
}

func (o Options) pollInterval() time.Duration {
	if o.PollInterval > 0 {
		return o.PollInterval
	}
	return DefaultPollInterval
}
