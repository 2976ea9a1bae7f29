package sandbox

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/scriptgate/scriptgate/internal/logging"
	"github.com/scriptgate/scriptgate/internal/shared/types"
)

// Completer receives completion reports. Satisfied by the admission
// queue; held behind an atomic so the executor can be constructed
// before the queue that dispatches to it.
type Completer interface {
	OnCompletion(runID string)
}

// Executor runs the scripts of admitted tasks in sandboxed goja
// runtimes, one fresh runtime per script so scripts cannot leak state
// into each other. Concurrency is bounded upstream by the admission
// queue, not here.
type Executor struct {
	config    Config
	logger    *logging.Logger
	completer atomic.Value // Completer
}

// NewExecutor creates a sandbox executor.
func NewExecutor(config Config, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NewDefault()
	}
	return &Executor{
		config: config,
		logger: logger,
	}
}

// SetCompleter binds the completion sink. Must be called before any
// task is dispatched.
func (e *Executor) SetCompleter(c Completer) {
	e.completer.Store(c)
}

// Execute runs every script of the task in order and reports completion
// exactly once, whatever happens during execution.
func (e *Executor) Execute(ctx context.Context, task types.JobExecutionTask) {
	defer func() {
		if c, ok := e.completer.Load().(Completer); ok && c != nil {
			c.OnCompletion(task.RunID)
		}
	}()

	for _, script := range task.TestScripts {
		runtime := NewRuntime(e.config)
		result := runtime.Execute(ctx, script.ID, script.Script)
		if result.Error != nil {
			e.logger.Warn("script execution failed",
				zap.String("run_id", task.RunID),
				zap.String("script_id", script.ID),
				zap.String("script_name", script.Name),
				zap.Duration("duration", result.Duration),
				zap.Error(result.Error),
			)
			continue
		}
		e.logger.Info("script executed",
			zap.String("run_id", task.RunID),
			zap.String("script_id", script.ID),
			zap.String("script_name", script.Name),
			zap.Duration("duration", result.Duration),
		)
	}
}
