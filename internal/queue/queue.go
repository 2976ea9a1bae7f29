package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/scriptgate/scriptgate/internal/infrastructure/monitoring"
	"github.com/scriptgate/scriptgate/internal/logging"
	"github.com/scriptgate/scriptgate/internal/shared/types"
)

// ErrCapacityExceeded is returned when both the running set and the
// waiting queue are full. The "capacity limit" marker is load-bearing:
// callers pattern-match it to distinguish backpressure from internal
// failure, so the wording must stay stable.
var ErrCapacityExceeded = errors.New("execution rejected: capacity limit reached for running and queued jobs")

// Decision is the placement outcome of a successful Submit.
type Decision int

const (
	DecisionRejected Decision = iota
	DecisionAdmitted
	DecisionQueued
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionAdmitted:
		return "admitted"
	case DecisionQueued:
		return "queued"
	case DecisionRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Executor receives admitted tasks. Once a task is handed over, the
// queue's responsibility ends; the executor (or whoever owns the run)
// must report back via OnCompletion to free the slot.
type Executor interface {
	Execute(ctx context.Context, task types.JobExecutionTask)
}

// Config holds the process-lifetime capacities. Both are fixed at
// construction; there is no runtime resize.
type Config struct {
	RunningCapacity int
	QueuedCapacity  int
}

// Queue gates how many validated jobs run concurrently, holds bounded
// excess demand in FIFO order, and rejects the rest. All four counters
// live behind one mutex because admission is a coordinated check across
// running and queued together; splitting them would let concurrent
// submits slip past the configured capacity.
type Queue struct {
	mu      sync.Mutex
	running int
	waiting []types.JobExecutionTask

	runningCap int
	queuedCap  int

	executor  Executor
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	broadcast *broadcaster
}

// New creates an admission queue with the given capacities.
func New(cfg Config, executor Executor, logger *logging.Logger) *Queue {
	if cfg.RunningCapacity <= 0 {
		cfg.RunningCapacity = 5
	}
	if cfg.QueuedCapacity <= 0 {
		cfg.QueuedCapacity = 10
	}
	if logger == nil {
		logger = logging.NewDefault()
	}
	return &Queue{
		runningCap: cfg.RunningCapacity,
		queuedCap:  cfg.QueuedCapacity,
		executor:   executor,
		logger:     logger,
		broadcast:  newBroadcaster(),
	}
}

// WithMetrics attaches a metrics collector.
func (q *Queue) WithMetrics(m *monitoring.Metrics) *Queue {
	q.metrics = m
	return q
}

// Submit decides synchronously whether task runs now, waits, or is
// rejected. The three-way branch and the counter mutations happen in a
// single critical section; no concurrent Submit or completion can
// observe the state in between. Submit never blocks on capacity.
func (q *Queue) Submit(task types.JobExecutionTask) (Decision, error) {
	q.mu.Lock()

	var decision Decision
	switch {
	case q.running < q.runningCap:
		q.running++
		decision = DecisionAdmitted
	case len(q.waiting) < q.queuedCap:
		q.waiting = append(q.waiting, task)
		decision = DecisionQueued
	default:
		q.mu.Unlock()
		q.recordSubmission(DecisionRejected)
		q.logger.Warn("run rejected at capacity",
			zap.String("run_id", task.RunID),
			zap.String("job_id", task.JobID),
		)
		return DecisionRejected, fmt.Errorf("run %s: %w", task.RunID, ErrCapacityExceeded)
	}
	snap := q.snapshotLocked()
	// Published before the lock is released so snapshots reach
	// subscribers in counter-mutation order; publish never blocks.
	q.publish(snap)
	q.mu.Unlock()

	if decision == DecisionAdmitted {
		q.dispatch(task)
	}
	q.recordSubmission(decision)

	q.logger.Info("run "+decision.String(),
		zap.String("run_id", task.RunID),
		zap.String("job_id", task.JobID),
		zap.String("trigger", string(task.Trigger)),
		zap.Int("running", snap.Running),
		zap.Int("queued", snap.Queued),
	)
	return decision, nil
}

// OnCompletion frees a running slot and, if anything is waiting,
// promotes the FIFO head into the running set as part of the same
// critical section. Completion and promotion are one atomic step.
func (q *Queue) OnCompletion(runID string) {
	q.mu.Lock()
	if q.running > 0 {
		q.running--
	}
	var promoted *types.JobExecutionTask
	if len(q.waiting) > 0 && q.running < q.runningCap {
		head := q.waiting[0]
		q.waiting = q.waiting[1:]
		q.running++
		promoted = &head
	}
	q.publish(q.snapshotLocked())
	q.mu.Unlock()

	if promoted != nil {
		q.dispatch(*promoted)
		q.logger.Info("run promoted from queue",
			zap.String("run_id", promoted.RunID),
			zap.String("completed_run_id", runID),
		)
	} else {
		q.logger.Info("run completed", zap.String("run_id", runID))
	}
}

// Stats returns a consistent snapshot of both counter pairs.
func (q *Queue) Stats() types.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Subscribe attaches a stats observer. The subscription buffer already
// holds the current snapshot, so observers render state immediately.
func (q *Queue) Subscribe() *Subscription {
	q.mu.Lock()
	snap := q.snapshotLocked()
	q.mu.Unlock()
	return q.broadcast.subscribe(snap)
}

// Subscribers reports the number of live stats observers.
func (q *Queue) Subscribers() int {
	return q.broadcast.count()
}

func (q *Queue) snapshotLocked() types.QueueStats {
	return types.QueueStats{
		Running:         q.running,
		RunningCapacity: q.runningCap,
		Queued:          len(q.waiting),
		QueuedCapacity:  q.queuedCap,
	}
}

// dispatch hands the task to the executor off the caller's control
// path. Execution failures are the executor's problem; the slot is
// freed only by an OnCompletion call.
func (q *Queue) dispatch(task types.JobExecutionTask) {
	go q.executor.Execute(context.Background(), task)
}

func (q *Queue) publish(s types.QueueStats) {
	if q.metrics != nil {
		q.metrics.SetQueueLoad(s.Running, s.Queued)
	}
	q.broadcast.publish(s)
}

func (q *Queue) recordSubmission(d Decision) {
	if q.metrics != nil {
		q.metrics.RecordSubmission(d.String())
	}
}
