package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptgate/scriptgate/internal/logging"
	"github.com/scriptgate/scriptgate/internal/shared/types"
)

// stubExecutor records dispatched tasks and never completes them on its
// own; tests drive completion explicitly through OnCompletion.
type stubExecutor struct {
	mu    sync.Mutex
	tasks []string
	ch    chan string
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{ch: make(chan string, 64)}
}

func (s *stubExecutor) Execute(ctx context.Context, task types.JobExecutionTask) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task.RunID)
	s.mu.Unlock()
	s.ch <- task.RunID
}

func (s *stubExecutor) waitFor(t *testing.T, runID string) {
	t.Helper()
	select {
	case got := <-s.ch:
		require.Equal(t, runID, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("executor never received task %s", runID)
	}
}

func task(runID string) types.JobExecutionTask {
	return types.JobExecutionTask{
		JobID:   "job-1",
		RunID:   runID,
		Trigger: types.TriggerManual,
		TestScripts: []types.TestScript{
			{ID: "s1", Name: "check", Script: "var x = 1;"},
		},
	}
}

func newTestQueue(runningCap, queuedCap int) (*Queue, *stubExecutor) {
	exec := newStubExecutor()
	q := New(Config{RunningCapacity: runningCap, QueuedCapacity: queuedCap}, exec, logging.NewDefault())
	return q, exec
}

func assertStatsValid(t *testing.T, s types.QueueStats) {
	t.Helper()
	assert.GreaterOrEqual(t, s.Running, 0)
	assert.LessOrEqual(t, s.Running, s.RunningCapacity)
	assert.GreaterOrEqual(t, s.Queued, 0)
	assert.LessOrEqual(t, s.Queued, s.QueuedCapacity)
}

func TestSubmitAdmissionDeterminism(t *testing.T) {
	q, _ := newTestQueue(3, 2)

	var admitted, queued int
	for i := 0; i < 5; i++ {
		decision, err := q.Submit(task(fmt.Sprintf("run-%d", i)))
		require.NoError(t, err)
		switch decision {
		case DecisionAdmitted:
			admitted++
		case DecisionQueued:
			queued++
		}
		assertStatsValid(t, q.Stats())
	}
	assert.Equal(t, 3, admitted)
	assert.Equal(t, 2, queued)

	decision, err := q.Submit(task("run-overflow"))
	require.Error(t, err)
	assert.Equal(t, DecisionRejected, decision)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	stats := q.Stats()
	assert.Equal(t, 3, stats.Running)
	assert.Equal(t, 2, stats.Queued)
}

func TestCapacityErrorCarriesStableMarker(t *testing.T) {
	q, _ := newTestQueue(1, 1)

	_, err := q.Submit(task("run-a"))
	require.NoError(t, err)
	_, err = q.Submit(task("run-b"))
	require.NoError(t, err)

	_, err = q.Submit(task("run-c"))
	require.Error(t, err)
	// Callers key on this substring to tell backpressure from generic
	// failure; it must never change.
	assert.True(t, strings.Contains(err.Error(), "capacity limit"),
		"error %q must contain the stable marker", err.Error())
}

func TestPromotionOnCompletion(t *testing.T) {
	q, exec := newTestQueue(1, 1)

	decisionA, err := q.Submit(task("run-a"))
	require.NoError(t, err)
	require.Equal(t, DecisionAdmitted, decisionA)
	exec.waitFor(t, "run-a")

	decisionB, err := q.Submit(task("run-b"))
	require.NoError(t, err)
	require.Equal(t, DecisionQueued, decisionB)

	stats := q.Stats()
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 1, stats.Queued)

	q.OnCompletion("run-a")
	exec.waitFor(t, "run-b")

	stats = q.Stats()
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 0, stats.Queued)
}

func TestFIFOPromotionOrder(t *testing.T) {
	q, exec := newTestQueue(1, 3)

	_, err := q.Submit(task("run-a"))
	require.NoError(t, err)
	exec.waitFor(t, "run-a")

	for _, id := range []string{"run-b", "run-c", "run-d"} {
		decision, err := q.Submit(task(id))
		require.NoError(t, err)
		require.Equal(t, DecisionQueued, decision)
	}

	q.OnCompletion("run-a")
	exec.waitFor(t, "run-b")
	q.OnCompletion("run-b")
	exec.waitFor(t, "run-c")
	q.OnCompletion("run-c")
	exec.waitFor(t, "run-d")
}

func TestConcurrentAdmissionRace(t *testing.T) {
	const submitters = 20
	q, _ := newTestQueue(1, 3)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		queued   int
		rejected int
	)

	start := make(chan struct{})
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			decision, err := q.Submit(task(fmt.Sprintf("run-%d", i)))
			assertStatsValid(t, q.Stats())

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				assert.ErrorIs(t, err, ErrCapacityExceeded)
				rejected++
			case decision == DecisionAdmitted:
				admitted++
			case decision == DecisionQueued:
				queued++
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, 3, queued)
	assert.Equal(t, submitters-4, rejected)

	stats := q.Stats()
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 3, stats.Queued)
}

func TestConcurrentSubmitAndComplete(t *testing.T) {
	q, exec := newTestQueue(2, 2)

	var wg sync.WaitGroup
	done := make(chan struct{})

	// Completion driver: frees slots as fast as tasks are dispatched.
	go func() {
		for {
			select {
			case runID := <-exec.ch:
				q.OnCompletion(runID)
			case <-done:
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := q.Submit(task(fmt.Sprintf("run-%d", i)))
			if err != nil {
				assert.ErrorIs(t, err, ErrCapacityExceeded)
			}
			assertStatsValid(t, q.Stats())
		}(i)
	}
	wg.Wait()
	close(done)

	// Every snapshot observed during the storm satisfied the bounds;
	// the final state must as well.
	assertStatsValid(t, q.Stats())
}

func TestOnCompletionNeverUnderflows(t *testing.T) {
	q, _ := newTestQueue(1, 1)

	// Spurious completion with nothing running must not push the
	// counter below zero.
	q.OnCompletion("ghost")
	stats := q.Stats()
	assert.Equal(t, 0, stats.Running)
	assert.Equal(t, 0, stats.Queued)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "admitted", DecisionAdmitted.String())
	assert.Equal(t, "queued", DecisionQueued.String())
	assert.Equal(t, "rejected", DecisionRejected.String())
}
