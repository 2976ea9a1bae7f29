package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptgate/scriptgate/internal/logging"
	"github.com/scriptgate/scriptgate/internal/shared/types"
)

func waitForEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for webhook delivery")
		return Event{}
	}
}

func captureServer(t *testing.T) (*httptest.Server, <-chan Event) {
	t.Helper()
	events := make(chan Event, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var ev Event
		require.NoError(t, sonic.Unmarshal(body, &ev))
		events <- ev
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, events
}

func TestNotifierDisabledWithoutURL(t *testing.T) {
	n := New(Config{}, logging.NewDefault())
	assert.False(t, n.Enabled())

	// All methods must be no-ops, not panics.
	n.RunSubmitted(types.JobExecutionTask{RunID: "r1"}, "admitted", types.QueueStats{})
	n.RunRejected(types.JobExecutionTask{RunID: "r1"}, "full", types.QueueStats{})
	n.RunCompleted("r1", types.QueueStats{})
}

func TestRunSubmittedPayload(t *testing.T) {
	srv, events := captureServer(t)
	n := New(Config{WebhookURL: srv.URL, MaxRetries: 1}, logging.NewDefault())
	require.True(t, n.Enabled())

	task := types.JobExecutionTask{JobID: "job-1", RunID: "run-1"}
	stats := types.QueueStats{Running: 2, RunningCapacity: 5, Queued: 1, QueuedCapacity: 10}
	n.RunSubmitted(task, "queued", stats)

	ev := waitForEvent(t, events)
	assert.Equal(t, "submitted", ev.Kind)
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "job-1", ev.JobID)
	assert.Equal(t, "queued", ev.Decision)
	assert.Equal(t, stats, ev.Stats)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestRunRejectedPayload(t *testing.T) {
	srv, events := captureServer(t)
	n := New(Config{WebhookURL: srv.URL, MaxRetries: 1}, logging.NewDefault())

	n.RunRejected(types.JobExecutionTask{JobID: "job-1", RunID: "run-2"}, "capacity limit reached", types.QueueStats{})

	ev := waitForEvent(t, events)
	assert.Equal(t, "rejected", ev.Kind)
	assert.Equal(t, "rejected", ev.Decision)
	assert.Equal(t, "run-2", ev.RunID)
	assert.Contains(t, ev.Error, "capacity limit")
}

func TestRunCompletedPayload(t *testing.T) {
	srv, events := captureServer(t)
	n := New(Config{WebhookURL: srv.URL, MaxRetries: 1}, logging.NewDefault())

	n.RunCompleted("run-3", types.QueueStats{Running: 4, RunningCapacity: 5})

	ev := waitForEvent(t, events)
	assert.Equal(t, "completed", ev.Kind)
	assert.Equal(t, "run-3", ev.RunID)
	assert.Equal(t, 4, ev.Stats.Running)
}

func TestDeliveryRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	events := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var ev Event
		_ = sonic.Unmarshal(body, &ev)
		events <- ev
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	n := New(Config{WebhookURL: srv.URL, MaxRetries: 2}, logging.NewDefault())
	// Keep the test fast; the production backoff is too slow for a unit test.
	n.client.RetryWaitMin = 10 * time.Millisecond
	n.client.RetryWaitMax = 50 * time.Millisecond

	n.RunCompleted("run-4", types.QueueStats{})

	ev := waitForEvent(t, events)
	assert.Equal(t, "completed", ev.Kind)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}
