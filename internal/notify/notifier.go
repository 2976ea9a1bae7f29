package notify

import (
	"bytes"
	"time"

	"github.com/bytedance/sonic"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/scriptgate/scriptgate/internal/logging"
	"github.com/scriptgate/scriptgate/internal/shared/types"
)

// Event is the payload posted to the run-record collaborator. The
// collaborator owns run state; these events are how admission outcomes
// and completions reach it.
type Event struct {
	Kind      string           `json:"kind"` // submitted, rejected, completed
	RunID     string           `json:"run_id"`
	JobID     string           `json:"job_id,omitempty"`
	Decision  string           `json:"decision,omitempty"`
	Error     string           `json:"error,omitempty"`
	Stats     types.QueueStats `json:"stats"`
	Timestamp time.Time        `json:"timestamp"`
}

// Config holds webhook settings. An empty URL disables delivery.
type Config struct {
	WebhookURL string
	MaxRetries int
}

// Notifier posts outcome events with bounded retry and backoff.
// Delivery is fire-and-forget from the caller's perspective; a dead
// collaborator must never slow down admission.
type Notifier struct {
	client *retryablehttp.Client
	url    string
	logger *logging.Logger
}

// New creates a notifier. Returns a disabled notifier when no URL is
// configured; all methods are safe to call either way.
func New(cfg Config, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewDefault()
	}
	n := &Notifier{url: cfg.WebhookURL, logger: logger}
	if cfg.WebhookURL == "" {
		return n
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil
	n.client = client
	return n
}

// Enabled reports whether events will actually be delivered.
func (n *Notifier) Enabled() bool {
	return n.client != nil
}

// RunSubmitted reports an admitted or queued placement.
func (n *Notifier) RunSubmitted(task types.JobExecutionTask, decision string, stats types.QueueStats) {
	n.deliver(Event{
		Kind:      "submitted",
		RunID:     task.RunID,
		JobID:     task.JobID,
		Decision:  decision,
		Stats:     stats,
		Timestamp: time.Now().UTC(),
	})
}

// RunRejected reports a capacity rejection. The collaborator marks the
// run as terminally failed.
func (n *Notifier) RunRejected(task types.JobExecutionTask, errMsg string, stats types.QueueStats) {
	n.deliver(Event{
		Kind:      "rejected",
		RunID:     task.RunID,
		JobID:     task.JobID,
		Decision:  "rejected",
		Error:     errMsg,
		Stats:     stats,
		Timestamp: time.Now().UTC(),
	})
}

// RunCompleted reports that a run finished and its slot was freed.
func (n *Notifier) RunCompleted(runID string, stats types.QueueStats) {
	n.deliver(Event{
		Kind:      "completed",
		RunID:     runID,
		Stats:     stats,
		Timestamp: time.Now().UTC(),
	})
}

func (n *Notifier) deliver(ev Event) {
	if n.client == nil {
		return
	}
	body, err := sonic.Marshal(ev)
	if err != nil {
		n.logger.Error("failed to encode outcome event", zap.Error(err))
		return
	}
	go func() {
		resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
		if err != nil {
			n.logger.Warn("outcome webhook delivery failed",
				zap.String("kind", ev.Kind),
				zap.String("run_id", ev.RunID),
				zap.Error(err),
			)
			return
		}
		resp.Body.Close()
	}()
}
