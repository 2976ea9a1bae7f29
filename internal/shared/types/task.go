package types

// Trigger identifies how a run was initiated.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerRemote    Trigger = "remote"
)

// Valid reports whether the trigger is one of the known kinds.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerManual, TriggerScheduled, TriggerRemote:
		return true
	default:
		return false
	}
}

// TestScript is a single script inside an execution task.
type TestScript struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Script string `json:"script"`
}

// JobExecutionTask is one unit of work submitted for admission.
// The run record itself is owned by an external collaborator; the
// queue only ever reads these fields.
type JobExecutionTask struct {
	JobID          string       `json:"job_id"`
	RunID          string       `json:"run_id"`
	TestScripts    []TestScript `json:"test_scripts"`
	Trigger        Trigger      `json:"trigger"`
	OrganizationID string       `json:"organization_id"`
	ProjectID      string       `json:"project_id"`
}

// QueueStats is a consistent snapshot of admission queue load.
type QueueStats struct {
	Running         int `json:"running"`
	RunningCapacity int `json:"running_capacity"`
	Queued          int `json:"queued"`
	QueuedCapacity  int `json:"queued_capacity"`
}
