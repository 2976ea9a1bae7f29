// Package types provides shared data structures for the scriptgate
// service.
//
// This package defines core types used across components, keeping the
// queue, sandbox, and API layers free of dependencies on each other.
//
// Core Types:
//   - TestScript: One script within a job run
//   - JobExecutionTask: A validated run submitted for admission
//   - Trigger: What initiated a run (manual, scheduled, remote)
//   - QueueStats: Consistent snapshot of queue load
package types
