// Package queue implements execution admission control for validated
// jobs: bounded concurrent execution, bounded FIFO waiting, and hard
// rejection beyond that, with a live stats broadcast for observers.
//
// The three concerns are deliberately separate because each has a
// different consumer and failure mode:
//
//   - Admission ("can we start this now") is synchronous and atomic.
//   - Queueing ("is there room to even wait") holds tasks in FIFO
//     order; a queued task is expected to eventually run.
//   - Stats ("how full are we") are advisory and must never affect
//     admission correctness; slow observers get coalesced updates,
//     never backpressure.
//
// A rejected submission returns ErrCapacityExceeded and will never run
// unless resubmitted; any retry policy belongs to the caller. There is
// no cancellation: once admitted or queued, a slot is freed only by a
// completion report.
package queue
