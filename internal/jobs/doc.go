// Package jobs implements the background-job subsystem for playlist syncs.
//
// A sync request becomes a [Job] owned by the [Store], which is the sole
// authority over job existence and status transitions and enforces
// one-active-job-at-a-time with FIFO admission. The [Executor] drives a job's
// lifecycle: it runs the blocking sync collaborator ([Runner]) on a worker
// goroutine, marshals progress back onto its single dispatch loop, and chains
// the next pending job when a run finishes. The [Bus] fans job lifecycle
// events out to any number of subscribers over bounded drop-oldest queues, so
// a slow consumer never blocks producers or other consumers.
//
// Cancellation is cooperative: the executor hands each run a single-use
// [CancelToken] which the collaborator polls at safe checkpoints. Nothing
// forcibly stops a worker mid-call.
package jobs
