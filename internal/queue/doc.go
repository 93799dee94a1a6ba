// Package queue buffers pending tool invocations between the agent run that
// produces them and the drain that delivers them.
//
// Enqueue never blocks and never fails. Drain removes everything queued at
// the moment of the call and returns it as a one-shot iter.Seq in FIFO
// order; items enqueued while the caller is still iterating stay queued for
// the next drain. DrainFor does the same for a single client and leaves the
// other clients' items in place, in order.
//
// The queue is bounded only by process memory.
package queue
