// Package dispatch runs one agent request end to end.
//
// # Request lifecycle
//
// Coordinator.Handle moves each request through these states:
//
//	IDLE -> CONTEXT_LOADED -> AGENT_RUNNING -> QUEUE_DRAINING -> DONE
//	                     any failure in AGENT_RUNNING -> FAILED
//
// CONTEXT_LOADED fetches the client's session history and summary.
// AGENT_RUNNING runs the agent loop under the configured timeout. Every tool
// call the model makes is parsed into a typed action, enqueued for the
// request's client, and acknowledged to the model immediately.
// QUEUE_DRAINING records the user and agent turns, then drains this
// client's invocations and hands each to the channel registry.
//
// # Scope
//
// The client and request ids travel in the context as a Scope. Nothing about
// "the current client" is stored on the coordinator, so concurrent requests
// for different clients never see each other's tool calls.
//
// # Delivery
//
// In deferred mode invocations wait in the queue until the run ends. In
// immediate mode each invocation is delivered as soon as it is enqueued.
// A client without a live channel loses its invocations; they are logged
// and recorded as dropped. There are no retries.
//
// Invocations left behind by a failed or timed-out request are discarded as
// stale by the next drain for that client. Invocations belonging to another
// request that is still running are left alone.
package dispatch
