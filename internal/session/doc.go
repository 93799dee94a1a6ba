// Package session keeps a short, bounded conversation history per client.
//
// Each client identity maps to a session with an opaque session id, at most
// MaxTurns turns (oldest dropped first), and a last-activity timestamp.
// A session idle for longer than Timeout is expired: the next access
// discards its turns and issues a new session id. The entry itself is kept
// until Sweep deletes it. Run drives Sweep on a ticker until its context is
// cancelled.
//
// Expiry is never reported to callers. An expired session reads as empty.
package session
