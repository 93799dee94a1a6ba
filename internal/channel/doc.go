// Package channel tracks the live browser channels attached to the gateway.
//
// # Overview
//
// Every browser tab that wants to receive tool invocations opens a WebSocket
// to /ws/{client_id}. The gateway wraps that socket in a Channel and attaches
// it to the Registry under the client identity taken from the path.
//
//	reg := channel.NewRegistry(logger)
//	reg.Attach("client_42", ch)
//	ok := reg.Deliver(ctx, "client_42", payload)
//
// Key operations:
//
//   - Attach(clientID, ch): Register or replace the channel for a client
//   - Detach(clientID): Remove the entry if present
//   - DetachIf(clientID, ch): Remove the entry only if it is still ch
//   - Deliver(ctx, clientID, msg): Send to the client, report success
//   - Send(ctx, clientID, msg): Like Deliver but returns the reason on failure
//   - List(): Snapshot of attached clients
//
// # Replacement
//
// A second connect for the same client identity overwrites the registry
// entry. The previous channel is returned from Attach and its lifecycle stays
// with the caller. Its read loop will eventually end and call DetachIf, which
// is a no-op because the entry now points at the newer channel.
//
// # Failed Writes
//
// A write that fails (socket closed mid-send, write timeout) is treated as an
// implicit detach: the stale entry is removed and Deliver returns false.
//
// # Ordering
//
// Writes to one channel are serialized, so invocations for a single client
// arrive in call order. Nothing is promised across clients.
//
// # Inbound Protocol
//
// Clients may send {"type":"ping"}; the channel answers {"type":"pong"}.
// Everything else is read and ignored.
package channel
