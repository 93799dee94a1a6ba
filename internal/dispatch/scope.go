// ABOUTME: Per-request scope carried in the context through the agent loop.
// ABOUTME: Replaces any notion of a process-wide current client.

package dispatch

import "context"

// Scope identifies the request a tool call belongs to.
type Scope struct {
	ClientID  string
	RequestID string
}

type scopeKey struct{}

// WithScope returns a context carrying s.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom extracts the Scope from ctx.
func ScopeFrom(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}
