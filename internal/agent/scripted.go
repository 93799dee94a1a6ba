// ABOUTME: In-process models: ScriptedModel replays canned completions for tests,
// ABOUTME: EchoModel answers without a provider.

package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/2389/pagepilot/internal/tools"
)

// ErrScriptExhausted is returned when a ScriptedModel runs out of replies.
var ErrScriptExhausted = errors.New("scripted model has no more completions")

// ScriptedModel returns its completions in order, one per Complete call.
// It records every transcript it was shown.
type ScriptedModel struct {
	mu      sync.Mutex
	script  []Completion
	calls   [][]Message
	err     error
	blockOn bool
}

// NewScriptedModel creates a model that replays script.
func NewScriptedModel(script ...Completion) *ScriptedModel {
	return &ScriptedModel{script: script}
}

// FailWith makes every Complete call return err.
func (m *ScriptedModel) FailWith(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// BlockUntilCancelled makes Complete wait for ctx to end.
func (m *ScriptedModel) BlockUntilCancelled() *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockOn = true
	return m
}

// Name implements Model.
func (m *ScriptedModel) Name() string { return "scripted" }

// Complete implements Model.
func (m *ScriptedModel) Complete(ctx context.Context, messages []Message, _ []tools.Definition) (*Completion, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]Message(nil), messages...))
	block, err := m.blockOn, m.err
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.script) == 0 {
		return nil, ErrScriptExhausted
	}
	next := m.script[0]
	m.script = m.script[1:]
	return &next, nil
}

// Calls returns the transcripts passed to Complete so far.
func (m *ScriptedModel) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.calls...)
}

// EchoModel answers every query with its own text and never calls tools.
// It lets the gateway run without provider credentials.
type EchoModel struct{}

// Name implements Model.
func (EchoModel) Name() string { return "echo" }

// Complete implements Model.
func (EchoModel) Complete(_ context.Context, messages []Message, _ []tools.Definition) (*Completion, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return &Completion{Text: messages[i].Content}, nil
		}
	}
	return &Completion{}, nil
}
