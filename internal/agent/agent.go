// ABOUTME: Provider-neutral message types, the Model and ToolExecutor contracts,
// ABOUTME: and the step-limited tool-calling loop.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/pagepilot/internal/tools"
)

// ErrStepLimit indicates the model kept calling tools past the step budget.
var ErrStepLimit = errors.New("agent step limit exceeded")

// DefaultMaxSteps bounds model calls per run.
const DefaultMaxSteps = 10

// Role is the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one function call requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry of the provider-neutral transcript.
type Message struct {
	Role    Role
	Content string
	// ToolCalls is set on assistant messages that request tools.
	ToolCalls []ToolCall
	// ToolCallID links a tool message to the call it answers.
	ToolCallID string
}

// Completion is a single model response.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

// Model produces the next assistant turn for a transcript.
type Model interface {
	Complete(ctx context.Context, messages []Message, defs []tools.Definition) (*Completion, error)
	Name() string
}

// ToolExecutor performs a tool call and returns the acknowledgment shown to
// the model. An error aborts the run.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall) (string, error)
}

// ToolExecutorFunc adapts a function to ToolExecutor.
type ToolExecutorFunc func(ctx context.Context, call ToolCall) (string, error)

// Execute calls f.
func (f ToolExecutorFunc) Execute(ctx context.Context, call ToolCall) (string, error) {
	return f(ctx, call)
}

// Options configures a Loop.
type Options struct {
	MaxSteps     int
	SystemPrompt string
}

// Input is one user request plus its prior context.
type Input struct {
	Query string
	// History is the prior conversation, oldest first, without the system turn.
	History []Message
	// Summary is a short rendering of History for the system prompt.
	Summary string
}

// Result is the outcome of a successful run.
type Result struct {
	Text      string
	Steps     int
	ToolCalls int
}

// Loop drives a Model until it returns a final answer.
type Loop struct {
	model    Model
	defs     []tools.Definition
	maxSteps int
	prompt   string
	logger   *slog.Logger
}

// NewLoop creates a loop over model with the browser tool vocabulary.
func NewLoop(model Model, opts Options, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	return &Loop{
		model:    model,
		defs:     tools.Definitions(),
		maxSteps: opts.MaxSteps,
		prompt:   opts.SystemPrompt,
		logger:   logger.With("component", "agent", "model", model.Name()),
	}
}

// Model returns the underlying model.
func (l *Loop) Model() Model {
	return l.model
}

// Run answers in.Query, calling exec for every tool call the model makes.
func (l *Loop) Run(ctx context.Context, in Input, exec ToolExecutor) (*Result, error) {
	messages := make([]Message, 0, len(in.History)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: systemMessage(l.prompt, in.Summary)})
	messages = append(messages, in.History...)
	messages = append(messages, Message{Role: RoleUser, Content: in.Query})

	result := &Result{}
	for step := 1; step <= l.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Steps = step

		completion, err := l.model.Complete(ctx, messages, l.defs)
		if err != nil {
			return nil, fmt.Errorf("model completion (step %d): %w", step, err)
		}

		messages = append(messages, Message{
			Role:      RoleAssistant,
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
		})

		if len(completion.ToolCalls) == 0 {
			l.logger.Debug("agent finished", "steps", step, "tool_calls", result.ToolCalls)
			result.Text = completion.Text
			return result, nil
		}

		for _, call := range completion.ToolCalls {
			l.logger.Debug("tool call", "step", step, "tool", call.Name, "call_id", call.ID)
			ack, err := exec.Execute(ctx, call)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", call.Name, err)
			}
			result.ToolCalls++
			messages = append(messages, Message{
				Role:       RoleTool,
				Content:    ack,
				ToolCallID: call.ID,
			})
		}
	}

	l.logger.Warn("agent step limit reached", "max_steps", l.maxSteps, "tool_calls", result.ToolCalls)
	return nil, fmt.Errorf("%w after %d steps", ErrStepLimit, l.maxSteps)
}

func systemMessage(prompt, summary string) string {
	if strings.TrimSpace(summary) == "" {
		return prompt
	}
	return prompt + "\n\n### Conversation so far\n" + summary
}
