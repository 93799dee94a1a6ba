// ABOUTME: Anthropic Messages adapter for the agent loop
// ABOUTME: Converts agent messages and tool definitions to anthropic-sdk-go params

// Package anthropic implements agent.Model on the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/2389/pagepilot/internal/agent"
	"github.com/2389/pagepilot/internal/tools"
)

// DefaultMaxTokens caps each response.
const DefaultMaxTokens = 4096

// Options configures the adapter.
type Options struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int64
	// RequestOptions are appended to the client options, mostly for tests.
	RequestOptions []option.RequestOption
}

// Model wraps a Messages client.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// New creates a model from opts.
func New(opts Options) *Model {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	clientOpts = append(clientOpts, opts.RequestOptions...)

	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// Name implements agent.Model.
func (m *Model) Name() string {
	return m.opts.Model
}

// Complete implements agent.Model with a single non-streaming request.
func (m *Model) Complete(ctx context.Context, messages []agent.Message, defs []tools.Definition) (*agent.Completion, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.opts.Model),
		Messages:    buildMessages(messages),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if system := systemBlocks(messages); len(system) > 0 {
		params.System = system
	}
	if len(defs) > 0 {
		params.Tools = buildTools(defs)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	completion := &agent.Completion{}
	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			use := block.AsToolUse()
			args, err := json.Marshal(use.Input)
			if err != nil {
				return nil, fmt.Errorf("anthropic: encoding tool input for %s: %w", use.Name, err)
			}
			completion.ToolCalls = append(completion.ToolCalls, agent.ToolCall{
				ID:        use.ID,
				Name:      use.Name,
				Arguments: args,
			})
		}
	}
	completion.Text = text.String()
	return completion, nil
}

func systemBlocks(messages []agent.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range messages {
		if msg.Role == agent.RoleSystem && msg.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	return blocks
}

// buildMessages converts the transcript. Consecutive tool results are sent
// together in one user message, as the API requires.
func buildMessages(messages []agent.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var results []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case agent.RoleSystem:
			continue
		case agent.RoleTool:
			results = append(results, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
			continue
		}
		flush()

		switch msg.Role {
		case agent.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case agent.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input any
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						input = string(tc.Arguments)
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}
	flush()
	return out
}

func buildTools(defs []tools.Definition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(defs))
	for i, def := range defs {
		schema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if props, ok := def.Parameters["properties"]; ok {
			schema.Properties = props
		}
		if required, ok := def.Parameters["required"].([]string); ok {
			schema.Required = required
		}
		tool := anthropic.ToolUnionParamOfTool(schema, def.Name)
		tool.OfTool.Description = anthropic.String(def.Description)
		out[i] = tool
	}
	return out
}
