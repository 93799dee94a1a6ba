// Package agent runs the tool-calling reasoning loop behind POST /agent.
//
// # Overview
//
// A Loop alternates between a Model and a ToolExecutor. Each step sends the
// conversation so far plus the browser tool definitions to the model. When
// the model answers with tool calls, each call is handed to the executor and
// its acknowledgment is fed back as a tool message. When the model answers
// with plain text, that text is the final answer.
//
//	loop := agent.NewLoop(model, agent.Options{MaxSteps: 10}, logger)
//	result, err := loop.Run(ctx, agent.Input{Query: "go to contact"}, executor)
//
// The executor decides what a tool call means. The dispatch package queues
// browser actions. Acknowledgments are synchronous and never wait for the
// browser.
//
// # Models
//
// Model implementations live in subpackages:
//
//   - agent/openai: Chat Completions, usable with OpenAI-compatible
//     endpoints such as Gemini's
//   - agent/anthropic: Messages API
//
// ScriptedModel replays canned completions for tests. EchoModel answers
// with the user's own text and backs the credential-free "echo" provider.
//
// # Limits
//
// Run stops with ErrStepLimit once MaxSteps model calls have produced tool
// calls without a final answer. Context cancellation aborts between steps
// and inside the model call.
package agent
