// ABOUTME: Tests for the Messages API adapter against a local HTTP stub.
// ABOUTME: Checks system extraction, tool result grouping, and tool_use decoding.

package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pagepilot/internal/agent"
	"github.com/2389/pagepilot/internal/tools"
)

const toolUseResponse = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-5",
  "content": [
    {"type": "text", "text": "Opening the form."},
    {"type": "tool_use", "id": "toolu_1", "name": "navigate_to_page", "input": {"path": "/contact"}}
  ],
  "stop_reason": "tool_use",
  "stop_sequence": null,
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`

func newStub(t *testing.T, body string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func newTestModel(url string) *Model {
	return New(Options{
		Model:          "claude-sonnet-4-5",
		APIKey:         "test-key",
		BaseURL:        url,
		Temperature:    0.1,
		RequestOptions: []option.RequestOption{option.WithMaxRetries(0)},
	})
}

func TestModel_CompleteDecodesToolUse(t *testing.T) {
	srv, captured := newStub(t, toolUseResponse)

	completion, err := newTestModel(srv.URL).Complete(context.Background(), []agent.Message{
		{Role: agent.RoleSystem, Content: "be helpful"},
		{Role: agent.RoleUser, Content: "go to contact"},
	}, tools.Definitions())
	require.NoError(t, err)

	assert.Equal(t, "Opening the form.", completion.Text)
	require.Len(t, completion.ToolCalls, 1)
	assert.Equal(t, "toolu_1", completion.ToolCalls[0].ID)
	assert.Equal(t, "navigate_to_page", completion.ToolCalls[0].Name)
	assert.JSONEq(t, `{"path":"/contact"}`, string(completion.ToolCalls[0].Arguments))

	req := *captured
	system := req["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "be helpful", system[0].(map[string]any)["text"])
	assert.Len(t, req["messages"], 1, "system turns are not sent as messages")

	sentTools := req["tools"].([]any)
	require.Len(t, sentTools, len(tools.Names()))
	first := sentTools[0].(map[string]any)
	assert.Equal(t, tools.HighlightElementName, first["name"])
	assert.NotEmpty(t, first["description"])
}

func TestModel_CompleteGroupsToolResults(t *testing.T) {
	srv, captured := newStub(t, `{"id":"msg_2","type":"message","role":"assistant","model":"m",
		"content":[{"type":"text","text":"Done."}],"stop_reason":"end_turn","stop_sequence":null,
		"usage":{"input_tokens":1,"output_tokens":1}}`)

	completion, err := newTestModel(srv.URL).Complete(context.Background(), []agent.Message{
		{Role: agent.RoleUser, Content: "fill the form"},
		{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{
			{ID: "a", Name: "navigate_to_page", Arguments: json.RawMessage(`{"path":"/contact"}`)},
			{ID: "b", Name: "click_element", Arguments: json.RawMessage(`{"selector":"#agent-submit"}`)},
		}},
		{Role: agent.RoleTool, Content: "Navigating to /contact", ToolCallID: "a"},
		{Role: agent.RoleTool, Content: "Clicking element #agent-submit", ToolCallID: "b"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Done.", completion.Text)

	msgs := (*captured)["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["role"])
	results := msgs[2].(map[string]any)
	assert.Equal(t, "user", results["role"])
	assert.Len(t, results["content"], 2)
}

func TestModel_CompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"nope"}}`))
	}))
	defer srv.Close()

	_, err := newTestModel(srv.URL).Complete(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "x"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic api error")
}
