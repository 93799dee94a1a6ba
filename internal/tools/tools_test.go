// ABOUTME: Tests for tool argument parsing, defaults, validation, and wire encoding.
// ABOUTME: Wire shapes must match what the browser client reads.

package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	tests := []struct {
		name string
		tool string
		raw  string
		want string
	}{
		{"highlight default duration", HighlightElementName, `{"selector":"#hero"}`, `{"selector":"#hero","duration":2000}`},
		{"highlight explicit duration", HighlightElementName, `{"selector":"#hero","duration":500}`, `{"selector":"#hero","duration":500}`},
		{"wait default timeout", WaitForElementName, `{"selector":"#agent-submit"}`, `{"selector":"#agent-submit","timeout":5000}`},
		{"navigate", NavigateToPageName, `{"path":"/contact"}`, `{"path":"/contact"}`},
		{"fill keeps key order", FillInputName, `{"value":"John Doe","selector":"#agent-name"}`, `{"selector":"#agent-name","value":"John Doe"}`},
		{"screenshot without filename", TakeScreenshotName, ``, `{"filename":null}`},
		{"screenshot null args", TakeScreenshotName, `null`, `{"filename":null}`},
		{"screenshot with filename", TakeScreenshotName, `{"filename":"home.png"}`, `{"filename":"home.png"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := Parse(tt.tool, json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.tool, action.ToolName())

			data, err := json.Marshal(action)
			require.NoError(t, err)
			// Compare bytes, not JSONEq: key order is part of the contract.
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		raw     string
		wantErr error
	}{
		{"unknown tool", "delete_everything", `{}`, ErrUnknownTool},
		{"missing selector", ClickElementName, `{}`, ErrInvalidArguments},
		{"blank selector", ScrollToElementName, `{"selector":"  "}`, ErrInvalidArguments},
		{"missing path", NavigateToPageName, `{"path":""}`, ErrInvalidArguments},
		{"wrong type", HighlightElementName, `{"selector":"#a","duration":"long"}`, ErrInvalidArguments},
		{"non-positive timeout", WaitForElementName, `{"selector":"#a","timeout":0}`, ErrInvalidArguments},
		{"malformed json", FillInputName, `{"selector":`, ErrInvalidArguments},
		{"fill without value", FillInputName, `{"selector":"#agent-name"}`, ErrInvalidArguments},
		{"fill with null value", FillInputName, `{"selector":"#agent-name","value":null}`, ErrInvalidArguments},
		{"missing args for required selector", GetElementTextName, ``, ErrInvalidArguments},
		{"unknown key", NavigateToPageName, `{"path":"/x","bogus":1}`, ErrInvalidArguments},
		{"millisecond suffix is not a wire key", HighlightElementName, `{"selector":"#a","duration_ms":500}`, ErrInvalidArguments},
		{"arguments not an object", ClickElementName, `["#a"]`, ErrInvalidArguments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.tool, json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParse_FillAcceptsEmptyValue(t *testing.T) {
	action, err := Parse(FillInputName, json.RawMessage(`{"selector":"#agent-name","value":""}`))
	require.NoError(t, err)
	assert.Equal(t, &FillInput{Selector: "#agent-name"}, action)
}

func TestAck(t *testing.T) {
	nav, err := Parse(NavigateToPageName, json.RawMessage(`{"path":"/contact"}`))
	require.NoError(t, err)
	assert.Equal(t, "Navigating to /contact", nav.Ack())

	fill, err := Parse(FillInputName, json.RawMessage(`{"selector":"#agent-email","value":"john@example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "Filling input #agent-email with value 'john@example.com'", fill.Ack())

	shot, err := Parse(TakeScreenshotName, nil)
	require.NoError(t, err)
	assert.Equal(t, "Taking screenshot", shot.Ack())
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, len(Names()))

	for i, def := range defs {
		assert.Equal(t, Names()[i], def.Name)
		assert.NotEmpty(t, def.Description)
		assert.Equal(t, "object", def.Parameters["type"])
		assert.True(t, Known(def.Name))
	}

	// Mutating a returned schema must not leak into the next call.
	defs[0].Parameters["properties"].(map[string]any)["extra"] = true
	_, leaked := Definitions()[0].Parameters["properties"].(map[string]any)["extra"]
	assert.False(t, leaked)

	assert.False(t, Known("rm_rf"))
}
