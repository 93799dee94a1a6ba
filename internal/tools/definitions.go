// ABOUTME: JSON schema definitions for the browser tool vocabulary.
// ABOUTME: Shared by the agent model adapters and the MCP server.

package tools

// Definition describes one tool to a model: name, description and a JSON
// Schema object for its arguments.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type toolSpec struct {
	description string
	properties  map[string]any
	required    []string
	newAction   func() Action
}

// order is the presentation order of the vocabulary.
var order = []string{
	HighlightElementName,
	FillInputName,
	NavigateToPageName,
	ClickElementName,
	WaitForElementName,
	ScrollToElementName,
	GetElementTextName,
	TakeScreenshotName,
}

func selectorProperty(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

var vocabulary = map[string]toolSpec{
	HighlightElementName: {
		description: "Highlight an element on the page for a specified duration.",
		properties: map[string]any{
			"selector": selectorProperty("CSS selector for the element to highlight"),
			"duration": map[string]any{
				"type":        "integer",
				"description": "Duration in milliseconds to highlight the element",
				"default":     DefaultHighlightDuration,
			},
		},
		required:  []string{"selector"},
		newAction: func() Action { return &HighlightElement{Duration: DefaultHighlightDuration} },
	},
	FillInputName: {
		description: "Fill an input field with a specified value.",
		properties: map[string]any{
			"selector": selectorProperty("CSS selector for the input element"),
			"value":    map[string]any{"type": "string", "description": "Value to fill in the input field"},
		},
		required:  []string{"selector", "value"},
		newAction: func() Action { return &FillInput{} },
	},
	NavigateToPageName: {
		description: "Navigate to a specified page.",
		properties: map[string]any{
			"path": map[string]any{"type": "string", "description": "Path to navigate to, e.g. /contact"},
		},
		required:  []string{"path"},
		newAction: func() Action { return &NavigateToPage{} },
	},
	ClickElementName: {
		description: "Click an element on the page.",
		properties: map[string]any{
			"selector": selectorProperty("CSS selector for the element to click"),
		},
		required:  []string{"selector"},
		newAction: func() Action { return &ClickElement{} },
	},
	WaitForElementName: {
		description: "Wait for an element to appear on the page.",
		properties: map[string]any{
			"selector": selectorProperty("CSS selector for the element to wait for"),
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Timeout in milliseconds",
				"default":     DefaultWaitTimeout,
			},
		},
		required:  []string{"selector"},
		newAction: func() Action { return &WaitForElement{Timeout: DefaultWaitTimeout} },
	},
	ScrollToElementName: {
		description: "Scroll to an element on the page.",
		properties: map[string]any{
			"selector": selectorProperty("CSS selector for the element to scroll to"),
		},
		required:  []string{"selector"},
		newAction: func() Action { return &ScrollToElement{} },
	},
	GetElementTextName: {
		description: "Get text content from an element.",
		properties: map[string]any{
			"selector": selectorProperty("CSS selector for the element"),
		},
		required:  []string{"selector"},
		newAction: func() Action { return &GetElementText{} },
	},
	TakeScreenshotName: {
		description: "Take a screenshot of the current page.",
		properties: map[string]any{
			"filename": map[string]any{"type": "string", "description": "Optional filename for the screenshot"},
		},
		newAction: func() Action { return &TakeScreenshot{} },
	},
}

// Names returns the tool names in presentation order.
func Names() []string {
	return append([]string(nil), order...)
}

// Definitions returns a fresh copy of every tool definition. Callers may
// mutate the returned schemas.
func Definitions() []Definition {
	defs := make([]Definition, 0, len(order))
	for _, name := range order {
		spec := vocabulary[name]
		props := make(map[string]any, len(spec.properties))
		for k, v := range spec.properties {
			props[k] = v
		}
		params := map[string]any{
			"type":       "object",
			"properties": props,
		}
		if len(spec.required) > 0 {
			params["required"] = append([]string(nil), spec.required...)
		}
		defs = append(defs, Definition{
			Name:        name,
			Description: spec.description,
			Parameters:  params,
		})
	}
	return defs
}
