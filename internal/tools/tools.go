// ABOUTME: Typed browser tool actions with defaults, validation, and acknowledgments.
// ABOUTME: Parse is the single entry point that turns model output into an Action.

package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Tool names recognized by the browser client.
const (
	HighlightElementName = "highlight_element"
	FillInputName        = "fill_input"
	NavigateToPageName   = "navigate_to_page"
	ClickElementName     = "click_element"
	WaitForElementName   = "wait_for_element"
	ScrollToElementName  = "scroll_to_element"
	GetElementTextName   = "get_element_text"
	TakeScreenshotName   = "take_screenshot"
)

const (
	// DefaultHighlightDuration is the highlight duration in milliseconds.
	DefaultHighlightDuration = 2000
	// DefaultWaitTimeout is the wait_for_element timeout in milliseconds.
	DefaultWaitTimeout = 5000
)

// ErrUnknownTool indicates the tool name is not part of the vocabulary.
var ErrUnknownTool = errors.New("unknown tool")

// ErrInvalidArguments indicates the arguments failed to decode or validate.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// Action is one validated tool request. Field order of the concrete struct
// is the key order on the wire.
type Action interface {
	// ToolName returns the vocabulary name of the action.
	ToolName() string
	// Ack returns the synchronous acknowledgment handed back to the agent.
	Ack() string
	// Validate checks required fields and ranges.
	Validate() error
}

// HighlightElement briefly highlights an element.
type HighlightElement struct {
	Selector string `json:"selector"`
	Duration int    `json:"duration"`
}

func (a *HighlightElement) ToolName() string { return HighlightElementName }

func (a *HighlightElement) Ack() string {
	return fmt.Sprintf("Highlighting element %s for %dms", a.Selector, a.Duration)
}

func (a *HighlightElement) Validate() error {
	if err := requireSelector(a.Selector); err != nil {
		return err
	}
	if a.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %d", a.Duration)
	}
	return nil
}

// FillInput sets the value of an input or textarea.
type FillInput struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

func (a *FillInput) ToolName() string { return FillInputName }

func (a *FillInput) Ack() string {
	return fmt.Sprintf("Filling input %s with value '%s'", a.Selector, a.Value)
}

func (a *FillInput) Validate() error { return requireSelector(a.Selector) }

// NavigateToPage routes the client to a path.
type NavigateToPage struct {
	Path string `json:"path"`
}

func (a *NavigateToPage) ToolName() string { return NavigateToPageName }

func (a *NavigateToPage) Ack() string { return "Navigating to " + a.Path }

func (a *NavigateToPage) Validate() error {
	if strings.TrimSpace(a.Path) == "" {
		return errors.New("path is required")
	}
	return nil
}

// ClickElement clicks an element.
type ClickElement struct {
	Selector string `json:"selector"`
}

func (a *ClickElement) ToolName() string { return ClickElementName }

func (a *ClickElement) Ack() string { return "Clicking element " + a.Selector }

func (a *ClickElement) Validate() error { return requireSelector(a.Selector) }

// WaitForElement waits until an element appears.
type WaitForElement struct {
	Selector string `json:"selector"`
	Timeout  int    `json:"timeout"`
}

func (a *WaitForElement) ToolName() string { return WaitForElementName }

func (a *WaitForElement) Ack() string {
	return fmt.Sprintf("Waiting for element %s with timeout %dms", a.Selector, a.Timeout)
}

func (a *WaitForElement) Validate() error {
	if err := requireSelector(a.Selector); err != nil {
		return err
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", a.Timeout)
	}
	return nil
}

// ScrollToElement scrolls an element into view.
type ScrollToElement struct {
	Selector string `json:"selector"`
}

func (a *ScrollToElement) ToolName() string { return ScrollToElementName }

func (a *ScrollToElement) Ack() string { return "Scrolling to element " + a.Selector }

func (a *ScrollToElement) Validate() error { return requireSelector(a.Selector) }

// GetElementText reads an element's text content.
type GetElementText struct {
	Selector string `json:"selector"`
}

func (a *GetElementText) ToolName() string { return GetElementTextName }

func (a *GetElementText) Ack() string { return "Getting text from element " + a.Selector }

func (a *GetElementText) Validate() error { return requireSelector(a.Selector) }

// TakeScreenshot captures the current page.
type TakeScreenshot struct {
	Filename *string `json:"filename"`
}

func (a *TakeScreenshot) ToolName() string { return TakeScreenshotName }

func (a *TakeScreenshot) Ack() string {
	if a.Filename != nil && *a.Filename != "" {
		return "Taking screenshot with filename " + *a.Filename
	}
	return "Taking screenshot"
}

func (a *TakeScreenshot) Validate() error { return nil }

func requireSelector(selector string) error {
	if strings.TrimSpace(selector) == "" {
		return errors.New("selector is required")
	}
	return nil
}

// Parse decodes raw JSON arguments for the named tool, applies defaults,
// and validates the result. Empty or null arguments decode to defaults.
// Keys outside the tool's schema are rejected, and every required key must
// be present and non-null.
func Parse(name string, raw json.RawMessage) (Action, error) {
	spec, ok := vocabulary[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	action := spec.newAction()
	var fields map[string]json.RawMessage
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !isNull(trimmed) {
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArguments, name, err)
		}
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(action); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArguments, name, err)
		}
	}

	for _, key := range spec.required {
		if v, ok := fields[key]; !ok || isNull(bytes.TrimSpace(v)) {
			return nil, fmt.Errorf("%w: %s: %s is required", ErrInvalidArguments, name, key)
		}
	}

	if err := action.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArguments, name, err)
	}
	return action, nil
}

func isNull(b []byte) bool {
	return bytes.Equal(b, []byte("null"))
}

// Known reports whether name is part of the vocabulary.
func Known(name string) bool {
	_, ok := vocabulary[name]
	return ok
}
