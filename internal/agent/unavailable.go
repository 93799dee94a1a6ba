// ABOUTME: UnavailableModel stands in when a provider cannot be configured.
// ABOUTME: The gateway still starts; every run fails with ErrModelUnavailable.

package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/pagepilot/internal/tools"
)

// ErrModelUnavailable is returned by UnavailableModel.
var ErrModelUnavailable = errors.New("model unavailable")

// UnavailableModel fails every completion with Reason.
type UnavailableModel struct {
	Provider string
	Reason   string
}

// Name implements Model.
func (m UnavailableModel) Name() string { return m.Provider + " (unavailable)" }

// Complete implements Model.
func (m UnavailableModel) Complete(context.Context, []Message, []tools.Definition) (*Completion, error) {
	return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, m.Reason)
}
