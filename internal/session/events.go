package session

import (
	"context"
	"strings"

	"github.com/spigell/apply-copilot/internal/page"
	"github.com/spigell/apply-copilot/internal/scanning"
)

// Event types sent by the in-page bridge.
const (
	EventLoad     = "load"
	EventMutation = "mutation"
	EventInput    = "input"
	EventFill     = "fill"
	EventUnload   = "unload"
)

// Event is a notification from the page.
type Event struct {
	Type  string `json:"type"`
	URL   string `json:"url,omitempty"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
	Added int    `json:"added,omitempty"`
}

// AffordanceState is the visual state of a fill button. Ready buttons are
// enabled; filled buttons are disabled because the field has content.
type AffordanceState string

const (
	StateReady   AffordanceState = "ready"
	StateFilled  AffordanceState = "filled"
	StateLoading AffordanceState = "loading"
	StateSuccess AffordanceState = "success"
)

// Page is the live document the session drives.
type Page interface {
	// Snapshot returns the current DOM with field ids and live values stamped.
	Snapshot(ctx context.Context) (*page.Document, error)
	AttachAffordance(ctx context.Context, a scanning.Affordance) error
	SetAffordanceState(ctx context.Context, fieldID string, state AffordanceState) error
	SetAffordancesVisible(ctx context.Context, visible bool) error
	CommitValue(ctx context.Context, fieldID, value string) error
	Toast(ctx context.Context, message string) error
}

type fieldState struct {
	question   string
	hasContent bool
	busy       bool
	success    bool
}

func (f *fieldState) state() AffordanceState {
	switch {
	case f.busy:
		return StateLoading
	case f.success:
		return StateSuccess
	case f.hasContent:
		return StateFilled
	default:
		return StateReady
	}
}

func hasContent(value string) bool {
	return strings.TrimSpace(value) != ""
}
