package browser

import (
	"strings"
	"testing"

	"github.com/ysmood/gson"

	"github.com/spigell/apply-copilot/internal/page"
	"github.com/spigell/apply-copilot/internal/scanning"
	"github.com/spigell/apply-copilot/internal/session"
)

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		expect session.Event
	}{
		{
			name:   "load",
			raw:    `{"type":"load","url":"https://jobs.lever.co/acme/1"}`,
			expect: session.Event{Type: session.EventLoad, URL: "https://jobs.lever.co/acme/1"},
		},
		{
			name:   "mutation",
			raw:    `{"type":"mutation","added":3}`,
			expect: session.Event{Type: session.EventMutation, Added: 3},
		},
		{
			name:   "input with null value",
			raw:    `{"type":"input","field":"f1","value":null}`,
			expect: session.Event{Type: session.EventInput, Field: "f1"},
		},
		{
			name:   "fill",
			raw:    `{"type":"fill","field":"f2"}`,
			expect: session.Event{Type: session.EventFill, Field: "f2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := decodeEvent(gson.NewFrom(tt.raw)); got != tt.expect {
				t.Fatalf("expected %+v, got %+v", tt.expect, got)
			}
		})
	}
}

func TestBridgeScript(t *testing.T) {
	t.Parallel()

	if !strings.HasPrefix(bridgeJS, "(() => {") {
		t.Fatalf("bridge must be a single expression so it can be evaluated directly")
	}
	for _, want := range []string{
		scanning.FieldIDAttr,
		scanning.FieldValueAttr,
		bindingName,
		"_valueTracker",
		"MutationObserver",
		"'change', onValue",
		string(session.StateReady),
		string(session.StateFilled),
		string(session.StateLoading),
		string(session.StateSuccess),
	} {
		if !strings.Contains(bridgeJS, want) {
			t.Fatalf("bridge script does not reference %q", want)
		}
	}
	for _, class := range strings.Split(page.OverlaySelector, ", ") {
		if !strings.Contains(bridgeJS, "'"+strings.TrimPrefix(class, ".")+"'") {
			t.Fatalf("bridge script does not create %s overlays", class)
		}
	}
}
