// Package messaging carries notifications and requests between the control
// surfaces (CLI, control API) and the running page session.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// Actions understood by the page session.
const (
	ActionShowButtons    = "showButtons"
	ActionHideButtons    = "hideButtons"
	ActionRefresh        = "refresh"
	ActionRescan         = "rescan"
	ActionUpdateSettings = "updateSettings"
	ActionGetJobInfo     = "getJobInfo"
	ActionSaveJobInfo    = "SAVE_JOB_INFO"
)

// ErrUnknownAction is returned for messages no handler is registered for.
var ErrUnknownAction = errors.New("unknown action")

// Message is a single notification or request. Payload holds action-specific
// fields such as {"showButtons": false} or {"jobInfo": {...}}.
type Message struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Response is the reply to a Message. Notifications reply with Success only.
type Response struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Handler processes one action.
type Handler func(ctx context.Context, msg Message) (Response, error)

// Router dispatches messages to handlers by action name.
type Router struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{logger: logger, handlers: make(map[string]Handler)}
}

// Handle registers h for action, replacing any previous handler.
func (r *Router) Handle(action string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = h
}

// Actions lists the registered actions in sorted order.
func (r *Router) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for action := range r.handlers {
		out = append(out, action)
	}
	sort.Strings(out)
	return out
}

// Dispatch routes msg to its handler. Handler errors are reflected in the
// response as well as returned.
func (r *Router) Dispatch(ctx context.Context, msg Message) (Response, error) {
	r.mu.RLock()
	h, ok := r.handlers[msg.Action]
	r.mu.RUnlock()

	if !ok {
		err := fmt.Errorf("%w: %q (supported: %s)", ErrUnknownAction, msg.Action, strings.Join(r.Actions(), ", "))
		return Response{Success: false, Error: err.Error()}, err
	}

	r.logger.Debug("dispatch message", zap.String("action", msg.Action))

	resp, err := h(ctx, msg)
	if err != nil {
		r.logger.Warn("message handler failed", zap.String("action", msg.Action), zap.Error(err))
		return Response{Success: false, Error: err.Error()}, err
	}
	resp.Success = true
	return resp, nil
}

// Bool reads a boolean payload field.
func (m Message) Bool(key string) (value, ok bool) {
	v, present := m.Payload[key]
	if !present {
		return false, false
	}
	b, isBool := v.(bool)
	return b, isBool
}

// Decode converts the payload field key into out. The value may be a typed Go
// struct posted by the session or a generic map decoded from a request body.
func (m Message) Decode(key string, out any) error {
	v, ok := m.Payload[key]
	if !ok {
		return fmt.Errorf("payload field %q is missing", key)
	}
	if err := mapstructure.Decode(v, out); err != nil {
		return fmt.Errorf("decode payload field %q: %w", key, err)
	}
	return nil
}
