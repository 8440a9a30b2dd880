// Package ai defines the contract between the fill flow and chat-completion
// providers.
package ai

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrMissingAPIKey is returned when a request is attempted without credentials.
var ErrMissingAPIKey = errors.New("API key is not configured")

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries everything a provider needs for one completion.
type Request struct {
	BaseURL  string
	Model    string
	APIKey   string
	Messages []Message
}

// Completer turns a chat request into a single text answer.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Pinger checks that the endpoint and credentials in req are usable.
type Pinger interface {
	Ping(ctx context.Context, req Request) error
}

// Provider is a completion backend that also supports connection tests.
type Provider interface {
	Completer
	Pinger
	Name() string
}
