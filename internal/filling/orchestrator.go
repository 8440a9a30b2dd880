// Package filling answers a decorated question through a completion provider
// and writes the answer back into the page.
package filling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/ai"
	"github.com/spigell/apply-copilot/internal/jobinfo"
	"github.com/spigell/apply-copilot/internal/settings"
)

// MissingKeyNotice is shown to the user when a fill is attempted without a key.
const MissingKeyNotice = "Please configure your API key in settings."

// ErrMissingAPIKey is returned before any request is sent when no key is set.
var ErrMissingAPIKey = ai.ErrMissingAPIKey

// Committer writes a value into a page field so that framework-bound state
// observes the change.
type Committer interface {
	CommitValue(ctx context.Context, fieldID, value string) error
}

// SettingsLoader provides the current endpoint settings.
type SettingsLoader interface {
	Load() (settings.Settings, error)
}

// Config holds process-level fill options.
type Config struct {
	// FallbackAPIKey is used when the settings store has no key.
	FallbackAPIKey string
	// RequestTimeout bounds a single completion; zero leaves it to the transport.
	RequestTimeout time.Duration
}

// Target identifies the field being filled and the question it asks.
type Target struct {
	FieldID  string
	Question string
}

type Orchestrator struct {
	settings  SettingsLoader
	completer ai.Completer
	cfg       Config
	logger    *zap.Logger
}

func New(store SettingsLoader, completer ai.Completer, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{settings: store, completer: completer, cfg: cfg, logger: logger}
}

// Fill answers target's question and commits the cleaned answer. No retry is
// attempted; the caller reports errors to the user.
func (o *Orchestrator) Fill(ctx context.Context, target Target, info *jobinfo.Info, committer Committer) (string, error) {
	s, err := o.settings.Load()
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	apiKey := s.APIKey
	if apiKey == "" {
		apiKey = strings.TrimSpace(o.cfg.FallbackAPIKey)
	}
	if apiKey == "" {
		return "", ErrMissingAPIKey
	}

	prompt := BuildPrompt(Request{Question: target.Question, JobInfo: info, UserContext: s.UserContext})

	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}

	log := o.logger.With(zap.String("field", target.FieldID))
	log.Info("requesting answer",
		zap.String("question", target.Question),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	raw, err := o.completer.Complete(ctx, ai.Request{
		BaseURL:  s.AIBaseURL,
		Model:    s.AIModel,
		APIKey:   apiKey,
		Messages: []ai.Message{{Role: ai.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	answer := CleanAnswer(raw, log)

	if committer == nil {
		return answer, errors.New("no page to commit the answer to")
	}
	if err := committer.CommitValue(ctx, target.FieldID, answer); err != nil {
		return answer, fmt.Errorf("commit answer: %w", err)
	}

	log.Info("field filled", zap.Int("answer_length", utf8.RuneCountInString(answer)))
	return answer, nil
}

// Notice converts a fill error into the text shown to the user.
func Notice(err error) string {
	if errors.Is(err, ErrMissingAPIKey) {
		return MissingKeyNotice
	}
	return "Error: " + err.Error()
}
