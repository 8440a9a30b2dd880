// Package gemini answers application questions through the Google GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/apply-copilot/internal/ai"
	"github.com/spigell/apply-copilot/internal/logger"
	"github.com/spigell/apply-copilot/internal/utils"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.5-flash"

	defaultMaxLogLength = 200
	temperature         = 0.7
	pingPrompt          = `Say "ok"`
)

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type modelsFactory func(ctx context.Context, apiKey string) (modelsAPI, error)

// Generator implements ai.Provider on top of genai. Clients are created
// lazily per API key because the key lives in the settings store and may
// change at runtime.
type Generator struct {
	modelName string
	logger    *zap.Logger
	maxLogLen int
	newModels modelsFactory

	mu      sync.Mutex
	clients map[string]modelsAPI
}

// NewGenerator creates a Generator. An empty model follows the request's
// model when it names a Gemini model and falls back to the default otherwise.
func NewGenerator(log *zap.Logger, model string, maxLogLength int) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Generator{
		modelName: strings.TrimSpace(model),
		logger:    log,
		maxLogLen: maxLogLength,
		newModels: newGenAIModels,
		clients:   make(map[string]modelsAPI),
	}
}

func newGenAIModels(ctx context.Context, apiKey string) (modelsAPI, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client.Models, nil
}

func (g *Generator) Name() string { return providerName }

// Model resolves the model used for req: the configured model, else the
// request model when it names a Gemini model, else the default. The request
// model comes from the shared aiModel setting, which usually names a relay model.
func (g *Generator) Model(req ai.Request) string {
	if g.modelName != "" {
		return g.modelName
	}
	if m := strings.TrimSpace(req.Model); strings.HasPrefix(strings.ToLower(m), "gemini") {
		return m
	}
	return defaultModel
}

// Complete sends the chat to Gemini and returns the joined text parts.
func (g *Generator) Complete(ctx context.Context, req ai.Request) (string, error) {
	models, err := g.models(ctx, req.APIKey)
	if err != nil {
		return "", err
	}

	model := g.Model(req)
	contents, config := toContents(req.Messages)
	if len(contents) == 0 {
		return "", errors.New("prompt must not be empty")
	}
	config.Temperature = genai.Ptr[float32](temperature)

	log := logger.WithCommonFields(g.logger, providerName, model)
	log.Debug("gemini generate content request",
		zap.Int("contents", len(contents)),
		zap.String("prompt_preview", utils.TruncateForLog(contents[len(contents)-1].Parts[0].Text, g.maxLogLen)),
	)

	resp, err := models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := joinText(resp)
	log.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, g.maxLogLen)),
	)

	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

// Ping runs a one-line generation to validate the key and model.
func (g *Generator) Ping(ctx context.Context, req ai.Request) error {
	req.Messages = []ai.Message{{Role: ai.RoleUser, Content: pingPrompt}}
	if _, err := g.Complete(ctx, req); err != nil {
		return err
	}
	g.logger.Info("connection test passed", logger.CommonFields(providerName, g.Model(req))...)
	return nil
}

func (g *Generator) models(ctx context.Context, apiKey string) (modelsAPI, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if m, ok := g.clients[apiKey]; ok {
		return m, nil
	}

	m, err := g.newModels(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	g.clients[apiKey] = m
	return m, nil
}

func toContents(messages []ai.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	contents := make([]*genai.Content, 0, len(messages))

	var system []string
	for _, msg := range messages {
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			continue
		}
		switch msg.Role {
		case ai.RoleSystem:
			system = append(system, text)
		case ai.RoleAssistant:
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}})
		}
	}

	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}

	return contents, config
}

func joinText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}
