package cmd

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/ai"
	"github.com/spigell/apply-copilot/internal/ai/gemini"
	"github.com/spigell/apply-copilot/internal/relay"
	"github.com/spigell/apply-copilot/internal/secrets"
	"github.com/spigell/apply-copilot/internal/settings"
)

const (
	providerRelay  = "openai-compatible"
	providerGemini = "gemini"
)

func openStore(config *Config, logger *zap.Logger) (*settings.Store, error) {
	path := strings.TrimSpace(config.SettingsFile)
	if path == "" {
		path = defaultSettingsFile()
	}
	store, err := settings.Open(path, logger.Named("settings"))
	if err != nil {
		return nil, fmt.Errorf("opening settings store: %w", err)
	}
	logger.Debug("settings store opened", zap.String("path", store.Path()))
	return store, nil
}

func newProvider(config *AIConfig, logger *zap.Logger) (ai.Provider, error) {
	if config == nil {
		config = &AIConfig{}
	}

	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "", providerRelay:
		return relay.New(logger.Named("relay"), relay.Config{
			Timeout:      config.RequestTimeout,
			MaxLogLength: config.MaxLogLength,
		}), nil
	case providerGemini:
		model := ""
		if config.Gemini != nil {
			model = config.Gemini.Model
		}
		return gemini.NewGenerator(logger.Named("gemini"), model, config.MaxLogLength), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", config.Provider)
	}
}

// fallbackAPIKey reads the optional key file used when the settings store has
// no key.
func fallbackAPIKey(config *AIConfig) (string, error) {
	if config == nil {
		return "", nil
	}
	return secrets.LoadOptional(secrets.Source{
		Name: "api key",
		Env:  envPrefix + "_API_KEY",
		File: config.APIKeyFile,
	})
}
