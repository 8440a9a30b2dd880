package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/ai"
	"github.com/spigell/apply-copilot/internal/settings"
)

const (
	PromptDone              = "done"
	summaryDescriptionLimit = 800
	connectionTestTimeout   = 30 * time.Second
)

// editableKeys are the settings a user may change from the CLI, in menu order.
var editableKeys = []string{
	settings.KeyAIBaseURL,
	settings.KeyAIModel,
	settings.KeyAPIKey,
	settings.KeyUserContext,
	settings.KeyAutoDetect,
	settings.KeyShowButtons,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and edit the persisted copilot settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print settings with the API key masked, and the last extracted job",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		withStore(func(store *settings.Store, logger *zap.Logger) error {
			return showSettings(store)
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a single setting; an empty value resets it to the default",
	Args:  cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		withStore(func(store *settings.Store, logger *zap.Logger) error {
			value, err := parseSettingValue(args[0], args[1])
			if err != nil {
				return err
			}
			if err := store.Set(map[string]any{args[0]: value}); err != nil {
				return err
			}
			logger.Info("setting saved", zap.String("key", args[0]), zap.String("path", store.Path()))
			return nil
		})
	},
}

var settingsEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit settings interactively",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		withStore(editSettings)
	},
}

var settingsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a tiny request to the configured completion endpoint",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		withStore(testConnection)
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsEditCmd, settingsTestCmd)
}

func withStore(fn func(store *settings.Store, logger *zap.Logger) error) {
	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		config = &Config{}
	}

	store, err := openStore(config, logger)
	if err != nil {
		logger.Fatal("opening settings", zap.Error(err))
	}

	if err := fn(store, logger); err != nil {
		logger.Fatal("settings", zap.Error(err))
	}
}

func showSettings(store *settings.Store) error {
	current, err := store.Load()
	if err != nil {
		return err
	}

	info := current.CurrentJobInfo
	current.CurrentJobInfo = nil

	pretty, err := json.MarshalIndent(current.Masked(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))

	if info != nil {
		fmt.Println()
		fmt.Println(info.Summary(summaryDescriptionLimit))
	}
	return nil
}

// parseSettingValue converts CLI text into the stored value of key. Empty
// text yields nil, which removes the key.
func parseSettingValue(key, raw string) (any, error) {
	if !settings.IsKnownKey(key) {
		return nil, fmt.Errorf("%w: %s", settings.ErrUnknownKey, key)
	}
	if key == settings.KeyCurrentJobInfo {
		return nil, fmt.Errorf("%s is written by the page session only", key)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	switch key {
	case settings.KeyAutoDetect, settings.KeyShowButtons:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false, got %q", key, raw)
		}
		return v, nil
	default:
		return raw, nil
	}
}

func editSettings(store *settings.Store, logger *zap.Logger) error {
	for {
		current, err := store.Load()
		if err != nil {
			return err
		}
		masked := current.Masked()

		items := make([]string, 0, len(editableKeys)+1)
		for _, key := range editableKeys {
			items = append(items, fmt.Sprintf("%s = %s", key, displayValue(masked, key)))
		}

		keyPrompt := promptui.Select{
			Label: "Choose a setting and press ENTER",
			Items: append(items, PromptDone),
			Size:  len(items) + 1,
		}
		idx, _, err := keyPrompt.Run()
		if err != nil {
			return err
		}
		if idx >= len(editableKeys) {
			return nil
		}

		key := editableKeys[idx]
		valuePrompt := promptui.Prompt{
			Label: key,
			Validate: func(input string) error {
				_, err := parseSettingValue(key, input)
				return err
			},
		}
		if key == settings.KeyAPIKey {
			valuePrompt.Mask = '*'
		} else {
			valuePrompt.Default = displayValue(current, key)
			valuePrompt.AllowEdit = true
		}

		input, err := valuePrompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
				continue
			}
			return err
		}

		value, err := parseSettingValue(key, input)
		if err != nil {
			return err
		}
		if err := store.Set(map[string]any{key: value}); err != nil {
			return err
		}
		logger.Info("setting saved", zap.String("key", key))
	}
}

func displayValue(s settings.Settings, key string) string {
	switch key {
	case settings.KeyAIBaseURL:
		return s.AIBaseURL
	case settings.KeyAIModel:
		return s.AIModel
	case settings.KeyAPIKey:
		return s.APIKey
	case settings.KeyUserContext:
		return s.UserContext
	case settings.KeyAutoDetect:
		return strconv.FormatBool(s.AutoDetect)
	case settings.KeyShowButtons:
		return strconv.FormatBool(s.ShowButtons)
	default:
		return ""
	}
}

func testConnection(store *settings.Store, logger *zap.Logger) error {
	config, err := getConfig()
	if err != nil {
		return err
	}
	if config == nil {
		config = &Config{}
	}

	provider, err := newProvider(config.AI, logger)
	if err != nil {
		return err
	}

	current, err := store.Load()
	if err != nil {
		return err
	}
	key := current.APIKey
	if key == "" {
		if key, err = fallbackAPIKey(config.AI); err != nil {
			return err
		}
	}
	if key == "" {
		return ai.ErrMissingAPIKey
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTestTimeout)
	defer cancel()

	if err := provider.Ping(ctx, ai.Request{BaseURL: current.AIBaseURL, Model: current.AIModel, APIKey: key}); err != nil {
		fmt.Fprintf(os.Stderr, "Connection failed: %s\n", err)
		return err
	}
	fmt.Println("Connection successful!")
	return nil
}
