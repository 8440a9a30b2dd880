// Package settings is the process-wide key-value store behind the copilot's
// user preferences, credentials and the last extracted job posting.
package settings

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/apply-copilot/internal/jobinfo"
)

// Store keys.
const (
	KeyAutoDetect     = "autoDetect"
	KeyShowButtons    = "showButtons"
	KeyAIBaseURL      = "aiBaseURL"
	KeyAIModel        = "aiModel"
	KeyAPIKey         = "apiKey"
	KeyUserContext    = "aiApply_userContext"
	KeyCurrentJobInfo = "currentJobInfo"
)

const (
	DefaultAIBaseURL = "https://api.openai.com/v1"
	DefaultAIModel   = "gpt-4o-mini"
)

var knownKeys = map[string]struct{}{
	KeyAutoDetect:     {},
	KeyShowButtons:    {},
	KeyAIBaseURL:      {},
	KeyAIModel:        {},
	KeyAPIKey:         {},
	KeyUserContext:    {},
	KeyCurrentJobInfo: {},
}

// Settings is the typed view of the store with defaults applied.
type Settings struct {
	AutoDetect     bool          `mapstructure:"autoDetect" json:"autoDetect"`
	ShowButtons    bool          `mapstructure:"showButtons" json:"showButtons"`
	AIBaseURL      string        `mapstructure:"aiBaseURL" json:"aiBaseURL"`
	AIModel        string        `mapstructure:"aiModel" json:"aiModel"`
	APIKey         string        `mapstructure:"apiKey" json:"apiKey,omitempty"`
	UserContext    string        `mapstructure:"aiApply_userContext" json:"aiApply_userContext,omitempty"`
	CurrentJobInfo *jobinfo.Info `mapstructure:"currentJobInfo" json:"currentJobInfo,omitempty"`
}

func defaults() map[string]any {
	return map[string]any{
		KeyAutoDetect:  true,
		KeyShowButtons: true,
		KeyAIBaseURL:   DefaultAIBaseURL,
		KeyAIModel:     DefaultAIModel,
	}
}

// IsKnownKey reports whether key is part of the store schema.
func IsKnownKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}

// Masked returns a copy safe to display, with the API key reduced to its
// last four characters.
func (s Settings) Masked() Settings {
	s.APIKey = MaskKey(s.APIKey)
	return s
}

// MaskKey hides all but the last four characters of key.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	runes := []rune(key)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}

func decode(values map[string]any) (Settings, error) {
	merged := defaults()
	for k, v := range values {
		if v == nil {
			continue
		}
		merged[k] = v
	}

	// Empty strings fall back to defaults like the popup form does.
	for _, key := range []string{KeyAIBaseURL, KeyAIModel} {
		if s, ok := merged[key].(string); ok && strings.TrimSpace(s) == "" {
			merged[key] = defaults()[key]
		}
	}

	var out Settings
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return Settings{}, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	out.AIBaseURL = strings.TrimSpace(out.AIBaseURL)
	out.AIModel = strings.TrimSpace(out.AIModel)
	out.APIKey = strings.TrimSpace(out.APIKey)
	if out.CurrentJobInfo != nil {
		info := out.CurrentJobInfo.Normalize()
		out.CurrentJobInfo = &info
		if info.IsEmpty() {
			out.CurrentJobInfo = nil
		}
	}

	return out, nil
}

// jobInfoValue converts info into the plain map persisted under currentJobInfo.
func jobInfoValue(info jobinfo.Info) map[string]any {
	info = info.Normalize()
	out := map[string]any{}
	if info.Title != "" {
		out["title"] = info.Title
	}
	if info.Company != "" {
		out["company"] = info.Company
	}
	if info.Description != "" {
		out["description"] = info.Description
	}
	return out
}
