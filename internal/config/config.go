// Package config loads the persisted settings: credential, model choice,
// prompt template, and multi-page separator options. Settings are read as an
// immutable snapshot when a batch is built; mid-session edits apply to the
// next extraction, not retroactively.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPrompt is the base transcription instruction sent with every batch.
const DefaultPrompt = `Transcribe the handwritten text in this image exactly as written, preserving:
- Line breaks and paragraph structure
- Capitalization and punctuation
- Crossed-out words (render them as ~~strikethrough~~)

Do not add any interpretation, commentary, or explanations.
If a word is illegible, transcribe what you can see and mark it [?].
Provide ONLY the transcribed text.`

const (
	defaultProvider = "gemini"
	defaultModel    = "gemini-2.0-flash"
	defaultOllama   = "llama3.2-vision"
)

// Settings is the configuration snapshot consumed at batch-build time.
type Settings struct {
	Provider      string  `yaml:"provider"`
	APIKey        string  `yaml:"-"`
	Model         string  `yaml:"model"`
	Prompt        string  `yaml:"prompt"`
	PageSeparator string  `yaml:"page_separator"`
	PageNumbers   bool    `yaml:"page_numbers"`
	Temperature   float64 `yaml:"temperature"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Provider:      defaultProvider,
		Model:         defaultModel,
		Prompt:        DefaultPrompt,
		PageSeparator: "---",
		PageNumbers:   false,
		Temperature:   0.1,
	}
}

// Load builds settings from defaults, an optional YAML file, and environment
// overrides, in that order. An empty path skips the file.
func Load(path string) (Settings, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("failed to read settings file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("failed to parse settings file: %w", err)
		}
	}

	if v := os.Getenv("HANDSCRIBE_PROVIDER"); v != "" {
		s.Provider = v
	}
	if v := os.Getenv("HANDSCRIBE_MODEL"); v != "" {
		s.Model = v
	}
	if v := os.Getenv("HANDSCRIBE_PROMPT"); v != "" {
		s.Prompt = v
	}
	s.APIKey = os.Getenv("GEMINI_API_KEY")

	if s.Provider == "ollama" && s.Model == defaultModel {
		s.Model = envOr("OLLAMA_MODEL", defaultOllama)
	}

	return s, nil
}

// MissingCredential reports whether the configured provider needs an API key
// that is not set. Local providers need none.
func (s Settings) MissingCredential() bool {
	return s.Provider != "ollama" && s.APIKey == ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
