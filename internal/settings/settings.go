// Package settings holds the typed, independently defaulted settings entries.
package settings

import (
	"strings"

	"github.com/hession/memochat/internal/errs"
	"github.com/hession/memochat/internal/event"
	"github.com/hession/memochat/internal/llm"
	"github.com/hession/memochat/internal/storage"
)

// Theme values
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Default values for entries not sourced from config
const (
	DefaultMaxContextMessages = 10
	DefaultAIName             = "AI"
	DefaultTheme              = ThemeLight
)

// Defaults are the values returned for entries never written
type Defaults struct {
	APIKeys             llm.Credentials
	SystemPrompt        string
	MemorySearchPhrases []string
}

// Store typed accessors over the storage adapter
type Store struct {
	svc      *storage.Service
	bus      *event.Bus
	defaults Defaults
}

// New creates a settings store. bus may be nil.
func New(svc *storage.Service, bus *event.Bus, defaults Defaults) *Store {
	return &Store{svc: svc, bus: bus, defaults: defaults}
}

// Defaults returns the configured defaults
func (s *Store) Defaults() Defaults {
	return s.defaults
}

// APIKeys returns the stored provider keys
func (s *Store) APIKeys() llm.Credentials {
	return storage.Get(s.svc, storage.KeyAPIKeys, s.defaults.APIKeys)
}

// SetAPIKeys stores the provider keys
func (s *Store) SetAPIKeys(keys llm.Credentials) bool {
	keys.OpenAI = strings.TrimSpace(keys.OpenAI)
	keys.DeepSeek = strings.TrimSpace(keys.DeepSeek)
	return s.svc.Set(storage.KeyAPIKeys, keys)
}

// SelectedModel returns the model id used for outbound requests
func (s *Store) SelectedModel() string {
	return storage.Get(s.svc, storage.KeySelectedModel, llm.DefaultModel)
}

// SetSelectedModel stores a catalog model id
func (s *Store) SetSelectedModel(id string) error {
	if _, ok := llm.LookupModel(id); !ok {
		return errs.New(errs.ValidationFailure, "settings.model", "unknown model: "+id)
	}
	if !s.svc.Set(storage.KeySelectedModel, id) {
		return errs.New(errs.StorageFailure, "settings.model", "model not saved")
	}
	return nil
}

// SystemPrompt returns the system prompt text
func (s *Store) SystemPrompt() string {
	return storage.Get(s.svc, storage.KeySystemPrompt, s.defaults.SystemPrompt)
}

// SetSystemPrompt stores the system prompt; an empty text restores the default
func (s *Store) SetSystemPrompt(text string) bool {
	if strings.TrimSpace(text) == "" {
		text = s.defaults.SystemPrompt
	}
	return s.svc.Set(storage.KeySystemPrompt, text)
}

// MaxContextMessages returns the context window size, never below 1
func (s *Store) MaxContextMessages() int {
	n := storage.Get(s.svc, storage.KeyMaxContextMessages, DefaultMaxContextMessages)
	if n < 1 {
		return 1
	}
	return n
}

// SetMaxContextMessages stores n, clamping values below 1 to 1
func (s *Store) SetMaxContextMessages(n int) bool {
	if n < 1 {
		n = 1
	}
	return s.svc.Set(storage.KeyMaxContextMessages, n)
}

// AIName returns the assistant display name
func (s *Store) AIName() string {
	return storage.Get(s.svc, storage.KeyAIName, DefaultAIName)
}

// SetAIName stores the assistant display name and notifies subscribers
func (s *Store) SetAIName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.New(errs.ValidationFailure, "settings.aiName", "assistant name cannot be empty")
	}
	saved := s.svc.Set(storage.KeyAIName, name)
	s.PublishAIName()
	if !saved {
		return errs.New(errs.StorageFailure, "settings.aiName", "assistant name not saved")
	}
	return nil
}

// PublishAIName notifies subscribers of the current assistant name
func (s *Store) PublishAIName() {
	s.bus.Publish(event.New(event.AINameChanged, map[string]interface{}{"aiName": s.AIName()}))
}

// MemorySearchPhrases returns the phrases shown before recall results
func (s *Store) MemorySearchPhrases() []string {
	phrases := storage.Get(s.svc, storage.KeyMemorySearchPhrases, s.defaults.MemorySearchPhrases)
	if len(phrases) == 0 {
		return s.defaults.MemorySearchPhrases
	}
	return phrases
}

// SetMemorySearchPhrases stores the non-empty phrases in order
func (s *Store) SetMemorySearchPhrases(phrases []string) bool {
	kept := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return s.svc.Set(storage.KeyMemorySearchPhrases, kept)
}

// Theme returns light or dark
func (s *Store) Theme() string {
	theme := storage.Get(s.svc, storage.KeyTheme, DefaultTheme)
	if !ValidTheme(theme) {
		return DefaultTheme
	}
	return theme
}

// SetTheme stores the theme and notifies subscribers
func (s *Store) SetTheme(theme string) error {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if !ValidTheme(theme) {
		return errs.New(errs.ValidationFailure, "settings.theme", "theme must be light or dark")
	}
	saved := s.svc.Set(storage.KeyTheme, theme)
	s.PublishTheme()
	if !saved {
		return errs.New(errs.StorageFailure, "settings.theme", "theme not saved")
	}
	return nil
}

// PublishTheme notifies subscribers of the current theme
func (s *Store) PublishTheme() {
	s.bus.Publish(event.New(event.ThemeChanged, map[string]interface{}{"theme": s.Theme()}))
}

// ValidTheme reports whether theme is light or dark
func ValidTheme(theme string) bool {
	return theme == ThemeLight || theme == ThemeDark
}
