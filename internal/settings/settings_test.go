package settings

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/hession/memochat/internal/errs"
	"github.com/hession/memochat/internal/event"
	"github.com/hession/memochat/internal/llm"
	"github.com/hession/memochat/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *event.Bus) {
	t.Helper()
	local, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { local.Close() })

	bus := event.NewBus()
	return New(storage.NewLocal(local), bus, Defaults{
		APIKeys:             llm.Credentials{OpenAI: "sk-default"},
		SystemPrompt:        "default prompt",
		MemorySearchPhrases: []string{"buscando..."},
	}), bus
}

func TestStore_Defaults(t *testing.T) {
	s, _ := newTestStore(t)

	if s.APIKeys().OpenAI != "sk-default" || s.APIKeys().DeepSeek != "" {
		t.Errorf("Unexpected default keys: %+v", s.APIKeys())
	}
	if s.SelectedModel() != llm.DefaultModel {
		t.Errorf("Expected default model %s, got %s", llm.DefaultModel, s.SelectedModel())
	}
	if s.SystemPrompt() != "default prompt" {
		t.Errorf("Expected default prompt, got %q", s.SystemPrompt())
	}
	if s.MaxContextMessages() != 10 {
		t.Errorf("Expected 10, got %d", s.MaxContextMessages())
	}
	if s.AIName() != "AI" {
		t.Errorf("Expected AI, got %q", s.AIName())
	}
	if s.Theme() != ThemeLight {
		t.Errorf("Expected light, got %q", s.Theme())
	}
	if !reflect.DeepEqual(s.MemorySearchPhrases(), []string{"buscando..."}) {
		t.Errorf("Unexpected phrases: %v", s.MemorySearchPhrases())
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	s.SetAPIKeys(llm.Credentials{OpenAI: " sk-o ", DeepSeek: "sk-d"})
	if got := s.APIKeys(); got.OpenAI != "sk-o" || got.DeepSeek != "sk-d" {
		t.Errorf("Unexpected keys: %+v", got)
	}

	if err := s.SetSelectedModel("deepseek-chat"); err != nil {
		t.Fatalf("SetSelectedModel failed: %v", err)
	}
	if s.SelectedModel() != "deepseek-chat" {
		t.Errorf("Expected deepseek-chat, got %s", s.SelectedModel())
	}

	s.SetSystemPrompt("Eres un pirata")
	if s.SystemPrompt() != "Eres un pirata" {
		t.Errorf("Unexpected prompt %q", s.SystemPrompt())
	}
	s.SetSystemPrompt("  ")
	if s.SystemPrompt() != "default prompt" {
		t.Errorf("Expected blank prompt to restore default, got %q", s.SystemPrompt())
	}

	s.SetMemorySearchPhrases([]string{"uno", " ", "dos"})
	if !reflect.DeepEqual(s.MemorySearchPhrases(), []string{"uno", "dos"}) {
		t.Errorf("Unexpected phrases: %v", s.MemorySearchPhrases())
	}
}

func TestStore_MaxContextMessagesClamp(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{5, 5},
		{1, 1},
		{0, 1},
		{-3, 1},
	}
	s, _ := newTestStore(t)
	for _, tt := range tests {
		s.SetMaxContextMessages(tt.in)
		if got := s.MaxContextMessages(); got != tt.want {
			t.Errorf("SetMaxContextMessages(%d): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestStore_SelectedModelValidation(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.SetSelectedModel("gpt-9")
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("Expected ValidationFailure, got %v", err)
	}
	if s.SelectedModel() != llm.DefaultModel {
		t.Error("Rejected model must not be stored")
	}
}

func TestStore_ThemePublishes(t *testing.T) {
	s, bus := newTestStore(t)
	var themes []string
	bus.Subscribe(event.ThemeChanged, func(ev event.Event) {
		themes = append(themes, ev.String("theme"))
	})

	if err := s.SetTheme("Dark"); err != nil {
		t.Fatalf("SetTheme failed: %v", err)
	}
	if s.Theme() != ThemeDark {
		t.Errorf("Expected dark, got %s", s.Theme())
	}

	if err := s.SetTheme("sepia"); !errs.IsKind(err, errs.ValidationFailure) {
		t.Errorf("Expected ValidationFailure, got %v", err)
	}
	if s.Theme() != ThemeDark {
		t.Error("Rejected theme must not be stored")
	}

	if !reflect.DeepEqual(themes, []string{"dark"}) {
		t.Errorf("Expected one dark notification, got %v", themes)
	}
}

func TestStore_AINamePublishes(t *testing.T) {
	s, bus := newTestStore(t)
	var names []string
	bus.Subscribe(event.AINameChanged, func(ev event.Event) {
		names = append(names, ev.String("aiName"))
	})

	if err := s.SetAIName(" Nova "); err != nil {
		t.Fatalf("SetAIName failed: %v", err)
	}
	if err := s.SetAIName(""); err == nil {
		t.Error("Expected empty name to be rejected")
	}

	if s.AIName() != "Nova" {
		t.Errorf("Expected Nova, got %q", s.AIName())
	}
	if !reflect.DeepEqual(names, []string{"Nova"}) {
		t.Errorf("Expected one notification, got %v", names)
	}
}

func TestStore_NilBus(t *testing.T) {
	local, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer local.Close()

	s := New(storage.NewLocal(local), nil, Defaults{})
	if err := s.SetTheme(ThemeDark); err != nil {
		t.Errorf("SetTheme without bus failed: %v", err)
	}
}

type downBridge struct{}

func (downBridge) Invoke(context.Context, string, ...any) (json.RawMessage, error) {
	return nil, errors.New("bridge down")
}

func TestStore_UnsavedWritesReportStorageFailure(t *testing.T) {
	local, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer local.Close()

	bus := event.NewBus()
	var names []string
	bus.Subscribe(event.AINameChanged, func(ev event.Event) { names = append(names, ev.String("aiName")) })
	s := New(storage.NewBridged(local, downBridge{}, 1), bus, Defaults{})

	if err := s.SetAIName("Nova"); !errs.IsKind(err, errs.StorageFailure) {
		t.Errorf("Expected StorageFailure from SetAIName, got %v", err)
	}
	if err := s.SetTheme(ThemeDark); !errs.IsKind(err, errs.StorageFailure) {
		t.Errorf("Expected StorageFailure from SetTheme, got %v", err)
	}

	// the cache still serves this session
	if s.AIName() != "Nova" || s.Theme() != ThemeDark {
		t.Errorf("Expected cached values, got %q / %q", s.AIName(), s.Theme())
	}
	if len(names) != 1 || names[0] != "Nova" {
		t.Errorf("Expected one notification, got %v", names)
	}
}
