package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hession/memochat/internal/config"
	"github.com/hession/memochat/internal/conversation"
	"github.com/hession/memochat/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.LocalPath = filepath.Join(dir, "local.db")
	cfg.Storage.BridgeDir = filepath.Join(dir, "data")
	cfg.Secrets.Set("OPENAI_API_KEY", "sk-from-secrets")
	return cfg
}

func TestOpen_WiresStores(t *testing.T) {
	cfg := testConfig(t)
	a, err := Open(context.Background(), cfg, config.DefaultPromptConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	if a.Storage.Kind() != storage.BackendBridge {
		t.Errorf("Expected bridge backend in auto mode, got %s", a.Storage.Kind())
	}
	if a.Settings.APIKeys().OpenAI != "sk-from-secrets" {
		t.Errorf("Expected key from secrets as default, got %q", a.Settings.APIKeys().OpenAI)
	}
	if a.Settings.SystemPrompt() != a.Prompts.System {
		t.Errorf("Expected default system prompt from prompt pack")
	}
}

func TestOpen_HydratesFromBridge(t *testing.T) {
	cfg := testConfig(t)

	first, err := Open(context.Background(), cfg, config.DefaultPromptConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	first.Settings.SetAIName("Nova")
	first.History.Add(conversation.SenderUser, "hola")
	first.Close()

	// a fresh cache only has what the bridge holds
	cfg.Storage.LocalPath = filepath.Join(t.TempDir(), "fresh.db")
	second, err := Open(context.Background(), cfg, config.DefaultPromptConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer second.Close()

	if second.Settings.AIName() != "Nova" {
		t.Errorf("Expected hydrated name, got %q", second.Settings.AIName())
	}
	if second.History.Len() != 1 {
		t.Errorf("Expected hydrated history, got %d messages", second.History.Len())
	}
}

func TestOpen_LocalMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Mode = config.StorageModeLocal
	cfg.Storage.Driver = config.DriverBadger
	cfg.Storage.LocalPath = filepath.Join(t.TempDir(), "badger")

	a, err := Open(context.Background(), cfg, config.DefaultPromptConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	if a.Storage.Kind() != storage.BackendLocal {
		t.Errorf("Expected local backend, got %s", a.Storage.Kind())
	}
}
