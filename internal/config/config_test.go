package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Providers.OpenAI.BaseURL != "https://api.openai.com" {
		t.Errorf("Expected OpenAI BaseURL to be https://api.openai.com, got %s", cfg.Providers.OpenAI.BaseURL)
	}
	if cfg.Providers.DeepSeek.BaseURL != "https://api.deepseek.com" {
		t.Errorf("Expected DeepSeek BaseURL to be https://api.deepseek.com, got %s", cfg.Providers.DeepSeek.BaseURL)
	}
	if cfg.Storage.Mode != StorageModeAuto {
		t.Errorf("Expected storage mode auto, got %s", cfg.Storage.Mode)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("Expected storage driver sqlite, got %s", cfg.Storage.Driver)
	}
	if len(cfg.Knowledge.AcceptedTypes) != 4 {
		t.Errorf("Expected 4 accepted types, got %v", cfg.Knowledge.AcceptedTypes)
	}
	if cfg.MaxFileSizeBytes() != 10*1024*1024 {
		t.Errorf("Expected 10MB limit, got %d", cfg.MaxFileSizeBytes())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty OpenAI BaseURL",
			mutate:  func(c *Config) { c.Providers.OpenAI.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "unknown storage mode",
			mutate:  func(c *Config) { c.Storage.Mode = "cloud" },
			wantErr: true,
		},
		{
			name:    "badger driver",
			mutate:  func(c *Config) { c.Storage.Driver = DriverBadger },
			wantErr: false,
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "leveldb" },
			wantErr: true,
		},
		{
			name:    "accepted type without dot",
			mutate:  func(c *Config) { c.Knowledge.AcceptedTypes = []string{"txt"} },
			wantErr: true,
		},
		{
			name:    "zero max file size",
			mutate:  func(c *Config) { c.Knowledge.MaxFileSizeMB = 0 },
			wantErr: true,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Providers.TimeoutSeconds = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "memochat-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	SetConfigDir(filepath.Join(tmpDir, "config"))

	cfg := DefaultConfig()
	cfg.Storage.Driver = DriverBadger
	cfg.Knowledge.MaxFiles = 5

	if err := Save(cfg); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	configPath := filepath.Join(tmpDir, "config", "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file not created")
	}

	loadedCfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedCfg.Storage.Driver != DriverBadger {
		t.Errorf("Driver mismatch: expected badger, got %s", loadedCfg.Storage.Driver)
	}
	if loadedCfg.Knowledge.MaxFiles != 5 {
		t.Errorf("MaxFiles mismatch: expected 5, got %d", loadedCfg.Knowledge.MaxFiles)
	}
}

func TestLoad_SecretsNotWrittenToConfig(t *testing.T) {
	tmpDir := t.TempDir()
	SetConfigDir(tmpDir)

	secrets := "# keys\nOPENAI_API_KEY=sk-openai-123456\nDEEPSEEK_API_KEY=\"sk-deep-abcdef\"\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".secrets"), []byte(secrets), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Secrets.GetOpenAIAPIKey() != "sk-openai-123456" {
		t.Errorf("Unexpected OpenAI key: %q", cfg.Secrets.GetOpenAIAPIKey())
	}
	if cfg.Secrets.GetDeepSeekAPIKey() != "sk-deep-abcdef" {
		t.Errorf("Quotes should be stripped, got %q", cfg.Secrets.GetDeepSeekAPIKey())
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-openai") {
		t.Error("config.yaml must not contain API keys")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MEMOCHAT_STORAGE_MODE", "bridge")
	t.Setenv("MEMOCHAT_STORAGE_BRIDGE_DIR", "/tmp/bridge")
	t.Setenv("MEMOCHAT_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	applyEnv(cfg, envSource())

	if cfg.Storage.Mode != StorageModeBridge {
		t.Errorf("Expected bridge mode from env, got %s", cfg.Storage.Mode)
	}
	if cfg.BridgeDataDir() != "/tmp/bridge" {
		t.Errorf("Expected bridge dir from env, got %s", cfg.BridgeDataDir())
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}

	// unset variables leave defaults alone
	untouched := DefaultConfig()
	applyEnv(untouched, viper.New())
	if untouched.Storage.Driver != DriverSQLite {
		t.Errorf("Driver should stay sqlite, got %s", untouched.Storage.Driver)
	}
}

func TestBridgeDataDir_Default(t *testing.T) {
	SetConfigDir("/tmp/memochat-cfg")
	cfg := DefaultConfig()

	if got := cfg.BridgeDataDir(); got != filepath.Join("/tmp/memochat-cfg", "data") {
		t.Errorf("Unexpected bridge dir: %s", got)
	}
}

func TestString_RedactsKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Secrets.Set("OPENAI_API_KEY", "sk-1234567890abcdef")

	out := cfg.String()
	if strings.Contains(out, "sk-1234567890abcdef") {
		t.Error("String() must not print the full key")
	}
	if !strings.Contains(out, "sk-12345...") {
		t.Error("String() should print the key prefix")
	}
	if !strings.Contains(out, "(not configured)") {
		t.Error("Missing DeepSeek key should be reported as not configured")
	}
}

func TestPromptConfig_Fallbacks(t *testing.T) {
	p := DefaultPromptConfig()

	es := p.For(p.Language)
	if es.KnowledgeHeader != "Información de referencia:\n\n" {
		t.Errorf("Unexpected header: %q", es.KnowledgeHeader)
	}
	if len(es.RecallTriggers) != 4 {
		t.Errorf("Expected 4 triggers, got %d", len(es.RecallTriggers))
	}

	if got := p.For("fr").UserLabel; got != "Tú" {
		t.Errorf("Unknown language should fall back to es, got %q", got)
	}

	// partial pack gets missing entries from defaults
	p.Prompts["en"] = LanguagePrompts{System: "Be brief."}
	en := p.For("en")
	if en.System != "Be brief." {
		t.Errorf("Override lost: %q", en.System)
	}
	if en.UserLabel != "You" || len(en.MemorySearchPhrases) != 4 {
		t.Errorf("Missing fields not merged: %+v", en)
	}
}
