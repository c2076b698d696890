package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	// configDir can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ~/.memochat
func GetConfigDir() string {
	if !configDirInit {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configDir = filepath.Join(homeDir, ".memochat")
		}
		configDirInit = true
	}
	return configDir
}

// Storage modes
const (
	StorageModeAuto   = "auto"
	StorageModeLocal  = "local"
	StorageModeBridge = "bridge"
)

// Local store drivers
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Config application configuration structure
type Config struct {
	Language  string          `yaml:"language"`
	Providers ProvidersConfig `yaml:"providers"`
	Storage   StorageConfig   `yaml:"storage"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Log       LogConfig       `yaml:"log"`

	// API keys are never written to config.yaml; they come from .secrets
	Secrets *Secrets `yaml:"-"`
}

// ProvidersConfig model provider endpoints
type ProvidersConfig struct {
	OpenAI         ProviderConfig `yaml:"openai"`
	DeepSeek       ProviderConfig `yaml:"deepseek"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
}

// ProviderConfig single provider endpoint
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
}

// StorageConfig persistence backend configuration
type StorageConfig struct {
	Mode           string `yaml:"mode"`
	Driver         string `yaml:"driver"`
	LocalPath      string `yaml:"local_path"`
	BridgeDir      string `yaml:"bridge_dir"`
	Portable       bool   `yaml:"portable"`
	HydrateWorkers int    `yaml:"hydrate_workers"`
}

// KnowledgeConfig upload constraints
type KnowledgeConfig struct {
	AcceptedTypes []string `yaml:"accepted_types"`
	MaxFileSizeMB int      `yaml:"max_file_size_mb"`
	MaxFiles      int      `yaml:"max_files"`
}

// LogConfig logger configuration
type LogConfig struct {
	Level   string `yaml:"level"`
	MaxDays int    `yaml:"max_days"`
	Console bool   `yaml:"console"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	dir := GetConfigDir()
	return &Config{
		Language: "es",
		Providers: ProvidersConfig{
			OpenAI:         ProviderConfig{BaseURL: "https://api.openai.com"},
			DeepSeek:       ProviderConfig{BaseURL: "https://api.deepseek.com"},
			TimeoutSeconds: 120,
		},
		Storage: StorageConfig{
			Mode:           StorageModeAuto,
			Driver:         DriverSQLite,
			LocalPath:      filepath.Join(dir, "local.db"),
			BridgeDir:      "",
			Portable:       false,
			HydrateWorkers: 4,
		},
		Knowledge: KnowledgeConfig{
			AcceptedTypes: []string{".txt", ".md", ".csv", ".json"},
			MaxFileSizeMB: 10,
			MaxFiles:      20,
		},
		Log: LogConfig{
			Level:   "info",
			MaxDays: 7,
			Console: false,
		},
		Secrets: NewSecrets(),
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return dir, nil
}

// LogDir returns the log directory path
func LogDir() string {
	dir := GetConfigDir()
	if dir == "" {
		return "logs"
	}
	return filepath.Join(dir, "logs")
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// BridgeDataDir resolves the directory the file bridge stores per-key files in.
// Portable mode keeps data next to the executable.
func (c *Config) BridgeDataDir() string {
	if c.Storage.BridgeDir != "" {
		return c.Storage.BridgeDir
	}
	if c.Storage.Portable {
		if exe, err := os.Executable(); err == nil {
			return filepath.Join(filepath.Dir(exe), "data")
		}
	}
	return filepath.Join(GetConfigDir(), "data")
}

// Load loads configuration from file, merges secrets and environment overrides
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	secrets, _ := LoadSecrets()
	if secrets != nil {
		cfg.Secrets = secrets
	}

	applyEnv(cfg, envSource())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envSource builds a viper instance bound to MEMOCHAT_* variables
func envSource() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("memochat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// applyEnv overrides selected fields from the environment
func applyEnv(cfg *Config, v *viper.Viper) {
	if s := v.GetString("storage.mode"); s != "" {
		cfg.Storage.Mode = s
	}
	if s := v.GetString("storage.driver"); s != "" {
		cfg.Storage.Driver = s
	}
	if s := v.GetString("storage.bridge_dir"); s != "" {
		cfg.Storage.BridgeDir = s
	}
	if s := v.GetString("storage.local_path"); s != "" {
		cfg.Storage.LocalPath = s
	}
	if v.GetBool("storage.portable") {
		cfg.Storage.Portable = true
	}
	if s := v.GetString("log.level"); s != "" {
		cfg.Log.Level = s
	}
	if s := v.GetString("language"); s != "" {
		cfg.Language = s
	}
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	content := "# MemoChat Configuration File\n# API keys belong in .secrets next to this file\n\n" + string(data)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Providers.OpenAI.BaseURL == "" {
		return fmt.Errorf("config error: providers.openai.base_url cannot be empty")
	}
	if c.Providers.DeepSeek.BaseURL == "" {
		return fmt.Errorf("config error: providers.deepseek.base_url cannot be empty")
	}
	if c.Providers.TimeoutSeconds <= 0 {
		return fmt.Errorf("config error: providers.timeout_seconds must be greater than 0")
	}

	switch strings.ToLower(c.Storage.Mode) {
	case StorageModeAuto, StorageModeLocal, StorageModeBridge:
	default:
		return fmt.Errorf("config error: storage.mode must be one of auto, local, bridge")
	}
	switch strings.ToLower(c.Storage.Driver) {
	case DriverSQLite, DriverBadger:
	default:
		return fmt.Errorf("config error: storage.driver must be sqlite or badger")
	}
	if c.Storage.LocalPath == "" {
		return fmt.Errorf("config error: storage.local_path cannot be empty")
	}
	if c.Storage.HydrateWorkers <= 0 {
		return fmt.Errorf("config error: storage.hydrate_workers must be greater than 0")
	}

	if len(c.Knowledge.AcceptedTypes) == 0 {
		return fmt.Errorf("config error: knowledge.accepted_types cannot be empty")
	}
	for _, ext := range c.Knowledge.AcceptedTypes {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("config error: knowledge.accepted_types entry %q must start with a dot", ext)
		}
	}
	if c.Knowledge.MaxFileSizeMB <= 0 {
		return fmt.Errorf("config error: knowledge.max_file_size_mb must be greater than 0")
	}
	if c.Knowledge.MaxFiles <= 0 {
		return fmt.Errorf("config error: knowledge.max_files must be greater than 0")
	}

	return nil
}

// MaxFileSizeBytes returns the upload limit in bytes
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Knowledge.MaxFileSizeMB) * 1024 * 1024
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`MemoChat Configuration:
  Language: %s
  Providers:
    OpenAI Base URL: %s
    OpenAI API Key (.secrets): %s
    DeepSeek Base URL: %s
    DeepSeek API Key (.secrets): %s
    Timeout Seconds: %d
  Storage:
    Mode: %s
    Driver: %s
    Local Path: %s
    Bridge Dir: %s
    Portable: %v
  Knowledge:
    Accepted Types: %s
    Max File Size MB: %d
    Max Files: %d
  Log:
    Level: %s
    Max Days: %d`,
		c.Language,
		c.Providers.OpenAI.BaseURL,
		redactAPIKey(c.Secrets.GetOpenAIAPIKey()),
		c.Providers.DeepSeek.BaseURL,
		redactAPIKey(c.Secrets.GetDeepSeekAPIKey()),
		c.Providers.TimeoutSeconds,
		c.Storage.Mode,
		c.Storage.Driver,
		c.Storage.LocalPath,
		c.BridgeDataDir(),
		c.Storage.Portable,
		strings.Join(c.Knowledge.AcceptedTypes, ", "),
		c.Knowledge.MaxFileSizeMB,
		c.Knowledge.MaxFiles,
		c.Log.Level,
		c.Log.MaxDays,
	)
}

// RedactAPIKey shows only the first 8 characters of a key
func RedactAPIKey(value string) string {
	return redactAPIKey(value)
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
