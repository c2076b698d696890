package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Secrets sensitive configuration loaded from .secrets file
type Secrets struct {
	values map[string]string
}

// NewSecrets creates a new Secrets instance
func NewSecrets() *Secrets {
	return &Secrets{
		values: make(map[string]string),
	}
}

// SecretsPath returns the secrets file path
func SecretsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".secrets"), nil
}

// LoadSecrets loads secrets from the .secrets file
func LoadSecrets() (*Secrets, error) {
	secretsPath, err := SecretsPath()
	if err != nil {
		return NewSecrets(), nil
	}
	return ParseSecretsFile(secretsPath)
}

// ParseSecretsFile reads key=value pairs; a missing file yields empty secrets
func ParseSecretsFile(path string) (*Secrets, error) {
	secrets := NewSecrets()

	file, err := os.Open(path)
	if err != nil {
		return secrets, nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
			secrets.values[key] = value
		}
	}

	return secrets, scanner.Err()
}

// Get returns the value for a key
func (s *Secrets) Get(key string) string {
	if s == nil || s.values == nil {
		return ""
	}
	return s.values[key]
}

// Set stores a value, used by tests and the interactive key prompt
func (s *Secrets) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
}

// GetOpenAIAPIKey returns the OpenAI API key from secrets
func (s *Secrets) GetOpenAIAPIKey() string {
	return s.Get("OPENAI_API_KEY")
}

// GetDeepSeekAPIKey returns the DeepSeek API key from secrets
func (s *Secrets) GetDeepSeekAPIKey() string {
	return s.Get("DEEPSEEK_API_KEY")
}
