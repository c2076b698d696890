package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PromptConfig prompt configuration structure
type PromptConfig struct {
	Language string                     `yaml:"language"`
	Prompts  map[string]LanguagePrompts `yaml:"prompts"`
}

// LanguagePrompts prompts and fixed strings for a specific language
type LanguagePrompts struct {
	System                string   `yaml:"system"`
	KnowledgeHeader       string   `yaml:"knowledge_header"`
	KnowledgeConnective   string   `yaml:"knowledge_connective"`
	RecallTriggers        []string `yaml:"recall_triggers"`
	MemorySearchPhrases   []string `yaml:"memory_search_phrases"`
	RecallEmpty           string   `yaml:"recall_empty"`
	RecallNotFound        string   `yaml:"recall_not_found"`
	RecallFound           string   `yaml:"recall_found"`
	UserLabel             string   `yaml:"user_label"`
	AssistantLabel        string   `yaml:"assistant_label"`
	ErrorPrefix           string   `yaml:"error_prefix"`
	MissingKeyOpenAI      string   `yaml:"missing_key_openai"`
	MissingKeyDeepSeek    string   `yaml:"missing_key_deepseek"`
	ProviderErrorOpenAI   string   `yaml:"provider_error_openai"`
	ProviderErrorDeepSeek string   `yaml:"provider_error_deepseek"`
}

// DefaultPromptConfig returns default prompt configuration
func DefaultPromptConfig() *PromptConfig {
	return &PromptConfig{
		Language: "es",
		Prompts: map[string]LanguagePrompts{
			"es": {
				System:              "You are a helpful AI assistant. Answer questions accurately and concisely.",
				KnowledgeHeader:     "Información de referencia:\n\n",
				KnowledgeConnective: "Utiliza la siguiente información como referencia para responder:",
				RecallTriggers:      []string{"recuerdas", "hablamos de", "mencionaste", "dijiste sobre"},
				MemorySearchPhrases: []string{
					"Déjame buscar en mis recuerdos...",
					"Voy a escarbar en mi memoria para encontrar eso...",
					"Recuerdo que hablamos de esto antes, permíteme buscar...",
					"Estoy consultando nuestras conversaciones anteriores...",
				},
				RecallEmpty:           "No tengo conversaciones pasadas guardadas en mi memoria.",
				RecallNotFound:        "No encontré ninguna conversación pasada relacionada con \"%s\".",
				RecallFound:           "Encontré estas conversaciones relacionadas con \"%s\":",
				UserLabel:             "Tú",
				AssistantLabel:        "AI",
				ErrorPrefix:           "Error",
				MissingKeyOpenAI:      "No se ha configurado la API key de OpenAI",
				MissingKeyDeepSeek:    "No se ha configurado la API key de DeepSeek",
				ProviderErrorOpenAI:   "Error al llamar a la API de OpenAI",
				ProviderErrorDeepSeek: "Error al llamar a la API de DeepSeek",
			},
			"en": {
				System:              "You are a helpful AI assistant. Answer questions accurately and concisely.",
				KnowledgeHeader:     "Reference information:\n\n",
				KnowledgeConnective: "Use the following information as reference when answering:",
				RecallTriggers:      []string{"do you remember", "we talked about", "you mentioned", "you said about"},
				MemorySearchPhrases: []string{
					"Let me search my memories...",
					"Digging through my memory to find that...",
					"I remember we talked about this, let me look...",
					"Checking our previous conversations...",
				},
				RecallEmpty:           "I have no past conversations stored in memory.",
				RecallNotFound:        "I found no past conversation related to \"%s\".",
				RecallFound:           "I found these conversations related to \"%s\":",
				UserLabel:             "You",
				AssistantLabel:        "AI",
				ErrorPrefix:           "Error",
				MissingKeyOpenAI:      "The OpenAI API key is not configured",
				MissingKeyDeepSeek:    "The DeepSeek API key is not configured",
				ProviderErrorOpenAI:   "Error calling the OpenAI API",
				ProviderErrorDeepSeek: "Error calling the DeepSeek API",
			},
		},
	}
}

// PromptConfigPath returns the prompt config file path
func PromptConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prompt.yaml"), nil
}

// LoadPromptConfig loads prompt configuration from file
func LoadPromptConfig() (*PromptConfig, error) {
	configPath, err := PromptConfigPath()
	if err != nil {
		return DefaultPromptConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultPromptConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt config: %w", err)
	}

	cfg := DefaultPromptConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse prompt config: %w", err)
	}

	return cfg, nil
}

// For returns the prompts of one language, falling back to Spanish. Missing
// entries are filled from the default pack of the same language.
func (p *PromptConfig) For(language string) LanguagePrompts {
	defaults := DefaultPromptConfig().Prompts
	base, ok := defaults[language]
	if !ok {
		base = defaults["es"]
	}

	prompts, ok := p.Prompts[language]
	if !ok {
		if prompts, ok = p.Prompts["es"]; !ok {
			return base
		}
	}
	return mergePrompts(prompts, base)
}

func mergePrompts(p, base LanguagePrompts) LanguagePrompts {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	out := LanguagePrompts{
		System:                pick(p.System, base.System),
		KnowledgeHeader:       pick(p.KnowledgeHeader, base.KnowledgeHeader),
		KnowledgeConnective:   pick(p.KnowledgeConnective, base.KnowledgeConnective),
		RecallTriggers:        p.RecallTriggers,
		MemorySearchPhrases:   p.MemorySearchPhrases,
		RecallEmpty:           pick(p.RecallEmpty, base.RecallEmpty),
		RecallNotFound:        pick(p.RecallNotFound, base.RecallNotFound),
		RecallFound:           pick(p.RecallFound, base.RecallFound),
		UserLabel:             pick(p.UserLabel, base.UserLabel),
		AssistantLabel:        pick(p.AssistantLabel, base.AssistantLabel),
		ErrorPrefix:           pick(p.ErrorPrefix, base.ErrorPrefix),
		MissingKeyOpenAI:      pick(p.MissingKeyOpenAI, base.MissingKeyOpenAI),
		MissingKeyDeepSeek:    pick(p.MissingKeyDeepSeek, base.MissingKeyDeepSeek),
		ProviderErrorOpenAI:   pick(p.ProviderErrorOpenAI, base.ProviderErrorOpenAI),
		ProviderErrorDeepSeek: pick(p.ProviderErrorDeepSeek, base.ProviderErrorDeepSeek),
	}
	if len(out.RecallTriggers) == 0 {
		out.RecallTriggers = base.RecallTriggers
	}
	if len(out.MemorySearchPhrases) == 0 {
		out.MemorySearchPhrases = base.MemorySearchPhrases
	}
	return out
}
