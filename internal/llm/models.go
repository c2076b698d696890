package llm

import "strings"

// Provider identifies an upstream chat-completions service
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderDeepSeek Provider = "deepseek"
)

// DisplayName returns the human-readable provider name
func (p Provider) DisplayName() string {
	switch p {
	case ProviderDeepSeek:
		return "DeepSeek"
	default:
		return "OpenAI"
	}
}

// Model catalog entry
type Model struct {
	ID       string
	Name     string
	Provider Provider
}

// DefaultModel is selected until the user picks another
const DefaultModel = "gpt-3.5-turbo"

// Models lists the selectable models in display order
var Models = []Model{
	{ID: "gpt-4o", Name: "GPT-4o", Provider: ProviderOpenAI},
	{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Provider: ProviderOpenAI},
	{ID: "deepseek-chat", Name: "DeepSeek Chat", Provider: ProviderDeepSeek},
	{ID: "deepseek-coder", Name: "DeepSeek Coder", Provider: ProviderDeepSeek},
}

// LookupModel finds a catalog entry by id
func LookupModel(id string) (Model, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// ProviderFor infers the provider from a model id
func ProviderFor(model string) Provider {
	if strings.Contains(strings.ToLower(model), "deepseek") {
		return ProviderDeepSeek
	}
	return ProviderOpenAI
}

// Credentials API keys per provider, persisted under apiKeys
type Credentials struct {
	OpenAI   string `json:"openAI"`
	DeepSeek string `json:"deepSeek"`
}

// For returns the key for provider p
func (c Credentials) For(p Provider) string {
	if p == ProviderDeepSeek {
		return c.DeepSeek
	}
	return c.OpenAI
}
