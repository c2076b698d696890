package llm

import (
	"context"
	"time"

	"github.com/hession/memochat/internal/config"
	"github.com/hession/memochat/internal/errs"
	"github.com/hession/memochat/internal/logger"
)

// Router picks the provider client for the selected model
type Router struct {
	providers config.ProvidersConfig
	prompts   config.LanguagePrompts
	log       *logger.Named
}

// NewRouter creates a router over the configured provider endpoints
func NewRouter(providers config.ProvidersConfig, prompts config.LanguagePrompts) *Router {
	return &Router{
		providers: providers,
		prompts:   prompts,
		log:       logger.For("llm"),
	}
}

// Client returns a client for model, or MissingCredential when the
// provider's key is empty
func (r *Router) Client(model string, keys Credentials) (*Client, error) {
	provider := ProviderFor(model)
	key := keys.For(provider)

	baseURL := r.providers.OpenAI.BaseURL
	missing := r.prompts.MissingKeyOpenAI
	generic := r.prompts.ProviderErrorOpenAI
	if provider == ProviderDeepSeek {
		baseURL = r.providers.DeepSeek.BaseURL
		missing = r.prompts.MissingKeyDeepSeek
		generic = r.prompts.ProviderErrorDeepSeek
	}

	if key == "" {
		if missing == "" {
			missing = provider.DisplayName() + " API key is not configured"
		}
		return nil, errs.New(errs.MissingCredential, "llm.route", missing)
	}

	timeout := time.Duration(r.providers.TimeoutSeconds) * time.Second
	return New(provider, key, baseURL, timeout).WithGenericError(generic), nil
}

// Complete routes one request to the provider serving model
func (r *Router) Complete(ctx context.Context, model string, keys Credentials, messages []Message) (string, error) {
	client, err := r.Client(model, keys)
	if err != nil {
		return "", err
	}

	start := time.Now()
	content, err := client.Complete(ctx, model, messages)
	if err != nil {
		r.log.Warn("%s request failed after %s: %v", client.Provider(), time.Since(start).Round(time.Millisecond), err)
		return "", err
	}
	r.log.Debug("%s answered %d chars in %s", client.Provider(), len(content), time.Since(start).Round(time.Millisecond))
	return content, nil
}
