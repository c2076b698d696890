// Package app builds the process-wide storage service and every store on
// top of it.
package app

import (
	"context"
	"fmt"

	"github.com/hession/memochat/internal/backup"
	"github.com/hession/memochat/internal/chat"
	"github.com/hession/memochat/internal/config"
	"github.com/hession/memochat/internal/conversation"
	"github.com/hession/memochat/internal/event"
	"github.com/hession/memochat/internal/knowledge"
	"github.com/hession/memochat/internal/llm"
	"github.com/hession/memochat/internal/logger"
	"github.com/hession/memochat/internal/pin"
	"github.com/hession/memochat/internal/settings"
	"github.com/hession/memochat/internal/storage"
)

// App holds the wired components for one process
type App struct {
	Config    *config.Config
	Prompts   config.LanguagePrompts
	Storage   *storage.Service
	Bus       *event.Bus
	Settings  *settings.Store
	History   *conversation.Store
	Knowledge *knowledge.Store
	Pin       *pin.Gate
	Backup    *backup.Codec
	Assembler *chat.Assembler
	Chat      *chat.Service
}

// Open resolves the storage backend, hydrates the cache and wires the stores
func Open(ctx context.Context, cfg *config.Config, prompts *config.PromptConfig) (*App, error) {
	svc, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	// reads must not miss keys that only the bridge holds
	svc.Hydrate(ctx)

	return New(cfg, prompts, svc, nil), nil
}

// New wires the stores over svc. A nil completer routes to the configured
// providers.
func New(cfg *config.Config, prompts *config.PromptConfig, svc *storage.Service, completer chat.Completer) *App {
	pack := prompts.For(cfg.Language)
	bus := event.NewBus()

	st := settings.New(svc, bus, settings.Defaults{
		APIKeys: llm.Credentials{
			OpenAI:   cfg.Secrets.GetOpenAIAPIKey(),
			DeepSeek: cfg.Secrets.GetDeepSeekAPIKey(),
		},
		SystemPrompt:        pack.System,
		MemorySearchPhrases: pack.MemorySearchPhrases,
	})
	history := conversation.New(svc, bus)
	kb := knowledge.New(svc, knowledge.LimitsFromConfig(cfg))

	if completer == nil {
		completer = llm.NewRouter(cfg.Providers, pack)
	}
	assembler := chat.NewAssembler(st, history, kb, pack)

	a := &App{
		Config:    cfg,
		Prompts:   pack,
		Storage:   svc,
		Bus:       bus,
		Settings:  st,
		History:   history,
		Knowledge: kb,
		Pin:       pin.New(svc),
		Backup:    backup.New(svc, st, history, kb, bus),
		Assembler: assembler,
		Chat:      chat.NewService(assembler, st, history, completer, pack),
	}

	logger.For("app").Info("Started with %s backend, %d messages, %d knowledge files",
		svc.Kind(), history.Len(), kb.Len())
	return a
}

// Close releases the storage service
func (a *App) Close() error {
	return a.Storage.Close()
}
