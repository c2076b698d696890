package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hession/memochat/internal/config"
	"github.com/hession/memochat/internal/conversation"
	"github.com/hession/memochat/internal/errs"
	"github.com/hession/memochat/internal/llm"
	"github.com/hession/memochat/internal/logger"
	"github.com/hession/memochat/internal/settings"
)

// Completer sends a request to the provider serving model
type Completer interface {
	Complete(ctx context.Context, model string, keys llm.Credentials, messages []llm.Message) (string, error)
}

// Service runs one chat turn at a time
type Service struct {
	assembler *Assembler
	settings  *settings.Store
	history   *conversation.Store
	completer Completer
	prompts   config.LanguagePrompts
	log       *logger.Named
}

// NewService creates the chat service
func NewService(a *Assembler, s *settings.Store, h *conversation.Store, c Completer, prompts config.LanguagePrompts) *Service {
	return &Service{
		assembler: a,
		settings:  s,
		history:   h,
		completer: c,
		prompts:   prompts,
		log:       logger.For("chat"),
	}
}

// Send records text as a user message and appends the answer. On provider
// or credential failures a single error message is appended and the error
// is returned.
func (s *Service) Send(ctx context.Context, text string) (conversation.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return conversation.Message{}, errs.New(errs.ValidationFailure, "chat.send", "message is empty")
	}

	// history seen by the assembler excludes the current message
	assembly := s.assembler.Assemble(text)
	s.history.Add(conversation.SenderUser, text)

	if assembly.IsRecall {
		s.log.Debug("Answered from memory")
		return s.history.Add(conversation.SenderAI, assembly.Recall), nil
	}

	req := assembly.Request
	start := time.Now()
	reply, err := s.completer.Complete(ctx, req.Model, s.settings.APIKeys(), req.Messages())
	if err != nil {
		s.log.Error("Chat request failed (%s): %v", req.Model, err)
		msg := fmt.Sprintf("%s: %s", s.prompts.ErrorPrefix, errs.UserMessage(err))
		s.history.Add(conversation.SenderAI, msg)
		return conversation.Message{}, err
	}

	s.log.Info("Reply from %s in %s (%d history messages)", req.Model, time.Since(start).Round(time.Millisecond), len(req.History))
	return s.history.Add(conversation.SenderAI, reply), nil
}
