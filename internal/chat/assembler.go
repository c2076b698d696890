// Package chat turns one user message into either a local memory recall or
// a provider request, and records the turn in the conversation.
package chat

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/hession/memochat/internal/config"
	"github.com/hession/memochat/internal/conversation"
	"github.com/hession/memochat/internal/knowledge"
	"github.com/hession/memochat/internal/llm"
	"github.com/hession/memochat/internal/settings"
)

// Knowledge injection bounds
const (
	MaxKnowledgeFiles = 3
	MaxKnowledgeChars = 1000
	ellipsis          = "..."
)

// Request is the outbound content for one turn
type Request struct {
	Model        string
	SystemPrompt string
	History      []llm.Message
	Message      string
}

// Messages returns system prompt, history and the current message in order
func (r Request) Messages() []llm.Message {
	msgs := make([]llm.Message, 0, len(r.History)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: r.SystemPrompt})
	msgs = append(msgs, r.History...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: r.Message})
	return msgs
}

// Assembly is either a recall answer or a request ready for transport
type Assembly struct {
	Recall   string
	IsRecall bool
	Request  Request
}

// Assembler reads the three stores and builds the content of one turn
type Assembler struct {
	settings  *settings.Store
	history   *conversation.Store
	knowledge *knowledge.Store
	prompts   config.LanguagePrompts
	triggers  triggerSet

	mu   sync.Mutex
	rand *rand.Rand
}

// NewAssembler creates an assembler over the given stores
func NewAssembler(s *settings.Store, h *conversation.Store, k *knowledge.Store, prompts config.LanguagePrompts) *Assembler {
	return &Assembler{
		settings:  s,
		history:   h,
		knowledge: k,
		prompts:   prompts,
		triggers:  compileTriggers(prompts.RecallTriggers),
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand replaces the source used to pick search phrases
func (a *Assembler) WithRand(r *rand.Rand) *Assembler {
	a.rand = r
	return a
}

// Assemble must be called before text is appended to the history
func (a *Assembler) Assemble(text string) Assembly {
	if recall, ok := a.Recall(text); ok {
		return Assembly{Recall: recall, IsRecall: true}
	}
	return Assembly{Request: a.BuildRequest(text)}
}

// BuildRequest composes the system prompt, the windowed history and text
func (a *Assembler) BuildRequest(text string) Request {
	n := a.settings.MaxContextMessages()

	recent := a.history.Recent(n)
	history := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		role := llm.RoleUser
		if m.Sender == conversation.SenderAI {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}

	system := a.settings.SystemPrompt()
	if block := a.KnowledgeBlock(); block != "" {
		system = system + "\n\n" + a.prompts.KnowledgeConnective + "\n" + block
	}

	return Request{
		Model:        a.settings.SelectedModel(),
		SystemPrompt: system,
		History:      history,
		Message:      text,
	}
}

// KnowledgeBlock returns the reference block built from the first stored
// files, or "" when the knowledge base is empty
func (a *Assembler) KnowledgeBlock() string {
	files := a.knowledge.Files()
	if len(files) == 0 {
		return ""
	}
	if len(files) > MaxKnowledgeFiles {
		files = files[:MaxKnowledgeFiles]
	}

	blocks := make([]string, 0, len(files))
	for _, f := range files {
		blocks = append(blocks, "["+f.Name+"]:\n"+truncate(f.Content, MaxKnowledgeChars))
	}
	return a.prompts.KnowledgeHeader + strings.Join(blocks, "\n\n")
}

// truncate keeps the first max characters. The ellipsis marks content that
// was actually cut.
func truncate(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + ellipsis
}

func (a *Assembler) pickPhrase() string {
	phrases := a.settings.MemorySearchPhrases()
	if len(phrases) == 0 {
		return ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return phrases[a.rand.Intn(len(phrases))]
}
