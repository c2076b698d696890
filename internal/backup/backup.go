// Package backup exports and restores the settings, history and knowledge
// base as one JSON document.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hession/memochat/internal/conversation"
	"github.com/hession/memochat/internal/errs"
	"github.com/hession/memochat/internal/event"
	"github.com/hession/memochat/internal/knowledge"
	"github.com/hession/memochat/internal/llm"
	"github.com/hession/memochat/internal/logger"
	"github.com/hession/memochat/internal/pin"
	"github.com/hession/memochat/internal/settings"
	"github.com/hession/memochat/internal/storage"
)

// Document is the backup file. A nil field is absent and leaves the local
// entry untouched on import.
type Document struct {
	APIKeys             *llm.Credentials        `json:"apiKeys,omitempty"`
	SelectedModel       *string                 `json:"selectedModel,omitempty"`
	SystemPrompt        *string                 `json:"systemPrompt,omitempty"`
	MaxContextMessages  *int                    `json:"maxContextMessages,omitempty"`
	AIName              *string                 `json:"aiName,omitempty"`
	MemorySearchPhrases *[]string               `json:"memorySearchPhrases,omitempty"`
	Theme               *string                 `json:"theme,omitempty"`
	ChatMessages        *[]conversation.Message `json:"chatMessages,omitempty"`
	KnowledgeFiles      *[]knowledge.File       `json:"knowledgeFiles,omitempty"`
	SecurePin           *pin.Record             `json:"securePin,omitempty"`
}

// ExportOptions selects the optional parts of an export
type ExportOptions struct {
	IncludeKnowledge bool
	// OmitPin leaves securePin out even when a PIN is set
	OmitPin bool
}

// Codec reads and writes every store for export and import
type Codec struct {
	svc       *storage.Service
	settings  *settings.Store
	history   *conversation.Store
	knowledge *knowledge.Store
	bus       *event.Bus
	log       *logger.Named
}

// New creates a codec. bus may be nil.
func New(svc *storage.Service, s *settings.Store, h *conversation.Store, k *knowledge.Store, bus *event.Bus) *Codec {
	return &Codec{
		svc:       svc,
		settings:  s,
		history:   h,
		knowledge: k,
		bus:       bus,
		log:       logger.For("backup"),
	}
}

// Filename returns the backup file name for day t
func Filename(t time.Time) string {
	return fmt.Sprintf("memochat-backup-%s.json", t.Format("2006-01-02"))
}

// Export snapshots every settings entry, with defaults, and the full history
func (c *Codec) Export(opts ExportOptions) Document {
	keys := c.settings.APIKeys()
	model := c.settings.SelectedModel()
	prompt := c.settings.SystemPrompt()
	window := c.settings.MaxContextMessages()
	name := c.settings.AIName()
	phrases := c.settings.MemorySearchPhrases()
	theme := c.settings.Theme()
	messages := c.history.Messages()
	if messages == nil {
		messages = []conversation.Message{}
	}

	doc := Document{
		APIKeys:             &keys,
		SelectedModel:       &model,
		SystemPrompt:        &prompt,
		MaxContextMessages:  &window,
		AIName:              &name,
		MemorySearchPhrases: &phrases,
		Theme:               &theme,
		ChatMessages:        &messages,
	}

	if opts.IncludeKnowledge {
		files := c.knowledge.Files()
		if files == nil {
			files = []knowledge.File{}
		}
		doc.KnowledgeFiles = &files
	}
	if !opts.OmitPin {
		rec := storage.Get(c.svc, storage.KeySecurePin, pin.Record{})
		if rec.Salt != "" && rec.Hash != "" {
			doc.SecurePin = &rec
		}
	}
	return doc
}

// Marshal encodes doc as indented JSON
func Marshal(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return data, nil
}

// ExportFile writes a dated backup into dir and returns its path
func (c *Codec) ExportFile(dir string, opts ExportOptions) (string, error) {
	data, err := Marshal(c.Export(opts))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	path := filepath.Join(dir, Filename(time.Now()))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	c.log.Info("Exported backup to %s", path)
	return path, nil
}

// Decode parses data into a document. Anything but a JSON object whose
// recognised fields all decode is a DecodeFailure.
func Decode(data []byte) (Document, error) {
	var fields map[string]json.RawMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Document{}, errs.New(errs.DecodeFailure, "backup.import", "invalid file: not a JSON object")
	}
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Document{}, errs.Wrap(errs.DecodeFailure, "backup.import", "invalid file", err)
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{}, errs.Wrap(errs.DecodeFailure, "backup.import", "invalid file", err)
	}
	if err := doc.validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (d Document) validate() error {
	invalid := func(msg string) error {
		return errs.New(errs.DecodeFailure, "backup.import", "invalid file: "+msg)
	}
	if d.Theme != nil && !settings.ValidTheme(*d.Theme) {
		return invalid("theme must be light or dark")
	}
	if d.AIName != nil && strings.TrimSpace(*d.AIName) == "" {
		return invalid("aiName is empty")
	}
	if d.SecurePin != nil && (d.SecurePin.Salt == "" || d.SecurePin.Hash == "") {
		return invalid("securePin is incomplete")
	}
	return nil
}

// Result lists the keys an import wrote, sorted
type Result struct {
	Fields []string
}

// Import decodes data and writes each present field. Nothing is written
// when decoding fails.
func (c *Codec) Import(data []byte) (Result, error) {
	doc, err := Decode(data)
	if err != nil {
		return Result{}, err
	}

	var written []string
	mark := func(key string) { written = append(written, key) }

	if doc.APIKeys != nil {
		c.settings.SetAPIKeys(*doc.APIKeys)
		mark(storage.KeyAPIKeys)
	}
	if doc.SelectedModel != nil {
		// ids outside the catalog are kept so newer backups survive
		c.svc.Set(storage.KeySelectedModel, *doc.SelectedModel)
		mark(storage.KeySelectedModel)
	}
	if doc.SystemPrompt != nil {
		c.settings.SetSystemPrompt(*doc.SystemPrompt)
		mark(storage.KeySystemPrompt)
	}
	if doc.MaxContextMessages != nil {
		c.settings.SetMaxContextMessages(*doc.MaxContextMessages)
		mark(storage.KeyMaxContextMessages)
	}
	if doc.AIName != nil {
		c.settings.SetAIName(*doc.AIName)
		mark(storage.KeyAIName)
	}
	if doc.MemorySearchPhrases != nil {
		c.settings.SetMemorySearchPhrases(*doc.MemorySearchPhrases)
		mark(storage.KeyMemorySearchPhrases)
	}
	if doc.Theme != nil {
		c.settings.SetTheme(*doc.Theme)
		mark(storage.KeyTheme)
	}
	if doc.ChatMessages != nil {
		c.history.Replace(*doc.ChatMessages)
		mark(storage.KeyChatMessages)
	}
	if doc.KnowledgeFiles != nil {
		c.knowledge.Replace(*doc.KnowledgeFiles)
		mark(storage.KeyKnowledgeFiles)
	}
	if doc.SecurePin != nil {
		c.svc.Set(storage.KeySecurePin, *doc.SecurePin)
		mark(storage.KeySecurePin)
	}

	sort.Strings(written)
	c.bus.Publish(event.New(event.BackupImported, map[string]interface{}{"fields": written}))
	c.log.Info("Imported %d fields from backup", len(written))
	return Result{Fields: written}, nil
}

// ImportFile reads and imports the backup at path
func (c *Codec) ImportFile(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read backup: %w", err)
	}
	return c.Import(data)
}
