// Package conversation owns the ordered chat history.
package conversation

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/hession/memochat/internal/event"
	"github.com/hession/memochat/internal/storage"
	"github.com/oklog/ulid/v2"
)

// Sender of a message
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Message one chat log entry. Entries are immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Store keeps the authoritative copy of the history in memory and flushes
// the full list to storage after every mutation
type Store struct {
	mu       sync.Mutex
	svc      *storage.Service
	bus      *event.Bus
	messages []Message
	entropy  *ulid.MonotonicEntropy
	now      func() time.Time
}

// New loads the stored history. bus may be nil.
func New(svc *storage.Service, bus *event.Bus) *Store {
	return &Store{
		svc:      svc,
		bus:      bus,
		messages: storage.Get(svc, storage.KeyChatMessages, []Message{}),
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:      time.Now,
	}
}

// Reload replaces the in-memory copy with what storage holds
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = storage.Get(s.svc, storage.KeyChatMessages, []Message{})
}

// Messages returns a copy of the full history, oldest first
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Len returns the number of stored messages
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Recent returns the last n messages, oldest first
func (s *Store) Recent(n int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return []Message{}
	}
	start := len(s.messages) - n
	if start < 0 {
		start = 0
	}
	return append([]Message(nil), s.messages[start:]...)
}

// Append stamps a missing id or timestamp, adds m at the end and persists
// the whole list. The stored message is returned.
func (s *Store) Append(m Message) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	if m.ID == "" {
		m.ID = ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
	}

	s.messages = append(s.messages, m)
	s.flush()
	return m
}

// Add appends a new message from sender with the given content
func (s *Store) Add(sender Sender, content string) Message {
	return s.Append(Message{Sender: sender, Content: content})
}

// Replace overwrites the full history
func (s *Store) Replace(messages []Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append([]Message{}, messages...)
	return s.flush()
}

// Clear persists an empty history
func (s *Store) Clear() bool {
	s.mu.Lock()
	s.messages = []Message{}
	ok := s.flush()
	s.mu.Unlock()

	s.bus.Publish(event.New(event.ConversationCleared, nil))
	return ok
}

// Search returns every message whose content contains query, ignoring case
func (s *Store) Search(query string) []Message {
	needle := strings.ToLower(query)
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []Message
	for _, m := range s.messages {
		if strings.Contains(strings.ToLower(m.Content), needle) {
			found = append(found, m)
		}
	}
	return found
}

// flush must be called with mu held
func (s *Store) flush() bool {
	return s.svc.Set(storage.KeyChatMessages, s.messages)
}
