package event

import "time"

// Type identifies the kind of in-process notification.
type Type string

const (
	// AINameChanged carries the new assistant display name under "aiName".
	AINameChanged Type = "settings.aiName"
	// ThemeChanged carries the new theme under "theme".
	ThemeChanged Type = "settings.theme"
	// ConversationCleared has no data.
	ConversationCleared Type = "conversation.cleared"
	// BackupImported carries the imported field names under "fields".
	BackupImported Type = "backup.imported"
)

// Event carries data about a settings or store change.
type Event struct {
	Type      Type                   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// New creates an event with the current timestamp.
func New(t Type, data map[string]interface{}) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// String returns the string stored under key, or "" when absent.
func (e Event) String(key string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}
