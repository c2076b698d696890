package storage

// Persisted keys. Each one is independently defaulted by its reader.
const (
	KeyAPIKeys             = "apiKeys"
	KeySelectedModel       = "selectedModel"
	KeySystemPrompt        = "systemPrompt"
	KeyMaxContextMessages  = "maxContextMessages"
	KeyAIName              = "aiName"
	KeyMemorySearchPhrases = "memorySearchPhrases"
	KeyTheme               = "theme"
	KeyChatMessages        = "chatMessages"
	KeyKnowledgeFiles      = "knowledgeFiles"
	KeySecurePin           = "securePin"
)

// KnownKeys lists every key pulled from the bridge at startup
var KnownKeys = []string{
	KeyAPIKeys,
	KeySelectedModel,
	KeySystemPrompt,
	KeyMaxContextMessages,
	KeyAIName,
	KeyMemorySearchPhrases,
	KeyTheme,
	KeyChatMessages,
	KeyKnowledgeFiles,
	KeySecurePin,
}
