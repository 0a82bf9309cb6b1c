package domain

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape sent to text
// generation providers.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
