// Package domain holds the core entities shared across glintbot:
// conversation turns, voice call records, and pending order confirmations.
package domain

import "time"

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// ConversationKey identifies one customer conversation on one channel.
type ConversationKey struct {
	Channel       string `json:"channel"` // "chat", "voice"
	CustomerPhone string `json:"customerPhone"`
}

// String returns the canonical form used as a cache and storage key.
func (k ConversationKey) String() string {
	return k.Channel + ":" + k.CustomerPhone
}

// ConversationTurn is a single turn in a conversation. Insertion order is
// significant; the ContextStore owns the ordered sequence per key.
type ConversationTurn struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	ToolCallID string    `json:"toolCallId,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}
