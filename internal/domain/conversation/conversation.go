// Package conversation holds chat history entities.
package conversation

import "time"

// Role distinguishes message authors.
type Role string

const (
	// RoleUser marks a message written by the user.
	RoleUser Role = "user"
	// RoleAI marks an assistant response.
	RoleAI Role = "ai"
)

// MaxStoredQueryLength bounds the query text persisted with a conversation.
const MaxStoredQueryLength = 500

// Message is a single chat turn.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a persisted exchange: the user turn, the assistant turn,
// and retrieval bookkeeping.
type Conversation struct {
	ID            string    `json:"conversation_id"`
	UserID        string    `json:"user_id"`
	Query         string    `json:"query"`
	Messages      []Message `json:"messages"`
	ProductsFound int       `json:"products_found"`
	CreatedAt     time.Time `json:"timestamp"`
}

// TruncateQuery bounds query text for storage.
func TruncateQuery(q string) string {
	if len(q) > MaxStoredQueryLength {
		return q[:MaxStoredQueryLength]
	}
	return q
}
