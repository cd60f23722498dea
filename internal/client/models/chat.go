package models

import (
	"encoding/json"

	"github.com/dmitrijs2005/dulo/internal/timex"
)

// Message roles accepted by the chat endpoint.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	CreatedAt timex.Timestamp `json:"created_at,omitzero"`
}

// UnmarshalJSON accepts stored rows, which carry the text in "message",
// as well as request-shaped objects using "content".
func (m *ChatMessage) UnmarshalJSON(b []byte) error {
	var raw struct {
		Role      string          `json:"role"`
		Content   string          `json:"content"`
		Message   string          `json:"message"`
		CreatedAt timex.Timestamp `json:"created_at"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Content = raw.Content
	if m.Content == "" {
		m.Content = raw.Message
	}
	m.CreatedAt = raw.CreatedAt
	return nil
}

// Chat is the summary of a conversation as listed by /chat/history.
type Chat struct {
	ChatID    string          `json:"chat_id"`
	Title     string          `json:"title,omitempty"`
	CreatedAt timex.Timestamp `json:"created_at,omitzero"`
	UpdatedAt timex.Timestamp `json:"updated_at,omitzero"`
}

// ChatList is the answer of GET /chat/history.
type ChatList struct {
	Chats []Chat `json:"chats"`
}

// ChatDetail is a conversation with its messages in order.
type ChatDetail struct {
	Chat     Chat          `json:"chat"`
	Messages []ChatMessage `json:"messages"`
}

// ChatRequest is the body of POST /chat. A nil ChatID starts a new chat.
type ChatRequest struct {
	ChatID   *string       `json:"id-chat"`
	Messages []ChatMessage `json:"message"`
}

// ChatReply is the answer of POST /chat.
type ChatReply struct {
	ChatID       string `json:"chat_id"`
	IsNewChat    bool   `json:"is_new_chat"`
	Response     string `json:"response"`
	MessageCount int    `json:"message_count"`
}
