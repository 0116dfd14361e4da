package models

import (
	"time"
)

// Message is one turn of a QA conversation. The message log is the
// persisted record of a conversation.
type Message struct {
	Role        string    `json:"role"` // "user" or "assistant"
	Content     string    `json:"content"`
	CitedPages  []int     `json:"cited_pages,omitempty"`
	DocumentIDs []string  `json:"document_ids,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConversationContext is derived per request from the conversation history.
// It is never persisted itself.
type ConversationContext struct {
	Entities          []string `json:"entities"`
	LastQuestion      string   `json:"last_question,omitempty"`
	LastAnswer        string   `json:"last_answer,omitempty"`
	RewrittenQuestion string   `json:"rewritten_question"`
	NeedsRewrite      bool     `json:"needs_rewrite"`
}

// ChatMessage is a role/content pair sent to the generation provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
