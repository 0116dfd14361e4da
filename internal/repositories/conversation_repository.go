package repositories

import (
	"context"
	"fmt"

	"docqa/internal/models"
)

// ConversationRepository persists per-conversation message history
type ConversationRepository interface {
	AppendMessage(ctx context.Context, conversationID string, msg *models.Message) error
	GetMessages(ctx context.Context, conversationID string) ([]*models.Message, error)
	Ping(ctx context.Context) error
}

// ConversationRepositoryError wraps conversation storage failures
type ConversationRepositoryError struct {
	Operation      string
	ConversationID string
	Err            error
}

func (e *ConversationRepositoryError) Error() string {
	return fmt.Sprintf("conversation repository %s failed for %s: %v", e.Operation, e.ConversationID, e.Err)
}

func (e *ConversationRepositoryError) Unwrap() error {
	return e.Err
}

// NewConversationRepositoryError creates a new conversation repository error
func NewConversationRepositoryError(operation, conversationID string, err error) *ConversationRepositoryError {
	return &ConversationRepositoryError{
		Operation:      operation,
		ConversationID: conversationID,
		Err:            err,
	}
}
