package repositories

import (
	"context"
	"encoding/json"
	"log"

	"docqa/internal/db"
	"docqa/internal/models"
)

const conversationKeyPrefix = "conv:"

// RedisConversationRepository implements ConversationRepository backed by Redis lists
type RedisConversationRepository struct {
	client *db.RedisClient
	logger *log.Logger
}

// NewRedisConversationRepository creates a new Redis-backed conversation repository
func NewRedisConversationRepository(client *db.RedisClient, logger *log.Logger) ConversationRepository {
	return &RedisConversationRepository{
		client: client,
		logger: logger,
	}
}

func conversationKey(conversationID string) string {
	return conversationKeyPrefix + conversationID + ":messages"
}

// AppendMessage pushes a message onto the conversation history
func (r *RedisConversationRepository) AppendMessage(ctx context.Context, conversationID string, msg *models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return NewConversationRepositoryError("append", conversationID, err)
	}

	if err := r.client.GetClient().RPush(ctx, conversationKey(conversationID), data).Err(); err != nil {
		return NewConversationRepositoryError("append", conversationID, err)
	}
	return nil
}

// GetMessages returns the full conversation history in order
func (r *RedisConversationRepository) GetMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	raw, err := r.client.GetClient().LRange(ctx, conversationKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, NewConversationRepositoryError("get_messages", conversationID, err)
	}

	messages := make([]*models.Message, 0, len(raw))
	for _, item := range raw {
		var msg models.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			r.logger.Printf("Skipping malformed message in conversation %s: %v", conversationID, err)
			continue
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// Ping checks Redis connectivity
func (r *RedisConversationRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
