package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateMessage stores a message from senderID in chatID, makes it the
// chat's latest message, and returns it with the sender and the chat's
// members loaded, ready to be fanned out.
func (s *Store) CreateMessage(ctx context.Context, senderID, chatID, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("failed to create message: empty content")
	}

	msg := &Message{
		ID:        uuid.New().String(),
		SenderID:  senderID,
		ChatID:    chatID,
		Content:   content,
		CreatedAt: time.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireMember(tx, chatID, senderID); err != nil {
			return err
		}
		if err := tx.Omit("Sender", "Chat").Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&Chat{}).Where("id = ?", chatID).
			Updates(map[string]any{"latest_message_id": msg.ID, "updated_at": msg.CreatedAt}).Error
	})
	if err != nil {
		return nil, wrapChatError("failed to create message", err)
	}

	var full Message
	err = s.db.WithContext(ctx).
		Preload("Sender").
		Preload("Chat.Users", func(db *gorm.DB) *gorm.DB { return db.Order("users.name") }).
		Preload("Chat.Admin").
		First(&full, "id = ?", msg.ID).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return &full, nil
}

// MessagesIn returns the messages of chatID oldest first. callerID must be a
// member of the chat.
func (s *Store) MessagesIn(ctx context.Context, callerID, chatID string) ([]Message, error) {
	db := s.db.WithContext(ctx)
	if err := requireMember(db, chatID, callerID); err != nil {
		return nil, wrapChatError("failed to list messages", err)
	}

	var messages []Message
	err := db.Preload("Sender").
		Where("chat_id = ?", chatID).
		Order("created_at, id").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// requireMember fails with ErrNotFound for an unknown chat and ErrNotMember
// when userID is not in it.
func requireMember(db *gorm.DB, chatID, userID string) error {
	var count int64
	if err := db.Model(&Chat{}).Where("id = ?", chatID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	ok, err := isMember(db, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}
