package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// withChatDetails preloads what the chat list shows: members, the group
// admin, and the latest message with its sender.
func withChatDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Users", func(db *gorm.DB) *gorm.DB {
		return db.Order("users.name")
	}).Preload("Admin").Preload("LatestMessage.Sender")
}

func (s *Store) memberChats(db *gorm.DB, userID string) *gorm.DB {
	return db.Where("chats.id IN (?)",
		s.db.Table("chat_users").Select("chat_id").Where("user_id = ?", userID))
}

// AccessChat returns the one-to-one chat between userID and otherID,
// creating it if needed. created reports whether a new chat was made.
func (s *Store) AccessChat(ctx context.Context, userID, otherID string) (chat *Chat, created bool, err error) {
	if userID == otherID {
		return nil, false, ErrInvalidChat
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Chat
		q := tx.Where("chats.is_group_chat = ?", false)
		q = s.memberChats(q, userID)
		q = s.memberChats(q, otherID)
		err := withChatDetails(q).First(&existing).Error
		if err == nil {
			chat = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		users, err := findUsers(tx, []string{userID, otherID})
		if err != nil {
			return err
		}
		chat = &Chat{
			ID:    uuid.New().String(),
			Name:  "sender",
			Users: users,
		}
		if err := tx.Omit("Users.*").Create(chat).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, wrapChatError("failed to access chat", err)
	}
	return chat, created, nil
}

// ChatsFor returns every chat userID belongs to, most recently updated first.
func (s *Store) ChatsFor(ctx context.Context, userID string) ([]Chat, error) {
	var chats []Chat
	q := s.memberChats(s.db.WithContext(ctx), userID)
	if err := withChatDetails(q).Order("chats.updated_at DESC").Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}

// ChatByID retrieves a chat with its details.
func (s *Store) ChatByID(ctx context.Context, chatID string) (*Chat, error) {
	var chat Chat
	if err := withChatDetails(s.db.WithContext(ctx)).First(&chat, "chats.id = ?", chatID).Error; err != nil {
		return nil, wrapChatError("failed to find chat", err)
	}
	return &chat, nil
}

// CreateGroup creates a group chat named name with adminID as admin and
// member. memberIDs must name at least MinGroupMembers other users.
func (s *Store) CreateGroup(ctx context.Context, adminID, name string, memberIDs []string) (*Chat, error) {
	name = strings.TrimSpace(name)
	ids := dedupe(memberIDs, adminID)
	if name == "" || len(ids) < MinGroupMembers {
		return nil, ErrInvalidGroup
	}

	chatID := uuid.New().String()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users, err := findUsers(tx, append([]string{adminID}, ids...))
		if err != nil {
			return err
		}
		chat := &Chat{
			ID:          chatID,
			Name:        name,
			IsGroupChat: true,
			Users:       users,
			AdminID:     &adminID,
		}
		return tx.Omit("Users.*", "Admin", "LatestMessage").Create(chat).Error
	})
	if err != nil {
		return nil, wrapChatError("failed to create group", err)
	}
	return s.ChatByID(ctx, chatID)
}

// RenameGroup sets the name of a group chat. Only the admin may rename.
func (s *Store) RenameGroup(ctx context.Context, callerID, chatID, name string) (*Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidGroup
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := adminGroup(tx, callerID, chatID); err != nil {
			return err
		}
		return tx.Model(&Chat{}).Where("id = ?", chatID).
			Updates(map[string]any{"name": name, "updated_at": time.Now()}).Error
	})
	if err != nil {
		return nil, wrapChatError("failed to rename group", err)
	}
	return s.ChatByID(ctx, chatID)
}

// AddToGroup adds userID to a group chat. Adding an existing member is a
// no-op. Only the admin may add.
func (s *Store) AddToGroup(ctx context.Context, callerID, chatID, userID string) (*Chat, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chat, err := adminGroup(tx, callerID, chatID)
		if err != nil {
			return err
		}
		users, err := findUsers(tx, []string{userID})
		if err != nil {
			return err
		}
		return tx.Model(chat).Association("Users").Append(users)
	})
	if err != nil {
		return nil, wrapChatError("failed to add to group", err)
	}
	return s.ChatByID(ctx, chatID)
}

// RemoveFromGroup removes userID from a group chat. Only the admin may
// remove; the admin may remove themselves.
func (s *Store) RemoveFromGroup(ctx context.Context, callerID, chatID, userID string) (*Chat, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chat, err := adminGroup(tx, callerID, chatID)
		if err != nil {
			return err
		}
		if _, err := findUsers(tx, []string{userID}); err != nil {
			return err
		}
		return tx.Model(chat).Association("Users").Delete(&User{ID: userID})
	})
	if err != nil {
		return nil, wrapChatError("failed to remove from group", err)
	}
	return s.ChatByID(ctx, chatID)
}

// ChatMembers returns the user ids of a chat's members, sorted.
func (s *Store) ChatMembers(ctx context.Context, chatID string) ([]string, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&Chat{}).Where("id = ?", chatID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to find chat: %w", err)
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	var ids []string
	if err := db.Table("chat_users").Where("chat_id = ?", chatID).Order("user_id").Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list chat members: %w", err)
	}
	return ids, nil
}

// IsMember reports whether userID belongs to chatID.
func (s *Store) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	return isMember(s.db.WithContext(ctx), chatID, userID)
}

func isMember(db *gorm.DB, chatID, userID string) (bool, error) {
	var count int64
	err := db.Table("chat_users").Where("chat_id = ? AND user_id = ?", chatID, userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// adminGroup loads chatID and checks that it is a group administered by
// callerID.
func adminGroup(tx *gorm.DB, callerID, chatID string) (*Chat, error) {
	var chat Chat
	if err := tx.First(&chat, "id = ?", chatID).Error; err != nil {
		return nil, err
	}
	if !chat.IsGroupChat {
		return nil, ErrInvalidGroup
	}
	if chat.AdminID == nil || *chat.AdminID != callerID {
		return nil, ErrNotAdmin
	}
	return &chat, nil
}

// findUsers loads users by id, failing with ErrNotFound if any is missing.
func findUsers(tx *gorm.DB, ids []string) ([]User, error) {
	var users []User
	if err := tx.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) != len(dedupe(ids, "")) {
		return nil, ErrNotFound
	}
	return users, nil
}

// dedupe returns ids without blanks, duplicates or exclude, in order.
func dedupe(ids []string, exclude string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == exclude || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

func wrapChatError(msg string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotAdmin),
		errors.Is(err, ErrInvalidGroup), errors.Is(err, ErrInvalidChat),
		errors.Is(err, ErrNotMember):
		return err
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}
