package store

import (
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// User is a registered account.
type User struct {
	ID           string `gorm:"primarykey;size:36"`
	Name         string `gorm:"size:100;not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Pic          string `gorm:"size:500"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for User model.
func (User) TableName() string {
	return "users"
}

// Chat is a one-to-one or group conversation.
type Chat struct {
	ID              string   `gorm:"primarykey;size:36"`
	Name            string   `gorm:"size:100"`
	IsGroupChat     bool     `gorm:"not null;default:false;index"`
	Users           []User   `gorm:"many2many:chat_users;"`
	AdminID         *string  `gorm:"size:36"`
	Admin           *User    `gorm:"foreignKey:AdminID"`
	LatestMessageID *string  `gorm:"size:36"`
	LatestMessage   *Message `gorm:"foreignKey:LatestMessageID"`
	CreatedAt       time.Time
	UpdatedAt       time.Time `gorm:"index"`
}

// TableName returns the table name for Chat model.
func (Chat) TableName() string {
	return "chats"
}

// Message is one text message in a chat.
type Message struct {
	ID        string    `gorm:"primarykey;size:36"`
	SenderID  string    `gorm:"size:36;not null;index"`
	Sender    *User     `gorm:"foreignKey:SenderID"`
	ChatID    string    `gorm:"size:36;not null;index"`
	Chat      *Chat     `gorm:"foreignKey:ChatID"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName returns the table name for Message model.
func (Message) TableName() string {
	return "messages"
}

// Public returns the wire form of u, without credentials.
func (u User) Public() protocol.User {
	return protocol.User{ID: u.ID, Name: u.Name, Email: u.Email, Pic: u.Pic}
}

// Wire returns the wire form of c with whatever associations are loaded.
func (c Chat) Wire() protocol.Chat {
	out := protocol.Chat{
		ID:          c.ID,
		Name:        c.Name,
		IsGroupChat: c.IsGroupChat,
		UpdatedAt:   c.UpdatedAt,
	}
	for _, u := range c.Users {
		out.Users = append(out.Users, u.Public())
	}
	if c.Admin != nil {
		admin := c.Admin.Public()
		out.GroupAdmin = &admin
	}
	if c.LatestMessage != nil {
		latest := c.LatestMessage.Envelope()
		out.LatestMessage = &latest
	}
	return out
}

// Envelope returns the wire form of m. The chat is included when loaded.
func (m Message) Envelope() protocol.Message {
	out := protocol.Message{
		ID:        m.ID,
		Sender:    protocol.User{ID: m.SenderID},
		Content:   m.Content,
		Chat:      protocol.Chat{ID: m.ChatID},
		CreatedAt: m.CreatedAt,
	}
	if m.Sender != nil {
		out.Sender = m.Sender.Public()
	}
	if m.Chat != nil {
		out.Chat = m.Chat.Wire()
	}
	return out
}
