// Package protocol defines the real-time wire format shared by the server and
// the client adapter. Every websocket text message carries exactly one JSON
// Frame.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event names a real-time event. The names match the browser client's
// socket event vocabulary, spaces included.
type Event string

const (
	// Client → Server
	EventSetup      Event = "setup"
	EventJoinChat   Event = "join chat"
	EventNewMessage Event = "new message"

	// Server → Client
	EventConnected       Event = "connected"
	EventMessageReceived Event = "message received"

	// Both directions. Client → Server carries the chat id, Server → Client
	// carries nothing.
	EventTyping     Event = "typing"
	EventStopTyping Event = "stop typing"
)

var (
	// ErrMalformedFrame is returned when a frame is not valid JSON or has no event name.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrMissingUser is returned when a setup payload carries no user id.
	ErrMissingUser = errors.New("user id is required")
	// ErrMissingChat is returned when a payload carries no chat id.
	ErrMissingChat = errors.New("chat id is required")
	// ErrMissingSender is returned when a message envelope has no sender id.
	ErrMissingSender = errors.New("sender id is required")
)

// Frame is the top-level wire format.
type Frame struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// User is the public identity of an account as it travels over the wire.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Pic   string `json:"pic,omitempty"`
}

// Chat is a one-to-one or group conversation. Users is the recipient list.
type Chat struct {
	ID            string    `json:"_id"`
	Name          string    `json:"chatName,omitempty"`
	IsGroupChat   bool      `json:"isGroupChat"`
	Users         []User    `json:"users,omitempty"`
	GroupAdmin    *User     `json:"groupAdmin,omitempty"`
	LatestMessage *Message  `json:"latestMessage,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitzero"`
}

// Message is the envelope fanned out to recipients. The real-time layer never
// mutates it.
type Message struct {
	ID        string    `json:"_id"`
	Sender    User      `json:"sender"`
	Content   string    `json:"content"`
	Chat      Chat      `json:"chat"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// Recipients returns the user ids of the message's conversation members.
func (m Message) Recipients() []string {
	ids := make([]string, 0, len(m.Chat.Users))
	for _, u := range m.Chat.Users {
		if u.ID != "" {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

// Encode marshals a frame for event with data as its payload. A nil data
// produces a payload-less frame.
func Encode(event Event, data any) ([]byte, error) {
	frame := Frame{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %q payload: %w", event, err)
		}
		frame.Data = raw
	}
	return json.Marshal(frame)
}

// EncodeRaw wraps an already encoded payload in a frame without re-encoding it.
func EncodeRaw(event Event, data json.RawMessage) []byte {
	out, _ := json.Marshal(Frame{Event: event, Data: data})
	return out
}

// Decode parses a single frame.
func Decode(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if frame.Event == "" {
		return Frame{}, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	}
	return frame, nil
}

// DecodeUser parses a setup payload.
func DecodeUser(data json.RawMessage) (User, error) {
	var u User
	if len(data) == 0 {
		return User{}, ErrMissingUser
	}
	if err := json.Unmarshal(data, &u); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	if strings.TrimSpace(u.ID) == "" {
		return User{}, ErrMissingUser
	}
	return u, nil
}

// DecodeChatID parses a payload that is a bare chat id string.
func DecodeChatID(data json.RawMessage) (string, error) {
	var id string
	if len(data) == 0 {
		return "", ErrMissingChat
	}
	if err := json.Unmarshal(data, &id); err != nil {
		return "", fmt.Errorf("decode chat id: %w", err)
	}
	if strings.TrimSpace(id) == "" {
		return "", ErrMissingChat
	}
	return id, nil
}

// DecodeMessage parses a message envelope and checks the fields routing needs.
// An empty recipient list is not an error here; the caller may resolve it.
func DecodeMessage(data json.RawMessage) (Message, error) {
	var m Message
	if len(data) == 0 {
		return Message{}, ErrMissingChat
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Chat.ID == "" {
		return Message{}, ErrMissingChat
	}
	if m.Sender.ID == "" {
		return Message{}, ErrMissingSender
	}
	return m, nil
}
