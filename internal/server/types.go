package server

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// EventKind enumerates the inbound events the hub loop dispatches.
type EventKind int

const (
	Setup EventKind = iota
	JoinChat
	NewMessage
	Typing
	StopTyping
	Disconnect
)

func (k EventKind) String() string {
	switch k {
	case Setup:
		return "setup"
	case JoinChat:
		return "join chat"
	case NewMessage:
		return "new message"
	case Typing:
		return "typing"
	case StopTyping:
		return "stop typing"
	case Disconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is a decoded inbound event bound to the connection it arrived on.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind    EventKind
	Client  *Client
	User    protocol.User
	ChatID  string
	Message protocol.Message
	// Payload is the envelope exactly as the sender encoded it; it is relayed
	// verbatim in "message received".
	Payload json.RawMessage
}

// RecipientLookup resolves the member user ids of a conversation. It backs
// "new message" envelopes that arrive without a recipient list.
type RecipientLookup interface {
	Recipients(ctx context.Context, chatID string) ([]string, error)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
