package server

import (
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/rooms"
)

// TypingKind distinguishes "typing" from "stop typing".
type TypingKind int

const (
	TypingStart TypingKind = iota
	TypingStop
)

var (
	typingFrame, _     = protocol.Encode(protocol.EventTyping, nil)
	stopTypingFrame, _ = protocol.Encode(protocol.EventStopTyping, nil)
)

// RelayTyping forwards a typing signal to every connection in the chat room
// except originConnID. Exclusion is by connection, so the same user's other
// sessions do see it. Nothing is retained between calls.
func (h *Hub) RelayTyping(originConnID, chatID string, kind TypingKind) int {
	frame := typingFrame
	if kind == TypingStop {
		frame = stopTypingFrame
	}

	relayed := 0
	var failed []*Client
	for _, connID := range h.rooms.MembersOf(rooms.ChatRoom(chatID)) {
		if connID == originConnID {
			continue
		}
		client := h.client(connID)
		if client == nil {
			continue
		}
		if h.safeSend(client, frame) {
			relayed++
		} else {
			failed = append(failed, client)
		}
	}

	h.removeFailedClients(failed)
	return relayed
}
