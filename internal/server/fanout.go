package server

import (
	"encoding/json"

	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/rooms"
)

// Deliver sends "message received" to every connection in the inbox room of
// each recipient except the sender. Exclusion is by identity: none of the
// sender's sessions receive the echo. payload is relayed verbatim when set;
// otherwise msg is encoded. Delivery is best-effort and the return value is
// the number of connections the frame was queued to.
func (h *Hub) Deliver(msg protocol.Message, payload json.RawMessage) int {
	if payload == nil {
		raw, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error("failed to encode message", "message", msg.ID, "error", err)
			return 0
		}
		payload = raw
	}
	frame := protocol.EncodeRaw(protocol.EventMessageReceived, payload)

	delivered := 0
	seen := make(map[string]struct{})
	var failed []*Client

	for _, userID := range msg.Recipients() {
		if userID == msg.Sender.ID {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		for _, connID := range h.rooms.MembersOf(rooms.UserRoom(userID)) {
			client := h.client(connID)
			if client == nil {
				continue
			}
			if h.safeSend(client, frame) {
				delivered++
			} else {
				failed = append(failed, client)
			}
		}
	}

	h.removeFailedClients(failed)
	h.logger.Debug("message fanned out", "message", msg.ID, "chat", msg.Chat.ID,
		"recipients", len(seen), "deliveries", delivered)
	return delivered
}
