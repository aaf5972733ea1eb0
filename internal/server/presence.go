package server

import (
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/rooms"
)

var connectedFrame, _ = protocol.Encode(protocol.EventConnected, nil)

// handleSetup binds user to client: the connection joins the user's inbox
// room and receives "connected". A repeated setup for the same user is a
// fresh, idempotent join; a setup for a different user moves the connection
// so it is never in more than one inbox room.
func (h *Hub) handleSetup(client *Client, user protocol.User) {
	if client.userID != "" && client.userID != user.ID {
		h.rooms.Leave(rooms.UserRoom(client.userID), client.id)
		h.logger.Info("connection rebound to another user", "conn", client.id, "from", client.userID, "to", user.ID)
	}
	if !h.rooms.Join(rooms.UserRoom(user.ID), client.id) {
		return
	}
	client.userID = user.ID

	if !h.safeSend(client, connectedFrame) {
		h.removeFailedClients([]*Client{client})
		return
	}
	h.logger.Debug("setup complete", "conn", client.id, "user", user.ID)
}
