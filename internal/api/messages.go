package api

import (
	"net/http"
	"strings"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

type sendMessageRequest struct {
	Content string `json:"content"`
	ChatID  string `json:"chatId"`
}

// SendMessage stores a message and returns its envelope, with the chat's
// members populated so the sender can fan it out.
func (a *API) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" || req.ChatID == "" {
		writeError(w, http.StatusBadRequest, "Content and chatId are required")
		return
	}

	msg, err := a.store.CreateMessage(r.Context(), caller(r), req.ChatID, req.Content)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg.Envelope())
}

// AllMessages lists a chat's messages oldest first.
func (a *API) AllMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := a.store.MessagesIn(r.Context(), caller(r), r.PathValue("chatId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]protocol.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Envelope())
	}
	writeJSON(w, http.StatusOK, out)
}
