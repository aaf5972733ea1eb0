package api

import (
	"net/http"
	"strings"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

type accessChatRequest struct {
	UserID string `json:"userId"`
}

type createGroupRequest struct {
	Name  string   `json:"name"`
	Users []string `json:"users"`
}

type renameRequest struct {
	ChatID   string `json:"chatId"`
	ChatName string `json:"chatName"`
}

type membershipRequest struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// AccessChat returns the one-to-one chat with userId, creating it if needed.
func (a *API) AccessChat(w http.ResponseWriter, r *http.Request) {
	var req accessChatRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	chat, created, err := a.store.AccessChat(r.Context(), caller(r), req.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, chat.Wire())
}

// FetchChats lists the caller's chats, most recently active first.
func (a *API) FetchChats(w http.ResponseWriter, r *http.Request) {
	chats, err := a.store.ChatsFor(r.Context(), caller(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]protocol.Chat, 0, len(chats))
	for _, c := range chats {
		out = append(out, c.Wire())
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateGroup creates a group chat administered by the caller.
func (a *API) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || len(req.Users) < 2 {
		writeError(w, http.StatusBadRequest, "Please enter chat name and select users to create a group")
		return
	}

	chat, err := a.store.CreateGroup(r.Context(), caller(r), req.Name, req.Users)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, chat.Wire())
}

// RenameGroup renames a group chat.
func (a *API) RenameGroup(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ChatID == "" || strings.TrimSpace(req.ChatName) == "" {
		writeError(w, http.StatusBadRequest, "Chat ID and chat name are required")
		return
	}

	chat, err := a.store.RenameGroup(r.Context(), caller(r), req.ChatID, req.ChatName)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chat.Wire())
}

// AddToGroup adds a user to a group chat.
func (a *API) AddToGroup(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if !decode(w, r, &req) || !requireMembershipFields(w, req) {
		return
	}

	chat, err := a.store.AddToGroup(r.Context(), caller(r), req.ChatID, req.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.invalidate(r.Context(), req.ChatID)
	writeJSON(w, http.StatusOK, chat.Wire())
}

// RemoveFromGroup removes a user from a group chat.
func (a *API) RemoveFromGroup(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if !decode(w, r, &req) || !requireMembershipFields(w, req) {
		return
	}

	chat, err := a.store.RemoveFromGroup(r.Context(), caller(r), req.ChatID, req.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.invalidate(r.Context(), req.ChatID)
	writeJSON(w, http.StatusOK, chat.Wire())
}

func requireMembershipFields(w http.ResponseWriter, req membershipRequest) bool {
	if req.ChatID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "Chat ID and user ID are required")
		return false
	}
	return true
}
