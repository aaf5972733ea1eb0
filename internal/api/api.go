// Package api implements the REST endpoints for accounts, chats and messages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/store"
)

const maxBodyBytes = 1 << 20

// Invalidator drops cached recipient lists after membership changes.
type Invalidator interface {
	Invalidate(ctx context.Context, chatID string) error
}

// API serves the REST endpoints.
type API struct {
	store  *store.Store
	tokens *auth.JWTManager
	hasher *auth.PasswordHasher
	cache  Invalidator
	logger *slog.Logger
}

// New creates an API. cache may be nil.
func New(s *store.Store, tokens *auth.JWTManager, hasher *auth.PasswordHasher, cache Invalidator, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		store:  s,
		tokens: tokens,
		hasher: hasher,
		cache:  cache,
		logger: logger.With("component", "api"),
	}
}

// Routes registers every endpoint on mux, wrapped in access logging.
func (a *API) Routes(mux *http.ServeMux) {
	protected := func(h http.HandlerFunc) http.Handler {
		return a.accessLog(a.tokens.Middleware(h))
	}
	public := func(h http.HandlerFunc) http.Handler {
		return a.accessLog(h)
	}

	mux.Handle("POST /api/user", public(a.Register))
	mux.Handle("POST /api/user/login", public(a.Login))
	mux.Handle("GET /api/user", protected(a.AllUsers))
	mux.Handle("GET /api/user/search", protected(a.SearchUsers))

	mux.Handle("POST /api/chat", protected(a.AccessChat))
	mux.Handle("GET /api/chat", protected(a.FetchChats))
	mux.Handle("POST /api/chat/group", protected(a.CreateGroup))
	mux.Handle("PUT /api/chat/rename", protected(a.RenameGroup))
	mux.Handle("PUT /api/chat/groupadd", protected(a.AddToGroup))
	mux.Handle("PUT /api/chat/groupremove", protected(a.RemoveFromGroup))

	mux.Handle("POST /api/message", protected(a.SendMessage))
	mux.Handle("GET /api/message/{chatId}", protected(a.AllMessages))

	mux.Handle("/api/", public(a.NotFound))
}

// NotFound answers unknown API paths.
func (a *API) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found - "+r.URL.Path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// fail maps a store or auth error to a response. Unexpected errors are
// logged and reported as 500 without detail.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrUserExists):
		writeError(w, http.StatusBadRequest, "User already exists!")
	case errors.Is(err, store.ErrNotMember), errors.Is(err, store.ErrNotAdmin):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrInvalidGroup), errors.Is(err, store.ErrInvalidChat):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (a *API) invalidate(ctx context.Context, chatID string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Invalidate(ctx, chatID); err != nil {
		a.logger.Warn("failed to invalidate recipient cache", "chat", chatID, "error", err)
	}
}

func caller(r *http.Request) string {
	id, _ := auth.UserIDFrom(r.Context())
	return id
}
