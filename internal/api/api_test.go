package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/store"
)

type recordingInvalidator struct {
	mu    sync.Mutex
	chats []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, chatID)
	return nil
}

type testAPI struct {
	server *httptest.Server
	cache  *recordingInvalidator
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()

	s, err := store.Open(":memory:", "info")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cache := &recordingInvalidator{}
	a := New(s, auth.NewJWTManager("test-secret", time.Hour), auth.NewPasswordHasherWithCost(bcrypt.MinCost),
		cache, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	a.Routes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return &testAPI{server: ts, cache: cache}
}

// do sends body as JSON and decodes the response into out when it is non-nil.
func (ta *testAPI) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ta.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ta.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ta *testAPI) register(t *testing.T, name string) AuthResponse {
	t.Helper()
	var resp AuthResponse
	status := ta.do(t, http.MethodPost, "/api/user", "", map[string]string{
		"name": name, "email": name + "@example.com", "password": "pw-" + name,
	}, &resp)
	require.Equal(t, http.StatusCreated, status)
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	ta := setupTestAPI(t)

	alice := ta.register(t, "alice")
	assert.NotEmpty(t, alice.ID)
	assert.NotEmpty(t, alice.Token)
	assert.Equal(t, "alice@example.com", alice.Email)

	var msg map[string]string
	status := ta.do(t, http.MethodPost, "/api/user", "", map[string]string{
		"name": "again", "email": "ALICE@example.com", "password": "x",
	}, &msg)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "User already exists!", msg["message"])

	status = ta.do(t, http.MethodPost, "/api/user", "", map[string]string{"name": "no email"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var login AuthResponse
	status = ta.do(t, http.MethodPost, "/api/user/login", "", map[string]string{
		"email": "alice@example.com", "password": "pw-alice",
	}, &login)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, alice.ID, login.ID)
	assert.NotEmpty(t, login.Token)

	status = ta.do(t, http.MethodPost, "/api/user/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status = ta.do(t, http.MethodPost, "/api/user/login", "", map[string]string{
		"email": "nobody@example.com", "password": "pw",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUserSearch(t *testing.T) {
	ta := setupTestAPI(t)
	alice := ta.register(t, "alice")
	ta.register(t, "bob")
	ta.register(t, "bobby")

	var users []protocol.User
	status := ta.do(t, http.MethodGet, "/api/user?search=BOB", alice.Token, nil, &users)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, users, 2)

	status = ta.do(t, http.MethodGet, "/api/user/search?name=alice", alice.Token, nil, &users)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, users)

	status = ta.do(t, http.MethodGet, "/api/user", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestChatsAndMessages(t *testing.T) {
	ta := setupTestAPI(t)
	alice, bob, eve := ta.register(t, "alice"), ta.register(t, "bob"), ta.register(t, "eve")

	var chat protocol.Chat
	status := ta.do(t, http.MethodPost, "/api/chat", alice.Token, map[string]string{"userId": bob.ID}, &chat)
	require.Equal(t, http.StatusCreated, status)
	assert.Len(t, chat.Users, 2)

	var again protocol.Chat
	status = ta.do(t, http.MethodPost, "/api/chat", bob.Token, map[string]string{"userId": alice.ID}, &again)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, chat.ID, again.ID)

	status = ta.do(t, http.MethodPost, "/api/chat", alice.Token, map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var sent protocol.Message
	status = ta.do(t, http.MethodPost, "/api/message", alice.Token,
		map[string]string{"content": "hello bob", "chatId": chat.ID}, &sent)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello bob", sent.Content)
	assert.Equal(t, "alice", sent.Sender.Name)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, sent.Recipients())

	status = ta.do(t, http.MethodPost, "/api/message", eve.Token,
		map[string]string{"content": "hi", "chatId": chat.ID}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	var history []protocol.Message
	status = ta.do(t, http.MethodGet, "/api/message/"+chat.ID, bob.Token, nil, &history)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, history, 1)
	assert.Equal(t, sent.ID, history[0].ID)

	status = ta.do(t, http.MethodGet, "/api/message/"+chat.ID, eve.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status = ta.do(t, http.MethodGet, "/api/message/missing", bob.Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	var chats []protocol.Chat
	status = ta.do(t, http.MethodGet, "/api/chat", bob.Token, nil, &chats)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, chats, 1)
	require.NotNil(t, chats[0].LatestMessage)
	assert.Equal(t, "hello bob", chats[0].LatestMessage.Content)
}

func TestGroupEndpoints(t *testing.T) {
	ta := setupTestAPI(t)
	alice, bob := ta.register(t, "alice"), ta.register(t, "bob")
	carol, dave := ta.register(t, "carol"), ta.register(t, "dave")

	status := ta.do(t, http.MethodPost, "/api/chat/group", alice.Token,
		map[string]any{"name": "solo", "users": []string{bob.ID}}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var group protocol.Chat
	status = ta.do(t, http.MethodPost, "/api/chat/group", alice.Token,
		map[string]any{"name": "friends", "users": []string{bob.ID, carol.ID}}, &group)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, group.IsGroupChat)
	require.NotNil(t, group.GroupAdmin)
	assert.Equal(t, alice.ID, group.GroupAdmin.ID)
	assert.Len(t, group.Users, 3)

	var renamed protocol.Chat
	status = ta.do(t, http.MethodPut, "/api/chat/rename", alice.Token,
		map[string]string{"chatId": group.ID, "chatName": "best friends"}, &renamed)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "best friends", renamed.Name)

	status = ta.do(t, http.MethodPut, "/api/chat/groupadd", bob.Token,
		map[string]string{"chatId": group.ID, "userId": dave.ID}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	var added protocol.Chat
	status = ta.do(t, http.MethodPut, "/api/chat/groupadd", alice.Token,
		map[string]string{"chatId": group.ID, "userId": dave.ID}, &added)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, added.Users, 4)

	var removed protocol.Chat
	status = ta.do(t, http.MethodPut, "/api/chat/groupremove", alice.Token,
		map[string]string{"chatId": group.ID, "userId": carol.ID}, &removed)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, removed.Users, 3)

	status = ta.do(t, http.MethodPut, "/api/chat/groupremove", alice.Token,
		map[string]string{"chatId": "missing", "userId": carol.ID}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	ta.cache.mu.Lock()
	defer ta.cache.mu.Unlock()
	assert.Equal(t, []string{group.ID, group.ID}, ta.cache.chats)
}

func TestUnknownAPIPath(t *testing.T) {
	ta := setupTestAPI(t)

	var body map[string]string
	status := ta.do(t, http.MethodGet, "/api/nope", "", nil, &body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not Found - /api/nope", body["message"])
}
