package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Session is an authenticated user and their bearer token.
type Session struct {
	protocol.User
	Token string `json:"token"`
}

// APIError is a non-2xx response from the REST API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// API is a client for the REST endpoints. Login and Register store the
// returned token for later calls.
type API struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewAPI creates a client for the server at baseURL.
func NewAPI(baseURL string, client *http.Client) *API {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

// SetToken sets the bearer token used for authenticated calls.
func (c *API) SetToken(token string) {
	c.token = token
}

// Register creates an account and logs in as it.
func (c *API) Register(ctx context.Context, name, email, password, pic string) (Session, error) {
	var s Session
	body := map[string]string{"name": name, "email": email, "password": password, "pic": pic}
	if err := c.do(ctx, http.MethodPost, "/api/user", body, &s); err != nil {
		return Session{}, err
	}
	c.token = s.Token
	return s, nil
}

// Login authenticates with email and password.
func (c *API) Login(ctx context.Context, email, password string) (Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/user/login", body, &s); err != nil {
		return Session{}, err
	}
	c.token = s.Token
	return s, nil
}

// SearchUsers finds other users whose name or email contains keyword.
func (c *API) SearchUsers(ctx context.Context, keyword string) ([]protocol.User, error) {
	var users []protocol.User
	path := "/api/user?search=" + url.QueryEscape(keyword)
	return users, c.do(ctx, http.MethodGet, path, nil, &users)
}

// AccessChat opens or creates the one-to-one chat with userID.
func (c *API) AccessChat(ctx context.Context, userID string) (protocol.Chat, error) {
	var chat protocol.Chat
	return chat, c.do(ctx, http.MethodPost, "/api/chat", map[string]string{"userId": userID}, &chat)
}

// CreateGroup creates a group chat with the caller as admin.
func (c *API) CreateGroup(ctx context.Context, name string, userIDs []string) (protocol.Chat, error) {
	var chat protocol.Chat
	body := map[string]any{"name": name, "users": userIDs}
	return chat, c.do(ctx, http.MethodPost, "/api/chat/group", body, &chat)
}

// Chats lists the caller's chats, most recently active first.
func (c *API) Chats(ctx context.Context) ([]protocol.Chat, error) {
	var chats []protocol.Chat
	return chats, c.do(ctx, http.MethodGet, "/api/chat", nil, &chats)
}

// Messages returns the history of chatID, oldest first.
func (c *API) Messages(ctx context.Context, chatID string) ([]protocol.Message, error) {
	var msgs []protocol.Message
	return msgs, c.do(ctx, http.MethodGet, "/api/message/"+url.PathEscape(chatID), nil, &msgs)
}

// SendMessage persists a message. The returned envelope is what Adapter.Send
// pushes to the other members.
func (c *API) SendMessage(ctx context.Context, chatID, content string) (protocol.Message, error) {
	var msg protocol.Message
	body := map[string]string{"chatId": chatID, "content": content}
	return msg, c.do(ctx, http.MethodPost, "/api/message", body, &msg)
}

func (c *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
