package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://chat.example.com/", "wss://chat.example.com/ws"},
		{"http://example.com/prefix", "ws://example.com/prefix/ws"},
	}
	for _, tt := range tests {
		got, err := websocketURL(tt.base)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := websocketURL("ftp://example.com")
	assert.Error(t, err)
}

func TestChatTitle(t *testing.T) {
	alice := protocol.User{ID: "a", Name: "Alice"}
	bob := protocol.User{ID: "b", Name: "Bob"}

	direct := protocol.Chat{ID: "c1", Name: "sender", Users: []protocol.User{alice, bob}}
	assert.Equal(t, "Bob", chatTitle(direct, "a"))
	assert.Equal(t, "Alice", chatTitle(direct, "b"))

	group := protocol.Chat{ID: "c2", Name: "friends", IsGroupChat: true, Users: []protocol.User{alice, bob}}
	assert.Equal(t, "friends", chatTitle(group, "a"))

	assert.Equal(t, "x", displayName(protocol.User{ID: "x"}))
}
