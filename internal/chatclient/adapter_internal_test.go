package chatclient

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

func newOfflineAdapter() *Adapter {
	return NewAdapter(protocol.User{ID: "alice"}, Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func received(t *testing.T, id, chatID string) protocol.Frame {
	t.Helper()
	data, err := json.Marshal(protocol.Message{
		ID:     id,
		Sender: protocol.User{ID: "bob"},
		Chat:   protocol.Chat{ID: chatID},
	})
	require.NoError(t, err)
	return protocol.Frame{Event: protocol.EventMessageReceived, Data: data}
}

func ids(msgs []protocol.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "unknown", State(7).String())
}

func TestReceiveRoutesByOpenChat(t *testing.T) {
	a := newOfflineAdapter()
	require.NoError(t, a.SelectChat("c1", []protocol.Message{{ID: "m0", Chat: protocol.Chat{ID: "c1"}}}))

	a.handle(received(t, "m1", "c1"))
	a.handle(received(t, "m2", "c2"))
	a.handle(received(t, "m3", "c3"))
	a.handle(received(t, "m2", "c2"))

	assert.Equal(t, []string{"m0", "m1"}, ids(a.Thread()))
	assert.Equal(t, []string{"m3", "m2"}, ids(a.Notifications()), "newest first, deduplicated")

	a.DismissNotification("m3")
	assert.Equal(t, []string{"m2"}, ids(a.Notifications()))

	a.handle(received(t, "m4", "c2"))
	a.DismissChat("c2")
	assert.Empty(t, a.Notifications())
}

func TestSelectChatReplacesThread(t *testing.T) {
	a := newOfflineAdapter()
	require.NoError(t, a.SelectChat("c1", nil))
	a.handle(received(t, "m1", "c1"))

	history := []protocol.Message{{ID: "h1", Chat: protocol.Chat{ID: "c2"}}}
	require.NoError(t, a.SelectChat("c2", history))
	history[0].ID = "mutated"

	assert.Equal(t, "c2", a.SelectedChat())
	assert.Equal(t, []string{"h1"}, ids(a.Thread()))

	a.handle(received(t, "m2", "c1"))
	assert.Equal(t, []string{"m2"}, ids(a.Notifications()))
}

func TestHandleControlEvents(t *testing.T) {
	a := newOfflineAdapter()

	a.handle(protocol.Frame{Event: protocol.EventConnected})
	assert.True(t, a.Ready())

	a.handle(protocol.Frame{Event: protocol.EventTyping})
	assert.True(t, a.PeerTyping())
	a.handle(protocol.Frame{Event: protocol.EventStopTyping})
	assert.False(t, a.PeerTyping())

	select {
	case <-a.Updates():
	default:
		t.Fatal("expected an update signal")
	}

	a.handle(protocol.Frame{Event: protocol.EventMessageReceived, Data: json.RawMessage(`{"_id":"x"}`)})
	assert.Empty(t, a.Notifications(), "message without chat is dropped")
}

func TestOfflineOperations(t *testing.T) {
	a := newOfflineAdapter()
	assert.Equal(t, Disconnected, a.State())
	require.NoError(t, a.SelectChat("c1", nil))

	a.Keystroke()
	assert.Empty(t, a.debouncers, "no typing signals while offline")

	err := a.Send(protocol.Message{ID: "m1", Chat: protocol.Chat{ID: "c1"}})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, []string{"m1"}, ids(a.Thread()))

	assert.NoError(t, a.Close())
}
