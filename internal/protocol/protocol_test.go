package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Event
		wantErr bool
	}{
		{name: "setup", raw: `{"event":"setup","data":{"_id":"u1"}}`, want: EventSetup},
		{name: "payload-less", raw: `{"event":"connected"}`, want: EventConnected},
		{name: "event with space", raw: `{"event":"join chat","data":"c1"}`, want: EventJoinChat},
		{name: "not json", raw: `hello`, wantErr: true},
		{name: "missing event", raw: `{"data":"c1"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Decode([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedFrame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, frame.Event)
		})
	}
}

func TestEncodePayloadless(t *testing.T) {
	raw, err := Encode(EventConnected, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"connected"}`, string(raw))
}

func TestEncodeRawKeepsPayloadBytes(t *testing.T) {
	payload := json.RawMessage(`{"_id":"m1","extra":{"kept":true}}`)
	frame, err := Decode(EncodeRaw(EventMessageReceived, payload))
	require.NoError(t, err)
	assert.Equal(t, EventMessageReceived, frame.Event)
	assert.JSONEq(t, string(payload), string(frame.Data))
}

func TestDecodeUser(t *testing.T) {
	u, err := DecodeUser(json.RawMessage(`{"_id":"u1","name":"Ada"}`))
	require.NoError(t, err)
	assert.Equal(t, User{ID: "u1", Name: "Ada"}, u)

	_, err = DecodeUser(json.RawMessage(`{"name":"nobody"}`))
	assert.ErrorIs(t, err, ErrMissingUser)

	_, err = DecodeUser(nil)
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestDecodeChatID(t *testing.T) {
	id, err := DecodeChatID(json.RawMessage(`"c42"`))
	require.NoError(t, err)
	assert.Equal(t, "c42", id)

	_, err = DecodeChatID(json.RawMessage(`"  "`))
	assert.ErrorIs(t, err, ErrMissingChat)

	_, err = DecodeChatID(json.RawMessage(`{"_id":"c42"}`))
	assert.Error(t, err)
}

func TestDecodeMessage(t *testing.T) {
	raw := json.RawMessage(`{
		"_id": "m1",
		"sender": {"_id": "a"},
		"content": "hi",
		"chat": {"_id": "c1", "users": [{"_id": "a"}, {"_id": "b"}, {"name": "no id"}]}
	}`)
	m, err := DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "c1", m.Chat.ID)
	assert.Equal(t, []string{"a", "b"}, m.Recipients())

	_, err = DecodeMessage(json.RawMessage(`{"_id":"m1","sender":{"_id":"a"}}`))
	assert.ErrorIs(t, err, ErrMissingChat)

	_, err = DecodeMessage(json.RawMessage(`{"_id":"m1","chat":{"_id":"c1"}}`))
	assert.ErrorIs(t, err, ErrMissingSender)
}
