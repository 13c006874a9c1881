package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/medisync/realtime/internal/delivery"
	"github.com/medisync/realtime/internal/domain"
	"github.com/medisync/realtime/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func testCodec() *Codec {
	return NewCodec(
		WithClock(func() time.Time { return fixedNow }),
		WithIDSource(func() string { return "gen-1" }),
	)
}

func TestEncodeAuth(t *testing.T) {
	b, err := testCodec().EncodeAuth(session.Identity{ID: "p1", Role: "patient"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"auth","userId":"p1","role":"patient"}`, string(b))
}

func TestEncodeChat_InjectsDefaults(t *testing.T) {
	m, b, err := testCodec().EncodeChat(domain.ChatMessage{
		SenderID:   "p1",
		ReceiverID: "doctor1",
		Content:    "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, "gen-1", m.ID)
	assert.Equal(t, delivery.Sent, m.Status)
	assert.Equal(t, domain.Direct, m.MessageType)
	assert.Equal(t, fixedNow, m.CreatedAt)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))
	assert.Equal(t, "chat_message", wire["type"])
	assert.Equal(t, "gen-1", wire["id"])
	assert.Equal(t, "sent", wire["readStatus"])
	assert.Equal(t, "2026-03-01T09:30:00Z", wire["createdAt"])
	assert.NotContains(t, wire, "attachments")
}

func TestEncodeChat_KeepsPresentFields(t *testing.T) {
	at := fixedNow.Add(-time.Hour)
	m, _, err := testCodec().EncodeChat(domain.ChatMessage{
		ID:          "local-7",
		SenderID:    "d1",
		ReceiverID:  "p1",
		Content:     "come in",
		CreatedAt:   at,
		MessageType: domain.Emergency,
		Attachments: []string{"scan.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, "local-7", m.ID)
	assert.Equal(t, at, m.CreatedAt)
	assert.Equal(t, domain.Emergency, m.MessageType)
}

func TestEncodeBroadcast(t *testing.T) {
	n, b, err := testCodec().EncodeBroadcast(domain.BroadcastNotification{
		SenderID:   "a1",
		SenderName: "Admin",
		Content:    "Clinic closes early",
		Recipients: []string{"patients"},
	})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, n.Timestamp)
	assert.JSONEq(t, `{
		"type":"admin_broadcast","senderId":"a1","senderName":"Admin",
		"content":"Clinic closes early","recipients":["patients"],
		"timestamp":"2026-03-01T09:30:00Z"
	}`, string(b))
}

func TestDecode_NewMessageDefaults(t *testing.T) {
	ev, err := testCodec().Decode([]byte(`{"type":"new_message","message":{"senderId":"doctor1","receiverId":"p1","content":"hi"}}`))
	require.NoError(t, err)
	require.Equal(t, KindNewMessage, ev.Kind)
	require.NotNil(t, ev.Message)

	assert.Equal(t, "gen-1", ev.Message.ID)
	assert.Equal(t, fixedNow, ev.Message.CreatedAt)
	assert.Equal(t, delivery.Delivered, ev.Message.Status)
	assert.Equal(t, "doctor1", ev.Message.SenderID)
}

func TestDecode_NewMessageKeepsServerFields(t *testing.T) {
	ev, err := testCodec().Decode([]byte(`{"type":"new_message","message":{"id":"m9","senderId":"d","receiverId":"p","content":"x","createdAt":"2026-01-02T03:04:05.123Z","readStatus":"read"}}`))
	require.NoError(t, err)
	assert.Equal(t, "m9", ev.Message.ID)
	assert.Equal(t, delivery.Read, ev.Message.Status)
	assert.Equal(t, 123*int(time.Millisecond), ev.Message.CreatedAt.Nanosecond())
}

func TestDecode_EpochMillis(t *testing.T) {
	ev, err := testCodec().Decode([]byte(`{"type":"chat_message","senderId":"d","receiverId":"p","content":"x","createdAt":1767225600000}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1767225600000), ev.Message.CreatedAt.UnixMilli())
}

func TestDecode_Receipts(t *testing.T) {
	c := testCodec()

	ev, err := c.Decode([]byte(`{"type":"message_delivered","messageId":"X"}`))
	require.NoError(t, err)
	assert.Equal(t, Event{Kind: KindMessageDelivered, MessageID: "X"}, ev)

	ev, err = c.Decode([]byte(`{"type":"message_read","messageId":"X"}`))
	require.NoError(t, err)
	assert.Equal(t, Event{Kind: KindMessageRead, MessageID: "X"}, ev)

	_, err = c.Decode([]byte(`{"type":"message_read"}`))
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestDecode_Broadcast(t *testing.T) {
	ev, err := testCodec().Decode([]byte(`{"type":"admin_broadcast","senderId":"a1","senderName":"Admin","content":"Clinic closes early","recipients":["patients"]}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Broadcast)
	assert.Equal(t, []string{"patients"}, ev.Broadcast.Recipients)
	assert.Equal(t, fixedNow, ev.Broadcast.Timestamp)
}

func TestDecode_Malformed(t *testing.T) {
	c := testCodec()
	for _, raw := range []string{
		`not json`,
		`{"type":"new_message"`,
		`[1,2,3]`,
		`{"type":"message_delivered","messageId":42}`,
		`{"type":"chat_message","createdAt":"yesterday"}`,
		`{"type":"new_message","message":"oops"}`,
		``,
	} {
		_, err := c.Decode([]byte(raw))
		assert.Error(t, err, "frame %q", raw)
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	c := testCodec()
	for _, raw := range []string{`{"type":"typing","userId":"d1"}`, `{"content":"no type"}`} {
		ev, err := c.Decode([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, KindUnknown, ev.Kind)
	}
}

func TestDecode_RoundTripOwnChat(t *testing.T) {
	c := testCodec()
	sent, b, err := c.EncodeChat(domain.ChatMessage{SenderID: "p1", ReceiverID: "doctor1", Content: "hello"})
	require.NoError(t, err)

	ev, err := c.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, sent.ID, ev.Message.ID)
	assert.Equal(t, delivery.Sent, ev.Message.Status)
}

func TestDecodeMessage(t *testing.T) {
	m, err := testCodec().DecodeMessage([]byte(`{"id":"h1","senderId":"doctor1","receiverId":"p1","content":"see you","createdAt":1767225600000,"readStatus":"read"}`))
	require.NoError(t, err)
	assert.Equal(t, "h1", m.ID)
	assert.Equal(t, delivery.Read, m.Status)
	assert.Equal(t, domain.Direct, m.MessageType)

	_, err = testCodec().DecodeMessage([]byte(`["h1"]`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}
