package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Kind identifies the type of a websocket frame. It travels in the "type"
// field of every frame.
type Kind string

const (
	// Client -> Server
	KindAuth Kind = "auth"

	// Both directions
	KindChatMessage    Kind = "chat_message"
	KindAdminBroadcast Kind = "admin_broadcast"

	// Server -> Client
	KindAuthOK           Kind = "auth_ok"
	KindNewMessage       Kind = "new_message"
	KindMessageDelivered Kind = "message_delivered"
	KindMessageRead      Kind = "message_read"

	KindUnknown Kind = "unknown"
)

func (k Kind) Known() bool {
	switch k {
	case KindAuth, KindAuthOK, KindChatMessage, KindNewMessage,
		KindMessageDelivered, KindMessageRead, KindAdminBroadcast:
		return true
	}
	return false
}

// AuthMessage is sent by the client as soon as the transport opens.
type AuthMessage struct {
	Type   Kind   `json:"type"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// ChatMessageFrame is a direct message. Clients send it flat; servers may
// send it flat or wrapped in NewMessageFrame.
type ChatMessageFrame struct {
	Type        Kind      `json:"type,omitempty"`
	ID          string    `json:"id,omitempty"`
	SenderID    string    `json:"senderId"`
	ReceiverID  string    `json:"receiverId"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
	CreatedAt   Timestamp `json:"createdAt"`
	ReadStatus  string    `json:"readStatus,omitempty"`
}

// NewMessageFrame is the server push for an incoming chat message.
type NewMessageFrame struct {
	Type    Kind             `json:"type"`
	Message ChatMessageFrame `json:"message"`
}

// ReceiptFrame carries message_delivered and message_read.
type ReceiptFrame struct {
	Type      Kind   `json:"type"`
	MessageID string `json:"messageId"`
}

type AdminBroadcastFrame struct {
	Type       Kind      `json:"type"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Recipients []string  `json:"recipients"`
	Timestamp  Timestamp `json:"timestamp"`
}

// Timestamp accepts RFC 3339 strings or epoch milliseconds on the way in and
// always writes RFC 3339.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" || string(b) == `""` {
		t.Time = time.Time{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	t.Time = time.UnixMilli(ms)
	return nil
}
