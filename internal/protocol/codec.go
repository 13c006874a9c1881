package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medisync/realtime/internal/delivery"
	"github.com/medisync/realtime/internal/domain"
	"github.com/medisync/realtime/internal/session"
	"github.com/tidwall/gjson"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrMissingField   = errors.New("missing required field")
)

// Event is a decoded inbound frame. Exactly one of the payload fields is set,
// depending on Kind; KindUnknown and KindAuthOK carry none.
type Event struct {
	Kind      Kind
	Message   *domain.ChatMessage
	MessageID string
	Broadcast *domain.BroadcastNotification
}

// Codec translates between wire frames and domain values. The clock and id
// source are swappable so tests can pin them.
type Codec struct {
	now   func() time.Time
	newID func() string
}

type Option func(*Codec)

func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func WithIDSource(newID func() string) Option {
	return func(c *Codec) { c.newID = newID }
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) EncodeAuth(id session.Identity) ([]byte, error) {
	return json.Marshal(AuthMessage{
		Type:   KindAuth,
		UserID: id.ID,
		Role:   id.Role,
	})
}

// PrepareChat fills the correlation id, creation time, message type and
// initial sent status when they are absent.
func (c *Codec) PrepareChat(m domain.ChatMessage) domain.ChatMessage {
	if m.ID == "" {
		m.ID = c.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = c.now()
	}
	if m.MessageType == "" {
		m.MessageType = domain.Direct
	}
	if !m.Status.Valid() {
		m.Status = delivery.Sent
	}
	return m
}

// EncodeChat prepares m and returns it together with its wire form.
func (c *Codec) EncodeChat(m domain.ChatMessage) (domain.ChatMessage, []byte, error) {
	m = c.PrepareChat(m)
	frame := ChatMessageFrame{
		Type:        KindChatMessage,
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Content:     m.Content,
		MessageType: string(m.MessageType),
		Attachments: m.Attachments,
		CreatedAt:   Timestamp{m.CreatedAt},
		ReadStatus:  string(m.Status),
	}
	b, err := json.Marshal(frame)
	if err != nil {
		return m, nil, err
	}
	return m, b, nil
}

func (c *Codec) EncodeBroadcast(n domain.BroadcastNotification) (domain.BroadcastNotification, []byte, error) {
	if n.Timestamp.IsZero() {
		n.Timestamp = c.now()
	}
	if n.Recipients == nil {
		n.Recipients = []string{}
	}
	b, err := json.Marshal(AdminBroadcastFrame{
		Type:       KindAdminBroadcast,
		SenderID:   n.SenderID,
		SenderName: n.SenderName,
		Content:    n.Content,
		Recipients: n.Recipients,
		Timestamp:  Timestamp{n.Timestamp},
	})
	if err != nil {
		return n, nil, err
	}
	return n, b, nil
}

// Decode parses one inbound frame. Parse failures are reported as
// ErrMalformedFrame; unrecognised kinds are not errors and decode to
// KindUnknown.
func (c *Codec) Decode(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return Event{}, ErrMalformedFrame
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Event{}, fmt.Errorf("%w: frame is not an object", ErrMalformedFrame)
	}

	kind := Kind(root.Get("type").String())
	switch kind {
	case KindAuthOK:
		return Event{Kind: KindAuthOK}, nil

	case KindNewMessage:
		var f NewMessageFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if !root.Get("message").IsObject() {
			return Event{}, fmt.Errorf("%w: new_message.message", ErrMissingField)
		}
		m := c.normalizeIncoming(f.Message)
		return Event{Kind: KindNewMessage, Message: &m}, nil

	case KindChatMessage:
		var f ChatMessageFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		m := c.normalizeIncoming(f)
		return Event{Kind: KindChatMessage, Message: &m}, nil

	case KindMessageDelivered, KindMessageRead:
		var f ReceiptFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if f.MessageID == "" {
			return Event{}, fmt.Errorf("%w: %s.messageId", ErrMissingField, kind)
		}
		return Event{Kind: kind, MessageID: f.MessageID}, nil

	case KindAdminBroadcast:
		var f AdminBroadcastFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		ts := f.Timestamp.Time
		if ts.IsZero() {
			ts = c.now()
		}
		return Event{Kind: KindAdminBroadcast, Broadcast: &domain.BroadcastNotification{
			SenderID:   f.SenderID,
			SenderName: f.SenderName,
			Content:    f.Content,
			Recipients: f.Recipients,
			Timestamp:  ts,
		}}, nil
	}

	return Event{Kind: KindUnknown}, nil
}

// normalizeIncoming fills absent fields of a server-pushed message. Inbound
// messages count as delivered unless the server says otherwise.
func (c *Codec) normalizeIncoming(f ChatMessageFrame) domain.ChatMessage {
	m := domain.ChatMessage{
		ID:          f.ID,
		SenderID:    f.SenderID,
		ReceiverID:  f.ReceiverID,
		Content:     f.Content,
		CreatedAt:   f.CreatedAt.Time,
		MessageType: domain.MessageType(f.MessageType),
		Attachments: f.Attachments,
		Status:      delivery.Parse(f.ReadStatus, delivery.Delivered),
	}
	if m.ID == "" {
		m.ID = c.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = c.now()
	}
	if m.MessageType == "" {
		m.MessageType = domain.Direct
	}
	return m
}

// DecodeMessage parses a bare chat message object, as served by the history
// API, applying the same defaults as inbound frames.
func (c *Codec) DecodeMessage(raw []byte) (domain.ChatMessage, error) {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return domain.ChatMessage{}, ErrMalformedFrame
	}
	var f ChatMessageFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return c.normalizeIncoming(f), nil
}
