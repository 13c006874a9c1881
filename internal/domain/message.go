package domain

import (
	"time"

	"github.com/medisync/realtime/internal/delivery"
)

type MessageType string

const (
	Direct    MessageType = "direct"
	Emergency MessageType = "emergency"
)

// ChatMessage Invariants:
// 1. Status only advances sent -> delivered -> read (see package delivery).
// 2. Only Status changes after the message is stored.
// 3. Locally sent messages carry a client-generated ID used to correlate receipts.
type ChatMessage struct {
	ID          string          `json:"id"`
	SenderID    string          `json:"senderId"`
	ReceiverID  string          `json:"receiverId"`
	Content     string          `json:"content"`
	CreatedAt   time.Time       `json:"createdAt"`
	MessageType MessageType     `json:"messageType"`
	Attachments []string        `json:"attachments,omitempty"`
	Status      delivery.Status `json:"readStatus"`
}

// Between reports whether the message belongs to the conversation of a and b.
func (m ChatMessage) Between(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// Clone returns a copy that shares no slices with m.
func (m ChatMessage) Clone() ChatMessage {
	if m.Attachments != nil {
		m.Attachments = append([]string(nil), m.Attachments...)
	}
	return m
}

type BroadcastNotification struct {
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Recipients []string  `json:"recipients"`
	Timestamp  time.Time `json:"timestamp"`
}

func (n BroadcastNotification) Clone() BroadcastNotification {
	if n.Recipients != nil {
		n.Recipients = append([]string(nil), n.Recipients...)
	}
	return n
}

// ValidateChat checks an outbound chat intent at an input boundary.
func ValidateChat(receiverID, content string) error {
	if receiverID == "" {
		return ErrMissingReceiver
	}
	if content == "" {
		return ErrEmptyContent
	}
	return nil
}

// ValidateBroadcast checks an outbound broadcast intent at an input boundary.
func ValidateBroadcast(content string, recipients []string) error {
	if content == "" {
		return ErrEmptyContent
	}
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	return nil
}
