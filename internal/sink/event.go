package sink

import (
	"context"
	"errors"
	"time"

	"github.com/medisync/realtime/internal/domain"
)

type EventType string

const (
	MessageStored      EventType = "message_stored"
	StatusChanged      EventType = "status_changed"
	NotificationStored EventType = "notification_stored"
	ConnectionChanged  EventType = "connection_state"
)

// Event is what the messaging client reports to the outside world after it
// has changed its own state.
type Event struct {
	Type         EventType                     `json:"type"`
	UserID       string                        `json:"userId,omitempty"`
	At           time.Time                     `json:"at"`
	Direction    string                        `json:"direction,omitempty"`
	Message      *domain.ChatMessage           `json:"message,omitempty"`
	Notification *domain.BroadcastNotification `json:"notification,omitempty"`
	State        string                        `json:"state,omitempty"`
}

const (
	Outgoing = "outgoing"
	Incoming = "incoming"
)

type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
