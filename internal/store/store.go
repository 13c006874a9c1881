package store

import (
	"sync"

	"github.com/medisync/realtime/internal/delivery"
	"github.com/medisync/realtime/internal/domain"
)

// Store is the client-side source of truth for rendered messages and
// broadcast notifications. Entries are kept in arrival order; only a
// message's delivery status ever changes after insert.
type Store struct {
	mu sync.RWMutex

	messages      []*domain.ChatMessage
	byID          map[string]*domain.ChatMessage
	notifications []domain.BroadcastNotification

	capacity   int
	echoUpsert bool
}

type Option func(*Store)

// WithCapacity keeps at most n messages and n notifications, evicting the
// oldest. n <= 0 means unbounded.
func WithCapacity(n int) Option {
	return func(s *Store) { s.capacity = n }
}

// WithEchoUpsert makes an incoming message whose id is already stored update
// that entry instead of appending a duplicate.
func WithEchoUpsert() Option {
	return func(s *Store) { s.echoUpsert = true }
}

func New(opts ...Option) *Store {
	s := &Store{byID: make(map[string]*domain.ChatMessage)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendOutgoing inserts a locally sent message before the server has seen it.
func (s *Store) AppendOutgoing(m domain.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(m.Clone())
}

// AppendIncoming inserts a server-pushed message in arrival order. It reports
// false only when echo upsert merged it into an existing entry.
func (s *Store) AppendIncoming(m domain.ChatMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.echoUpsert {
		if cur, ok := s.byID[m.ID]; ok {
			if next, changed := delivery.Advance(cur.Status, m.Status); changed {
				cur.Status = next
			}
			return false
		}
	}
	s.appendLocked(m.Clone())
	return true
}

func (s *Store) appendLocked(m domain.ChatMessage) {
	p := &m
	s.messages = append(s.messages, p)
	// Receipts correlate with the first entry for an id.
	if _, ok := s.byID[m.ID]; !ok {
		s.byID[m.ID] = p
	}

	if s.capacity > 0 && len(s.messages) > s.capacity {
		evicted := s.messages[0]
		s.messages[0] = nil
		s.messages = s.messages[1:]
		if s.byID[evicted.ID] == evicted {
			delete(s.byID, evicted.ID)
			for _, rest := range s.messages {
				if rest.ID == evicted.ID {
					s.byID[rest.ID] = rest
					break
				}
			}
		}
	}
}

// Rebuild replaces the message list with fn's result, computed from a copy of
// the current list while writes are held off. Used to merge fetched history.
func (s *Store) Rebuild(fn func(current []domain.ChatMessage) []domain.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make([]domain.ChatMessage, 0, len(s.messages))
	for _, m := range s.messages {
		current = append(current, m.Clone())
	}

	s.messages = nil
	s.byID = make(map[string]*domain.ChatMessage)
	for _, m := range fn(current) {
		s.appendLocked(m.Clone())
	}
}

// AppendNotification stores a broadcast that already passed recipient matching.
func (s *Store) AppendNotification(n domain.BroadcastNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = append(s.notifications, n.Clone())
	if s.capacity > 0 && len(s.notifications) > s.capacity {
		s.notifications = append([]domain.BroadcastNotification(nil), s.notifications[1:]...)
	}
}

// ApplyStatus advances the status of the message with the given id. It returns
// the resulting message and whether anything changed. Unknown ids are not an
// error: the receipt is simply dropped.
func (s *Store) ApplyStatus(id string, next delivery.Status) (domain.ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return domain.ChatMessage{}, false
	}
	status, changed := delivery.Advance(m.Status, next)
	if changed {
		m.Status = status
	}
	return m.Clone(), changed
}

// MarkDelivered applies a message_delivered receipt. Only a message still in
// sent moves; later states are left alone.
func (s *Store) MarkDelivered(id string) (domain.ChatMessage, bool) {
	return s.ApplyStatus(id, delivery.Delivered)
}

// MarkRead applies a message_read receipt.
func (s *Store) MarkRead(id string) (domain.ChatMessage, bool) {
	return s.ApplyStatus(id, delivery.Read)
}

func (s *Store) Get(id string) (domain.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return domain.ChatMessage{}, false
	}
	return m.Clone(), true
}

// Messages returns a copy of every stored message in arrival order.
func (s *Store) Messages() []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ChatMessage, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.Clone())
	}
	return out
}

// Conversation returns the messages exchanged between a and b in arrival order.
func (s *Store) Conversation(a, b string) []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ChatMessage
	for _, m := range s.messages {
		if m.Between(a, b) {
			out = append(out, m.Clone())
		}
	}
	return out
}

func (s *Store) Notifications() []domain.BroadcastNotification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.BroadcastNotification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n.Clone())
	}
	return out
}

func (s *Store) Len() (messages, notifications int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages), len(s.notifications)
}
