package session

import (
	"context"
	"errors"
	"sync"
)

var ErrInvalidIdentity = errors.New("invalid identity")

// Identity is the authenticated user a connection speaks for. It is fixed for
// the life of one connection; a different identity means a new connection.
type Identity struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

func (i Identity) Validate() error {
	if i.ID == "" || i.Role == "" {
		return ErrInvalidIdentity
	}
	return nil
}

// DisplayName is used as senderName on outbound broadcasts.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ID
}

// Provider supplies the current session identity and every later change.
// A nil identity on the channel means the user logged out.
type Provider interface {
	Updates(ctx context.Context) <-chan *Identity
}

// Static is a Provider that never changes.
type Static struct {
	Identity *Identity
}

func (s Static) Updates(ctx context.Context) <-chan *Identity {
	ch := make(chan *Identity, 1)
	ch <- s.Identity
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

// Feed is a Provider driven by Set calls, e.g. from a login/logout flow.
// Slow subscribers only ever see the latest identity.
type Feed struct {
	mu      sync.Mutex
	current *Identity
	subs    map[chan *Identity]struct{}
}

func NewFeed(initial *Identity) *Feed {
	return &Feed{
		current: initial,
		subs:    make(map[chan *Identity]struct{}),
	}
}

func (f *Feed) Set(id *Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = id
	for ch := range f.subs {
		push(ch, id)
	}
}

func (f *Feed) Current() *Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Feed) Updates(ctx context.Context) <-chan *Identity {
	ch := make(chan *Identity, 1)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	push(ch, f.current)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, ch)
		close(ch)
		f.mu.Unlock()
	}()
	return ch
}

// push replaces any undelivered value with id. Callers hold f.mu.
func push(ch chan *Identity, id *Identity) {
	select {
	case <-ch:
	default:
	}
	ch <- id
}
