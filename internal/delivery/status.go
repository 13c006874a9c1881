// Package delivery holds the per-message receipt lifecycle:
// sent -> delivered -> read. Transitions only move forward.
package delivery

type Status string

const (
	Sent      Status = "sent"
	Delivered Status = "delivered"
	Read      Status = "read"
)

func (s Status) rank() int {
	switch s {
	case Sent:
		return 0
	case Delivered:
		return 1
	case Read:
		return 2
	}
	return -1
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == Read
}

// Advance returns the status after applying next to cur and whether it
// changed. Backward and sideways moves, and unknown statuses, leave cur as is.
// Skipping forward (sent -> read) is allowed.
func Advance(cur, next Status) (Status, bool) {
	if !next.Valid() {
		return cur, false
	}
	if cur.Valid() && next.rank() <= cur.rank() {
		return cur, false
	}
	return next, true
}

// Parse maps a wire value to a Status, falling back to def for empty or
// unrecognised input.
func Parse(v string, def Status) Status {
	s := Status(v)
	if s.Valid() {
		return s
	}
	return def
}
