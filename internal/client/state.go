package client

// State is the connection lifecycle as seen by the manager.
type State int

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// active reports whether a connect attempt is already in flight or done.
func (s State) active() bool {
	return s == Connecting || s == Authenticating || s == Open
}
