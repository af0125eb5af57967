package wsclient

// State is the lifecycle state of the upstream connection.
type State int

const (
	// StateDisconnected means no socket is open; a reconnect may be pending.
	StateDisconnected State = iota
	// StateConnecting means a dial is in progress.
	StateConnecting
	// StateOpen means the socket is open but not yet usable for sends.
	StateOpen
	// StateAuthenticating means the authentication envelope is being written.
	StateAuthenticating
	// StateReady means outbound sends reach the socket.
	StateReady
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}
