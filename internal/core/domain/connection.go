package domain

// ConnectionState is the lifecycle of a client session.
type ConnectionState string

const (
	StateDisconnected   ConnectionState = "disconnected"
	StateConnecting     ConnectionState = "connecting"
	StateAuthenticating ConnectionState = "authenticating"
	StateReady          ConnectionState = "ready"
	StateClosed         ConnectionState = "closed"
)

// SocketOpen reports whether calls may be written in this state.
func (s ConnectionState) SocketOpen() bool {
	return s == StateAuthenticating || s == StateReady
}
