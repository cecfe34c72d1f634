package microstudio

import (
	"MicroStudioLink/internal/core/ports"
	"errors"
	"fmt"
)

var (
	// ErrConnection means the transport failed before the socket opened.
	ErrConnection = errors.New("connection failed")
	// ErrAuthentication means neither the token nor the credentials were accepted.
	ErrAuthentication = ports.ErrAuthentication
	// ErrNotConnected means a call was made while the socket was not open.
	ErrNotConnected = errors.New("socket is not open")
	// ErrConfiguration means a request kind has no response mapping.
	ErrConfiguration = errors.New("unmapped request kind")
	// ErrTimeout means no accepted response arrived within the call timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrSend means the request could not be serialized or written.
	ErrSend = errors.New("failed to send request")
	// ErrConnectionClosed is returned to calls still pending when the socket closes.
	ErrConnectionClosed = errors.New("connection closed")
)

// CallError wraps the failure of one call with its kind and correlation id.
// RequestID is zero when the call failed before an id was assigned.
type CallError struct {
	Kind      RequestKind
	RequestID int64
	Err       error
}

func (e *CallError) Error() string {
	if e.RequestID == 0 {
		return fmt.Sprintf("request '%s': %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("request '%s' (id %d): %v", e.Kind, e.RequestID, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
