package hostfunc

import (
	"errors"
	"strings"
)

var (
	// ErrBridge matches any *BridgeError via errors.Is.
	ErrBridge          = errors.New("invalid guest value")
	ErrUnknownSession  = errors.New("unknown session")
	ErrTooManySessions = errors.New("too many sessions")
	ErrHostNotAllowed  = errors.New("host not allowed")

	// ErrTimeout and ErrTransport match *ExecError by kind via errors.Is.
	ErrTimeout   = errors.New("request timed out")
	ErrTransport = errors.New("transport failure")
)

// BridgeError reports a guest value whose shape does not fit the host type it
// is being converted into.
type BridgeError struct {
	Path   []string
	Detail string
}

func (e *BridgeError) Error() string {
	var b strings.Builder
	b.WriteString(ErrBridge.Error())
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *BridgeError) Is(target error) bool {
	return target == ErrBridge
}

func bridgeErr(detail string, path ...string) *BridgeError {
	return &BridgeError{Path: path, Detail: detail}
}

type ExecKind string

const (
	ExecTimeout   ExecKind = "timeout"
	ExecTransport ExecKind = "transport"
)

// ExecError is a failure of a network operation issued on behalf of a guest.
type ExecError struct {
	Kind    ExecKind
	Message string
	Cause   error
}

func (e *ExecError) Error() string {
	if e.Kind == ExecTimeout {
		if e.Message != "" {
			return "request timed out after " + e.Message
		}
		return ErrTimeout.Error()
	}
	return "request failed: " + e.Message
}

func (e *ExecError) Unwrap() error {
	return e.Cause
}

func (e *ExecError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == ExecTimeout
	case ErrTransport:
		return e.Kind == ExecTransport
	}
	return false
}
