package rcon

import (
	"errors"
	"fmt"
)

// Kind discriminates the result of a session.
type Kind int

const (
	Success Kind = iota
	AuthFailed
	ConnectFailed
	Timeout
	ProtocolError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case AuthFailed:
		return "auth_failed"
	case ConnectFailed:
		return "connect_failed"
	case Timeout:
		return "timeout"
	case ProtocolError:
		return "protocol_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrTransport = errors.New("rcon server unreachable")
	ErrAuth      = errors.New("rcon authentication failed")
	ErrTimeout   = errors.New("rcon timed out")
	ErrProtocol  = errors.New("rcon protocol error")

	errMalformed = errors.New("malformed packet")
)

// Outcome is the result of exactly one session attempt.
type Outcome struct {
	Kind  Kind
	Body  string
	Cause error
}

// OK reports whether the command was delivered and answered.
func (o Outcome) OK() bool { return o.Kind == Success }

// Err returns nil for a successful outcome and an *Error otherwise.
func (o Outcome) Err() error {
	if o.Kind == Success {
		return nil
	}
	return &Error{Kind: o.Kind, Cause: o.Cause}
}

func succeeded(body string) Outcome {
	return Outcome{Kind: Success, Body: body}
}

func failed(kind Kind, cause error) Outcome {
	return Outcome{Kind: kind, Cause: cause}
}

// Error is a failed Outcome in error form.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	base := e.sentinel().Error()
	if e.Cause == nil {
		return base
	}
	return base + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case AuthFailed:
		return ErrAuth
	case ConnectFailed:
		return ErrTransport
	case Timeout:
		return ErrTimeout
	default:
		return ErrProtocol
	}
}
