package core

import (
	"errors"
	"fmt"
)

// Kind classifies failures the way they are reported to the user.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuth
	KindValidation
	KindNotFound
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against any *Error of the same kind.
var (
	ErrAuth       = &Error{Kind: KindAuth, Message: "you are not signed in"}
	ErrValidation = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrNetwork    = &Error{Kind: KindNetwork, Message: "the server could not be reached"}
)

// Error is a classified failure carrying a message fit for display.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind, so callers can write
// errors.Is(err, core.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func AuthError(op, message string) error {
	return &Error{Kind: KindAuth, Op: op, Message: message}
}

func ValidationError(op, message string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Message: message, Err: err}
}

func NotFoundError(op, message string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

func NetworkError(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Message: ErrNetwork.Message, Err: err}
}

// BadResponseError reports a server that answered with a body the client
// could not understand. It matches ErrNetwork.
func BadResponseError(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Message: "the server sent an unexpected response", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage renders err for display. Joined errors yield one line each.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out string
		for i, e := range joined.Unwrap() {
			if i > 0 {
				out += "\n"
			}
			out += UserMessage(e)
		}
		return out
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return fmt.Sprintf("%s error", e.Kind)
	}
	return err.Error()
}
