// Package session holds the identity of the signed-in user.
//
// The Store is injected into every consumer; nothing reads the identity from
// ambient global state. A missing session is reported as an auth error so
// callers short-circuit instead of issuing anonymous requests.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"expensebook/internal/core"
)

// ErrNoSession is wrapped by the auth error returned when nobody is signed in.
var ErrNoSession = errors.New("no active session")

const signInMessage = "you are not signed in, please log in first"

// Session is the stored identity and its API tokens.
type Session struct {
	Email        string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

// Store owns the active session. Get fails with an auth error when empty.
type Store interface {
	Get(ctx context.Context) (Session, error)
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// Identity returns the signed-in email or an auth error.
func Identity(ctx context.Context, store Store) (string, error) {
	s, err := store.Get(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s.Email) == "" {
		return "", noSession("session.identity")
	}
	return s.Email, nil
}

// Token adapts a store to a bearer token source. Errors yield no token.
func Token(store Store) func(ctx context.Context) string {
	return func(ctx context.Context) string {
		s, err := store.Get(ctx)
		if err != nil {
			return ""
		}
		return s.AccessToken
	}
}

func noSession(op string) error {
	return &core.Error{Kind: core.KindAuth, Op: op, Message: signInMessage, Err: ErrNoSession}
}
