// Package auth signs users up, in and out against the expense API and keeps
// the resulting identity in the session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"expensebook/internal/core"
	"expensebook/internal/log"
	"expensebook/internal/session"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// Doer is the subset of the remote client the service needs.
type Doer interface {
	Do(ctx context.Context, method, path string, query url.Values, body, out any) error
}

type Service struct {
	client   Doer
	sessions session.Store
	logger   *log.Logger
}

func NewService(client Doer, sessions session.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{client: client, sessions: sessions, logger: logger.WithComponent(log.ComponentAuth)}
}

type credentials struct {
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

// Tokens is the login response.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// ValidateCredentials checks the fields locally before any request.
func ValidateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return ErrMissingCredentials
	}
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return ErrInvalidEmail
	}
	return nil
}

// Register creates an account. It does not sign the user in.
func (s *Service) Register(ctx context.Context, email, password string) error {
	const op = "auth.register"
	if err := ValidateCredentials(email, password); err != nil {
		return core.ValidationError(op, err.Error(), err)
	}
	email = strings.TrimSpace(email)

	if err := s.client.Do(ctx, http.MethodPost, "/auth/register/", nil, credentials{email, password}, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	s.logger.InfoContext(ctx, "User registered", log.FieldUser, email)
	return nil
}

// Login exchanges credentials for tokens and stores the session.
func (s *Service) Login(ctx context.Context, email, password string) (session.Session, error) {
	const op = "auth.login"
	if err := ValidateCredentials(email, password); err != nil {
		return session.Session{}, core.ValidationError(op, err.Error(), err)
	}
	email = strings.TrimSpace(email)

	var tokens Tokens
	if err := s.client.Do(ctx, http.MethodPost, "/auth/login/", nil, credentials{email, password}, &tokens); err != nil {
		return session.Session{}, fmt.Errorf("login: %w", err)
	}
	if tokens.Access == "" {
		return session.Session{}, core.NetworkError(op, errors.New("login response carried no access token"))
	}

	sess := session.Session{Email: email, AccessToken: tokens.Access, RefreshToken: tokens.Refresh}
	if err := s.sessions.Set(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("store session: %w", err)
	}
	s.logger.InfoContext(ctx, "User logged in", log.FieldUser, email)
	return sess, nil
}

// Logout revokes the server tokens when possible and forgets the stored
// session. A failed revoke is logged; the local session is cleared anyway.
func (s *Service) Logout(ctx context.Context) error {
	if sess, err := s.sessions.Get(ctx); err == nil && sess.AccessToken != "" {
		if err := s.client.Do(ctx, http.MethodPost, "/auth/logout/", nil, nil, nil); err != nil {
			s.logger.WarnContext(ctx, "Token revocation failed", log.FieldUser, sess.Email, log.FieldError, err.Error())
		}
	}
	if err := s.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.InfoContext(ctx, "User logged out")
	return nil
}
