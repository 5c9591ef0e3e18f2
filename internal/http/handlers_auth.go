package http

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"expensebook/internal/log"
	"expensebook/internal/storage"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type credentials struct {
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

func (c *credentials) normalize() {
	c.EmailAddress = strings.ToLower(strings.TrimSpace(c.EmailAddress))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeJSON(w, r, &in) {
		return
	}
	in.normalize()

	if in.EmailAddress == "" || in.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Email and password are required.")
		return
	}
	if !emailPattern.MatchString(in.EmailAddress) {
		writeDetail(w, http.StatusBadRequest, "Invalid email format.")
		return
	}

	// bcrypt rejects passwords longer than 72 bytes
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		writeDetail(w, http.StatusBadRequest, "Password is too long.")
		return
	}
	if err != nil {
		writeInternal(w, r, "Failed to hash password", err)
		return
	}

	if _, err := s.store.CreateUser(r.Context(), in.EmailAddress, string(hash)); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			writeDetail(w, http.StatusBadRequest, "Email already registered.")
			return
		}
		writeInternal(w, r, "Failed to create user", err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "User registered",
		log.FieldUser, in.EmailAddress, log.FieldOperation, log.OpRegister)
	writeDetail(w, http.StatusCreated, "User registered successfully.")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeJSON(w, r, &in) {
		return
	}
	in.normalize()

	if in.EmailAddress == "" || in.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Email address and password are required.")
		return
	}

	user, err := s.store.UserByEmail(r.Context(), in.EmailAddress)
	if errors.Is(err, storage.ErrUserNotFound) {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials.")
		return
	}
	if err != nil {
		writeInternal(w, r, "Failed to load user", err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials.")
		return
	}

	access, refresh := s.tokens.issue(user.ID, user.Email)
	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged in",
		log.FieldUser, user.Email, log.FieldOperation, log.OpLogin)
	writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
}

// handleLogout revokes every token of the caller.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	g, ok := s.tokens.access(bearerToken(r))
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired.")
		return
	}
	n := s.tokens.revoke(g.UserID)
	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged out",
		log.FieldUser, g.Email, log.FieldOperation, log.OpLogout, "revoked", n)
	w.WriteHeader(http.StatusNoContent)
}
