package session

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"expensebook/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists the session between CLI invocations.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := storage.OpenSQLite(dbPath, migrationsFS)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context) (Session, error) {
	var (
		out     Session
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT email_address, access_token, refresh_token, updated_at FROM session WHERE id = 1`).
		Scan(&out.Email, &out.AccessToken, &out.RefreshToken, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, noSession("session.get")
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	out.UpdatedAt = time.Unix(0, updated).UTC()
	return out, nil
}

func (s *SQLiteStore) Set(ctx context.Context, sess Session) error {
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session (id, email_address, access_token, refresh_token, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   email_address = excluded.email_address,
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   updated_at = excluded.updated_at`,
		sess.Email, sess.AccessToken, sess.RefreshToken, sess.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
