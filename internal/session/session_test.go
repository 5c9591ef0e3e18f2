package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebook/internal/core"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStoreContract(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrAuth))
			assert.True(t, errors.Is(err, ErrNoSession))

			_, err = Identity(ctx, store)
			assert.True(t, errors.Is(err, core.ErrAuth))
			assert.Empty(t, Token(store)(ctx))

			require.NoError(t, store.Set(ctx, Session{Email: "a@b.co", AccessToken: "acc", RefreshToken: "ref"}))
			got, err := store.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, "a@b.co", got.Email)
			assert.Equal(t, "ref", got.RefreshToken)
			assert.False(t, got.UpdatedAt.IsZero())
			assert.Equal(t, "acc", Token(store)(ctx))

			require.NoError(t, store.Set(ctx, Session{Email: "c@d.co"}))
			id, err := Identity(ctx, store)
			require.NoError(t, err)
			assert.Equal(t, "c@d.co", id)

			require.NoError(t, store.Clear(ctx))
			_, err = Identity(ctx, store)
			assert.True(t, errors.Is(err, core.ErrAuth))
			assert.Equal(t, signInMessage, core.UserMessage(err))
		})
	}
}

func TestSQLiteStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, Session{Email: "a@b.co", AccessToken: "x"}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()
	got, err := second.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", got.Email)
}

func TestIdentityRejectsBlankEmail(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), Session{Email: "  "}))
	_, err := Identity(context.Background(), store)
	assert.True(t, errors.Is(err, core.ErrAuth))
}
