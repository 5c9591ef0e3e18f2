package budgets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebook/internal/core"
	"expensebook/internal/remote"
)

func newRepo(t *testing.T, h http.HandlerFunc) *Repository {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client, err := remote.NewClient(remote.ClientConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return NewRepository(client, nil)
}

func TestCreate(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/budgets/create/", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "250.00", body["budget"])
		assert.Equal(t, "January", body["month"])
		assert.Equal(t, "2024", body["year"])
		assert.Equal(t, "a@b.co", body["email_address"])
		_, _ = w.Write([]byte(`{"id":4,"budget":"250.00","month":"January","year":"2024","updated_at":"2024-01-05T10:00:00.123456Z"}`))
	})

	b, err := repo.Create(context.Background(), "a@b.co", Fields{Budget: "250", Month: " January ", Year: "2024"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), b.ID)
	assert.Equal(t, "250.00", b.Limit.StringFixed(2))
	assert.Equal(t, "a@b.co", b.EmailAddress)
	assert.Equal(t, 2024, b.UpdatedAt.Year())
}

func TestCreateValidation(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})
	ctx := context.Background()

	cases := []Fields{
		{Budget: "", Month: "January", Year: "2024"},
		{Budget: "abc", Month: "January", Year: "2024"},
		{Budget: "100", Month: "", Year: "2024"},
		{Budget: "100", Month: "January", Year: ""},
	}
	for _, f := range cases {
		_, err := repo.Create(ctx, "a@b.co", f)
		assert.True(t, errors.Is(err, core.ErrValidation), "%+v: %v", f, err)
	}

	_, err := repo.Create(ctx, "", Fields{Budget: "1", Month: "m", Year: "y"})
	assert.True(t, errors.Is(err, core.ErrAuth))
}

func TestLatest(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Query().Get("email_address") {
		case "has@b.co":
			_, _ = w.Write([]byte(`{"id":1,"budget":"99.50","month":"May","year":"2024","updated_at":"2024-05-01T00:00:00Z"}`))
		case "none@b.co":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"No budgets found"}`))
		case "empty@b.co":
			w.WriteHeader(http.StatusOK)
		case "numeric@b.co":
			_, _ = w.Write([]byte(`{"id":2,"budget":100,"month":5,"year":2024,"updated_at":"2024-05-01T00:00:00Z"}`))
		case "broken@b.co":
			_, _ = w.Write([]byte(`{"id":1,"budget":"lots","month":"May","year":"2024"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	ctx := context.Background()

	b, ok, err := repo.Latest(ctx, "has@b.co")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "99.50", b.Limit.StringFixed(2))
	assert.Equal(t, "May", b.Month)

	b, ok, err = repo.Latest(ctx, "numeric@b.co")
	require.NoError(t, err, "numeric month and year are accepted")
	require.True(t, ok)
	assert.Equal(t, "100.00", b.Limit.StringFixed(2))
	assert.Equal(t, "5", b.Month)
	assert.Equal(t, "2024", b.Year)

	_, ok, err = repo.Latest(ctx, "none@b.co")
	require.NoError(t, err, "absent budget is not an error")
	assert.False(t, ok)

	_, ok, err = repo.Latest(ctx, "empty@b.co")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = repo.Latest(ctx, "broken@b.co")
	assert.True(t, errors.Is(err, core.ErrNetwork))
	assert.Equal(t, "the server sent an unexpected response", core.UserMessage(err))

	_, _, err = repo.Latest(ctx, "down@b.co")
	assert.True(t, errors.Is(err, core.ErrNetwork))

	_, _, err = repo.Latest(ctx, "")
	assert.True(t, errors.Is(err, core.ErrAuth))
}
