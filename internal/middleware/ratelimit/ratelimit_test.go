package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(rps float64, burst int) (*Limiter, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(Config{RPS: rps, Burst: burst, IdleTTL: time.Minute})
	l.now = c.now
	return l, c
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	l, c := newTestLimiter(1, 2)

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"), "burst exhausted")
	assert.True(t, l.Allow("2.2.2.2"), "clients are independent")

	c.t = c.t.Add(time.Second)
	assert.True(t, l.Allow("1.1.1.1"), "one token refilled")
}

func TestLimiter_Cleanup(t *testing.T) {
	l, c := newTestLimiter(1, 1)
	l.Allow("a")
	c.t = c.t.Add(2 * time.Minute)
	l.Allow("b")

	assert.Equal(t, 1, l.Cleanup())
	assert.Equal(t, 1, l.ActiveClients())
}

func TestLimiter_Middleware(t *testing.T) {
	l, _ := newTestLimiter(0.5, 1)
	h := l.Middleware(func(*http.Request) string { return "ip" }, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "2", second.Header().Get("Retry-After"))
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(Config{})
	assert.Equal(t, DefaultConfig(), l.cfg)
}
