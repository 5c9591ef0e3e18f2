package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"expensebook/internal/cache"
)

type grantKind int

const (
	grantAccess grantKind = iota
	grantRefresh
)

// grant is what a bearer token stands for.
type grant struct {
	UserID int64
	Email  string
	Kind   grantKind
}

// tokenStore keeps opaque tokens in memory; a restart signs everyone out.
type tokenStore struct {
	cache *cache.LRUCache[grant]
}

func newTokenStore(size int, ttl time.Duration) *tokenStore {
	return &tokenStore{cache: cache.NewLRUCache[grant](size, ttl)}
}

// issue returns a new access and refresh token pair for the user.
func (t *tokenStore) issue(userID int64, email string) (access, refresh string) {
	access, refresh = uuid.NewString(), uuid.NewString()
	t.cache.Set(access, grant{UserID: userID, Email: email, Kind: grantAccess})
	t.cache.Set(refresh, grant{UserID: userID, Email: email, Kind: grantRefresh})
	return access, refresh
}

// access resolves an access token. Refresh tokens are not accepted.
func (t *tokenStore) access(token string) (grant, bool) {
	g, ok := t.cache.Get(token)
	if !ok || g.Kind != grantAccess {
		return grant{}, false
	}
	return g, true
}

// revoke drops every token of the user and returns how many were removed.
func (t *tokenStore) revoke(userID int64) int {
	return t.cache.DeleteFunc(func(g grant) bool { return g.UserID == userID })
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
