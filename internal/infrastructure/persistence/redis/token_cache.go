package redis

import (
	"context"
	"errors"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/testsession"
)

// TokenCache implements testsession.TokenCache on Redis. It maps link
// tokens to session ids so the hot open-session path skips a table scan.
// The caller always re-reads the session from PostgreSQL; a stale or
// missing entry costs one extra query, never a wrong answer.
type TokenCache struct {
	cache *Cache
}

// NewTokenCache creates a new TokenCache.
func NewTokenCache(cache *Cache) *TokenCache {
	return &TokenCache{cache: cache}
}

// GetSessionID resolves a token to a session id. ok=false on miss.
func (t *TokenCache) GetSessionID(ctx context.Context, token testsession.Token) (string, bool, error) {
	id, err := t.cache.GetString(ctx, tokenKey(token))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return "", false, nil
		}
		return "", false, err
	}
	return id, true, nil
}

// SetSessionID caches the resolution until the session expires. A
// non-positive TTL is skipped; there is nothing useful to cache for an
// already-expired link.
func (t *TokenCache) SetSessionID(ctx context.Context, token testsession.Token, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return t.cache.SetString(ctx, tokenKey(token), id, ttl)
}

// Invalidate drops the cached resolution.
func (t *TokenCache) Invalidate(ctx context.Context, token testsession.Token) error {
	return t.cache.Delete(ctx, tokenKey(token))
}

// tokenKey builds the Redis key for a token. The full token goes into the
// key; Redis access is already inside the trust boundary.
func tokenKey(token testsession.Token) string {
	return PrefixToken + string(token.Normalized())
}
