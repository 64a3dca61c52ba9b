package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable is returned when the backing Redis cannot be reached.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrTokenNotFound is returned when no continuity token exists for a context.
var ErrTokenNotFound = errors.New("continuity token not found")

// ErrTokenCorrupt is returned when a stored token blob fails to decode.
var ErrTokenCorrupt = errors.New("continuity token corrupt")

const tokenSchemaVersion = "v1"

// Store persists continuity tokens in Redis, one per browser context.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a token [Store] backed by the given Redis client. prefix
// namespaces all keys so multiple deployments can share one Redis.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "fg"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(contextID string) string {
	return fmt.Sprintf("%s:ct:%s", s.prefix, contextID)
}

// SaveToken stores the token for contextID, replacing any previous one. The
// Redis key TTL mirrors the token expiry when present, bounded below by one
// second so an about-to-expire token is never written without a TTL.
func (s *Store) SaveToken(ctx context.Context, contextID string, tok Token) error {
	if contextID == "" {
		return errors.New("context id required")
	}
	if tok.Value == "" {
		return errors.New("token value required")
	}

	var ttl time.Duration
	if !tok.ExpiresAt.IsZero() {
		ttl = time.Until(tok.ExpiresAt)
		if ttl < time.Second {
			ttl = time.Second
		}
	}

	blob := encodeToken(tok)
	if err := s.redis.Set(ctx, s.key(contextID), blob, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// LoadToken fetches the token for contextID. Missing and Redis-expired
// tokens both report [ErrTokenNotFound].
func (s *Store) LoadToken(ctx context.Context, contextID string) (Token, error) {
	blob, err := s.redis.Get(ctx, s.key(contextID)).Result()
	if errors.Is(err, redis.Nil) {
		return Token{}, ErrTokenNotFound
	}
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeToken(blob)
}

// DeleteToken removes the token for contextID. Deleting an absent token is
// a no-op, never an error.
func (s *Store) DeleteToken(ctx context.Context, contextID string) error {
	if err := s.redis.Del(ctx, s.key(contextID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// encodeToken packs the token as "v1 <unix-expiry> <value>". The value goes
// last so provider tokens containing spaces survive the round trip.
func encodeToken(tok Token) string {
	var exp int64
	if !tok.ExpiresAt.IsZero() {
		exp = tok.ExpiresAt.Unix()
	}
	return fmt.Sprintf("%s %d %s", tokenSchemaVersion, exp, tok.Value)
}

func decodeToken(blob string) (Token, error) {
	parts := strings.SplitN(blob, " ", 3)
	if len(parts) != 3 || parts[0] != tokenSchemaVersion {
		return Token{}, ErrTokenCorrupt
	}

	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || parts[2] == "" {
		return Token{}, ErrTokenCorrupt
	}

	tok := Token{Value: parts[2]}
	if exp > 0 {
		tok.ExpiresAt = time.Unix(exp, 0)
	}
	return tok, nil
}
