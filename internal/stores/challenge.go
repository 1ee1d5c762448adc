// Package stores holds small Redis-backed record stores used by the engine
// flows.
package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrChallengeNotFound indicates an unknown, expired, or already
	// consumed challenge token.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeUnavailable indicates the challenge backend is unreachable.
	ErrChallengeUnavailable = errors.New("challenge backend unavailable")
)

// ChallengeStore keeps one-shot challenge tokens (password reset, account
// verification) keyed `{purpose}:{token}` with the email as the value.
// Consumption is a single GETDEL, so a token verifies at most once.
type ChallengeStore struct {
	redis redis.UniversalClient
}

// NewChallengeStore wraps the given Redis client.
func NewChallengeStore(redisClient redis.UniversalClient) *ChallengeStore {
	return &ChallengeStore{redis: redisClient}
}

func (s *ChallengeStore) key(purpose, token string) string {
	return purpose + ":" + token
}

// Save stores token → email under the purpose keyspace with the given TTL.
func (s *ChallengeStore) Save(ctx context.Context, purpose, token, email string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(purpose, token), email, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return nil
}

// Consume atomically fetches and deletes the challenge, returning the email
// it was issued for. A second Consume of the same token fails with
// [ErrChallengeNotFound].
func (s *ChallengeStore) Consume(ctx context.Context, purpose, token string) (string, error) {
	email, err := s.redis.GetDel(ctx, s.key(purpose, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrChallengeNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return email, nil
}
