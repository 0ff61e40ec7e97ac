package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
)

const defaultClaimGuardPrefix = "claim:inflight"

// ClaimGuardStore implements the claim processing guard with Redis SETNX.
// Acquire succeeds at most once per claim id while the guard key lives, so
// a redelivered submission event or a racing sweep does not double-invoke
// the verification provider. The TTL bounds how long a crashed worker can
// hold a claim hostage.
type ClaimGuardStore struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewClaimGuardStore constructs a Redis-backed claim guard.
func NewClaimGuardStore(client *red.Client, keyPrefix string, ttl time.Duration) *ClaimGuardStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultClaimGuardPrefix
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &ClaimGuardStore{client: client, prefix: prefix, ttl: ttl}
}

// Acquire takes the guard for the claim. It returns false without error
// when another worker already holds it.
func (s *ClaimGuardStore) Acquire(ctx context.Context, claimID string) (bool, error) {
	key := s.key(claimID)
	if key == "" {
		return false, fmt.Errorf("claim id is required")
	}

	acquired, err := s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx claim guard: %w", err)
	}
	return acquired, nil
}

// Release drops the guard so the claim can be retried before the TTL runs
// out. Releasing an unheld guard is a no-op.
func (s *ClaimGuardStore) Release(ctx context.Context, claimID string) error {
	key := s.key(claimID)
	if key == "" {
		return fmt.Errorf("claim id is required")
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del claim guard: %w", err)
	}
	return nil
}

func (s *ClaimGuardStore) key(claimID string) string {
	id := strings.TrimSpace(claimID)
	if id == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

var _ port.ClaimDedupStore = (*ClaimGuardStore)(nil)
