package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRevocationRepository stores signed-out token IDs until they would have expired anyway
type TokenRevocationRepository interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisTokenRevocationRepository keeps one key per revoked token with a TTL
type RedisTokenRevocationRepository struct {
	client *redis.Client
}

func NewRedisTokenRevocationRepository(client *redis.Client) *RedisTokenRevocationRepository {
	return &RedisTokenRevocationRepository{client: client}
}

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}

// Revoke marks tokenID revoked. Already-expired tokens are ignored.
func (r *RedisTokenRevocationRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKey(tokenID), 1, ttl).Err()
}

func (r *RedisTokenRevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, revokedKey(tokenID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// NoopTokenRevocationRepository is used without Redis: sign-out only discards the client token
type NoopTokenRevocationRepository struct{}

func (NoopTokenRevocationRepository) Revoke(context.Context, string, time.Time) error { return nil }

func (NoopTokenRevocationRepository) IsRevoked(context.Context, string) (bool, error) {
	return false, nil
}
