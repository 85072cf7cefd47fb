package storage

import (
	"context"
	"time"

	redisSrv "PChat/service/storage/redis"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Logged-out tokens are denylisted by hash until they would have expired
// anyway. The check fails open: a redis outage degrades to the original
// cookie-clearing-only behavior instead of locking everyone out.

func revokeKey(tokenHash string) string { return "chat:revoked:" + tokenHash }

// RevokeToken denylists a token hash for the remainder of its lifetime.
func RevokeToken(ctx context.Context, tokenHash string, ttl time.Duration) error {
	rdb := redisSrv.GetRedis()
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	if ttl <= 0 {
		return nil // already expired, nothing to deny
	}
	return rdb.Set(ctx, revokeKey(tokenHash), "1", ttl).Err()
}

// IsTokenRevoked reports whether the token hash is denylisted. Errors and an
// uninitialized redis both read as "not revoked".
func IsTokenRevoked(ctx context.Context, tokenHash string) bool {
	rdb := redisSrv.GetRedis()
	if rdb == nil {
		return false
	}
	_, err := rdb.Get(ctx, revokeKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		return false
	}
	return true
}
