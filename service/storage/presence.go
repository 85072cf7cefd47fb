package storage

import (
	"context"
	"time"

	redisSrv "PChat/service/storage/redis"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presence key: chat:presence:<user>
// Value is the relay node ID; the TTL bounds how stale "online" can be.
func presenceKey(user string) string { return "chat:presence:" + user }

// PresenceOnline marks the user online and renews the TTL.
func PresenceOnline(ctx context.Context, user, nodeID string, ttl time.Duration) error {
	rdb := redisSrv.GetRedis()
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	return rdb.Set(ctx, presenceKey(user), nodeID, ttl).Err()
}

// PresenceOffline removes the presence key.
func PresenceOffline(ctx context.Context, user string) error {
	rdb := redisSrv.GetRedis()
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	return rdb.Del(ctx, presenceKey(user)).Err()
}

// PresenceLookup reports whether the user is online and on which node.
func PresenceLookup(ctx context.Context, user string) (nodeID string, online bool, err error) {
	rdb := redisSrv.GetRedis()
	if rdb == nil {
		return "", false, errors.New("redis not initialized")
	}
	val, err := rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
