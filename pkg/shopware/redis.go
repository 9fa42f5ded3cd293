package shopware

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTokenPrefix = "shopware:token:"

// RedisTokenStore shares tokens between app instances through Redis.
type RedisTokenStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisTokenStore(client redis.Cmdable) *RedisTokenStore {
	return &RedisTokenStore{client: client, prefix: redisTokenPrefix}
}

func (s *RedisTokenStore) Get(ctx context.Context, shopID string) (string, bool, error) {
	tok, err := s.client.Get(ctx, s.prefix+shopID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return tok, true, nil
}

func (s *RedisTokenStore) Set(ctx context.Context, shopID, token string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+shopID, token, ttl).Err()
}

func (s *RedisTokenStore) Delete(ctx context.Context, shopID string) error {
	return s.client.Del(ctx, s.prefix+shopID).Err()
}
