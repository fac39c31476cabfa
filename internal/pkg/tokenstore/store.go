package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const refreshKeyPrefix = "auth:refresh:"

var ErrTokenNotFound = errors.New("refresh token not found or already used")

// Store 在 Redis 中记录已签发的刷新令牌 jti，每个 jti 只能消费一次
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Save 记录刷新令牌
func (s *Store) Save(ctx context.Context, jti string, userID int64, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, refreshKeyPrefix+jti, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Consume 取出并删除刷新令牌，返回其所属用户
func (s *Store) Consume(ctx context.Context, jti string) (int64, error) {
	key := refreshKeyPrefix + jti

	var userID int64
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get refresh token: %w", err)
		}

		userID, err = strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("corrupted refresh token record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil {
		// 并发消费同一个 jti，只有一方成功
		if errors.Is(err, redis.TxFailedErr) {
			return 0, ErrTokenNotFound
		}
		return 0, err
	}

	return userID, nil
}

// Revoke 作废刷新令牌
func (s *Store) Revoke(ctx context.Context, jti string) error {
	return s.rdb.Del(ctx, refreshKeyPrefix+jti).Err()
}
