package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/playmatatu/arena/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisStatus keeps player availability in Redis under player_status:<id>.
// A player without a key is offline.
type RedisStatus struct {
	rdb *redis.Client
}

func NewRedisStatus(rdb *redis.Client) *RedisStatus {
	return &RedisStatus{rdb: rdb}
}

func statusKey(id int64) string {
	return "player_status:" + strconv.FormatInt(id, 10)
}

func (s *RedisStatus) GetPlayerStatus(ctx context.Context, id int64) (string, error) {
	status, err := s.rdb.Get(ctx, statusKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return models.PlayerOffline, nil
	}
	if err != nil {
		return "", fmt.Errorf("get status of player %d: %w", id, err)
	}
	return status, nil
}

func (s *RedisStatus) SetPlayerStatus(ctx context.Context, id int64, status string) error {
	if status == models.PlayerOffline {
		if err := s.rdb.Del(ctx, statusKey(id)).Err(); err != nil {
			return fmt.Errorf("clear status of player %d: %w", id, err)
		}
		return nil
	}
	if err := s.rdb.Set(ctx, statusKey(id), status, 0).Err(); err != nil {
		return fmt.Errorf("set status of player %d: %w", id, err)
	}
	return nil
}
