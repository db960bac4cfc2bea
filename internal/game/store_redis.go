package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	currentSnapshotKey = "session:current"
	snapshotChannel    = "session:updates"
)

// RedisSnapshotStore mirrors the live session into Redis: the latest snapshot
// under a fixed key, a per-match copy with a TTL, and a pub/sub notice for
// subscribers.
type RedisSnapshotStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSnapshotStore(rdb *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{rdb: rdb, ttl: ttl}
}

func (s *RedisSnapshotStore) key(matchID string) string {
	return fmt.Sprintf("match:%s:snapshot", matchID)
}

func (s *RedisSnapshotStore) Save(ctx context.Context, snap SessionSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, currentSnapshotKey, b, s.ttl)
	if snap.MatchID != "" {
		pipe.Set(ctx, s.key(snap.MatchID), b, s.ttl)
	}
	pipe.Publish(ctx, snapshotChannel, b)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis snapshot: %w", err)
	}
	return nil
}

// Load returns the mirrored snapshot of a match, if it is still cached.
func (s *RedisSnapshotStore) Load(ctx context.Context, matchID string) (SessionSnapshot, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(matchID)).Bytes()
	if err == redis.Nil {
		return SessionSnapshot{}, false, nil
	}
	if err != nil {
		return SessionSnapshot{}, false, err
	}

	var snap SessionSnapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return SessionSnapshot{}, false, err
	}
	return snap, true, nil
}
