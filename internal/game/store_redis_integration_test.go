//go:build integration

package game

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, rdb.Ping(ctx).Err(), "redis is not reachable")
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisSnapshotStore_SaveLoadPublish(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t)
	require.NoError(t, rdb.FlushDB(ctx).Err())

	store := NewRedisSnapshotStore(rdb, time.Hour)

	sub := rdb.Subscribe(ctx, snapshotChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	h := newHarness(t, testSessionConfig(), Options{})
	conns := h.seatAll()
	h.send(conns[2], MsgAwardPoints, 2, 15)
	snap := h.s.Snapshot()

	require.NoError(t, store.Save(ctx, snap))

	got, ok, err := store.Load(ctx, snap.MatchID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap.Phase, got.Phase)
	require.Equal(t, 15, got.Scoreboard[2].Points)

	raw, err := rdb.Get(ctx, currentSnapshotKey).Bytes()
	require.NoError(t, err)
	var current SessionSnapshot
	require.NoError(t, json.Unmarshal(raw, &current))
	require.Equal(t, snap.MatchID, current.MatchID)

	ttl, err := rdb.TTL(ctx, store.key(snap.MatchID)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	require.Contains(t, msg.Payload, snap.MatchID)

	_, ok, err = store.Load(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}
