//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"example.com/tetra-coop/internal/game"
	"example.com/tetra-coop/internal/migrate"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func newPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	require.NoError(t, migrate.Up(url, nil))

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestResultStore_SaveListGet(t *testing.T) {
	ctx := context.Background()
	s := NewResultStore(newPool(t))

	first := game.MatchResult{
		MatchID: uuid.NewString(),
		Reason:  game.EndReasonInactivity,
		Level:   2,
		Scores:  []game.ColoredScore{{Color: "Green", Hex: 0x00ff00, Points: 20}, {Color: "TEAM SCORE", Hex: 0xffff00, Points: 20}},
		EndedAt: time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond),
	}
	second := first
	second.MatchID = uuid.NewString()
	second.Reason = game.EndReasonRequested
	second.EndedAt = time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.SaveResult(ctx, first))
	require.NoError(t, s.SaveResult(ctx, second))
	require.NoError(t, s.SaveResult(ctx, second), "saving twice is a no-op")

	got, err := s.Get(ctx, first.MatchID)
	require.NoError(t, err)
	require.Equal(t, first.Scores, got.Scores)
	require.Equal(t, first.Level, got.Level)
	require.True(t, first.EndedAt.Equal(got.EndedAt))

	list, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.MatchID, list[0].MatchID)

	_, err = s.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrResultNotFound)
}
