package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"example.com/tetra-coop/internal/game"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrResultNotFound = errors.New("match result not found")

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ResultStore is the append-only archive of finished matches.
type ResultStore struct {
	db *pgxpool.Pool
}

func NewResultStore(db *pgxpool.Pool) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) SaveResult(ctx context.Context, r game.MatchResult) error {
	scores, err := json.Marshal(r.Scores)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO match_results (match_id, reason, level, team_score, scores, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id) DO NOTHING
	`, r.MatchID, r.Reason, r.Level, teamScore(r.Scores), scores, r.EndedAt)
	if err != nil {
		return fmt.Errorf("insert match result: %w", err)
	}
	return nil
}

// List returns the most recent results first.
func (s *ResultStore) List(ctx context.Context, limit int) ([]game.MatchResult, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	rows, err := s.db.Query(ctx, `
		SELECT match_id, reason, level, scores, ended_at
		FROM match_results
		ORDER BY ended_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]game.MatchResult, 0, limit)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ResultStore) Get(ctx context.Context, matchID string) (game.MatchResult, error) {
	row := s.db.QueryRow(ctx, `
		SELECT match_id, reason, level, scores, ended_at
		FROM match_results
		WHERE match_id = $1
	`, matchID)
	r, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.MatchResult{}, ErrResultNotFound
	}
	return r, err
}

func scanResult(row pgx.Row) (game.MatchResult, error) {
	var (
		r      game.MatchResult
		scores []byte
	)
	if err := row.Scan(&r.MatchID, &r.Reason, &r.Level, &scores, &r.EndedAt); err != nil {
		return game.MatchResult{}, err
	}
	if err := json.Unmarshal(scores, &r.Scores); err != nil {
		return game.MatchResult{}, fmt.Errorf("decode scores of %s: %w", r.MatchID, err)
	}
	return r, nil
}

// teamScore is the trailing total row of a final scoreboard.
func teamScore(scores []game.ColoredScore) int {
	if len(scores) == 0 {
		return 0
	}
	return scores[len(scores)-1].Points
}
