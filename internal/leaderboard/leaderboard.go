// Package leaderboard keeps personal-best scores in a Redis sorted set.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
)

const scoreKey = "pipecat:leaderboard:scores"

// ErrDisabled is returned when no Redis backend is configured.
var ErrDisabled = errors.New("leaderboard disabled")

// Leaderboard stores and serves high scores. A nil client disables it.
type Leaderboard struct {
	rdb *redis.Client
	log *zap.Logger
}

func New(rdb *redis.Client, logger *zap.Logger) *Leaderboard {
	return &Leaderboard{rdb: rdb, log: logger.Named("leaderboard")}
}

// Enabled reports whether a backend is configured.
func (l *Leaderboard) Enabled() bool { return l.rdb != nil }

// Submit records a score under a player handle, keeping only the personal
// best (ZADD GT never lowers an existing entry).
func (l *Leaderboard) Submit(ctx context.Context, player string, score int) error {
	if l.rdb == nil {
		return ErrDisabled
	}
	player = strings.TrimSpace(player)
	if player == "" || score < 0 {
		return fmt.Errorf("invalid score report: player=%q score=%d", player, score)
	}

	if err := l.rdb.ZAddGT(ctx, scoreKey, redis.Z{
		Score:  float64(score),
		Member: player,
	}).Err(); err != nil {
		return fmt.Errorf("submit score: %w", err)
	}
	l.log.Info("score submitted", zap.String("player", player), zap.Int("score", score))
	return nil
}

// Top returns the best n scores, highest first.
func (l *Leaderboard) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if l.rdb == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		n = 10
	}

	rows, err := l.rdb.ZRevRangeWithScores(ctx, scoreKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		player, _ := row.Member.(string)
		entries = append(entries, domain.LeaderboardEntry{
			Player: player,
			Score:  int(row.Score),
			Rank:   i + 1,
		})
	}
	return entries, nil
}
