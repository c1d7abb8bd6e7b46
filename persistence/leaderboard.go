package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/wtfashwin/Quiz-App/config"
	"github.com/wtfashwin/Quiz-App/models"
)

const (
	leaderboardKey = "quiz:leaderboard"
	playerNamesKey = "quiz:players"
)

// LeaderboardEntry is a player's lifetime total across finished games.
type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int64  `json:"score"`
}

// Leaderboard accumulates final scores across games.
type Leaderboard interface {
	AddScores(ctx context.Context, scores []models.ScoreEntry) error
	Top(ctx context.Context, n int) ([]LeaderboardEntry, error)
	Close() error
}

// OpenLeaderboard returns the redis leaderboard when enabled, otherwise an
// in-memory one.
func OpenLeaderboard(ctx context.Context, cfg config.RedisConfig) (Leaderboard, error) {
	if !cfg.Enabled {
		return NewMemoryLeaderboard(), nil
	}
	return NewRedisLeaderboard(ctx, cfg.Addr, cfg.DB)
}

// RedisLeaderboard keeps totals in a sorted set and display names in a hash.
type RedisLeaderboard struct {
	client *redis.Client
}

func NewRedisLeaderboard(ctx context.Context, addr string, db int) (*RedisLeaderboard, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisLeaderboard{client: client}, nil
}

func (l *RedisLeaderboard) AddScores(ctx context.Context, scores []models.ScoreEntry) error {
	if len(scores) == 0 {
		return nil
	}

	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, s := range scores {
			pipe.ZIncrBy(ctx, leaderboardKey, float64(s.Score), s.PlayerID)
			pipe.HSet(ctx, playerNamesKey, s.PlayerID, s.Name)
		}
		return nil
	})
	return err
}

func (l *RedisLeaderboard) Top(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if n <= 0 {
		n = 10
	}

	ranked, err := l.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return []LeaderboardEntry{}, nil
	}

	ids := make([]string, 0, len(ranked))
	for _, z := range ranked {
		ids = append(ids, z.Member.(string))
	}
	names, err := l.client.HMGet(ctx, playerNamesKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]LeaderboardEntry, 0, len(ranked))
	for i, z := range ranked {
		name, _ := names[i].(string)
		out = append(out, LeaderboardEntry{PlayerID: ids[i], Name: name, Score: int64(z.Score)})
	}
	return out, nil
}

func (l *RedisLeaderboard) Close() error {
	return l.client.Close()
}

// MemoryLeaderboard is the process-local fallback.
type MemoryLeaderboard struct {
	totals map[string]*LeaderboardEntry
	mutex  sync.Mutex
}

func NewMemoryLeaderboard() *MemoryLeaderboard {
	return &MemoryLeaderboard{totals: make(map[string]*LeaderboardEntry)}
}

func (l *MemoryLeaderboard) AddScores(ctx context.Context, scores []models.ScoreEntry) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for _, s := range scores {
		e, ok := l.totals[s.PlayerID]
		if !ok {
			e = &LeaderboardEntry{PlayerID: s.PlayerID}
			l.totals[s.PlayerID] = e
		}
		e.Name = s.Name
		e.Score += int64(s.Score)
	}
	return nil
}

func (l *MemoryLeaderboard) Top(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if n <= 0 {
		n = 10
	}

	l.mutex.Lock()
	out := make([]LeaderboardEntry, 0, len(l.totals))
	for _, e := range l.totals {
		out = append(out, *e)
	}
	l.mutex.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].PlayerID < out[j].PlayerID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (l *MemoryLeaderboard) Close() error {
	return nil
}
