package services

import (
	"context"
	"sync"
	"time"

	"github.com/wtfashwin/Quiz-App/logger"
	"github.com/wtfashwin/Quiz-App/models"
	"github.com/wtfashwin/Quiz-App/persistence"
)

// ResultsService stores finished games and feeds the leaderboard. Writes
// happen off the room goroutine.
type ResultsService struct {
	db      persistence.Database
	board   persistence.Leaderboard
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewResultsService(db persistence.Database, board persistence.Leaderboard) *ResultsService {
	return &ResultsService{
		db:      db,
		board:   board,
		timeout: 5 * time.Second,
	}
}

// RecordGame persists the record asynchronously. Failures are logged.
func (s *ResultsService) RecordGame(record models.GameRecord) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.db.SaveGameRecord(ctx, record); err != nil {
			logger.Log.Errorw("save game record failed", "room", record.RoomID, "error", err)
		}
		if err := s.board.AddScores(ctx, record.Scores); err != nil {
			logger.Log.Errorw("update leaderboard failed", "room", record.RoomID, "error", err)
		}
	}()
}

// Wait blocks until pending writes finish.
func (s *ResultsService) Wait() {
	s.wg.Wait()
}

func (s *ResultsService) Leaderboard(ctx context.Context, n int) ([]persistence.LeaderboardEntry, error) {
	return s.board.Top(ctx, n)
}

func (s *ResultsService) RecentGames(ctx context.Context, n int) ([]models.GameRecord, error) {
	return s.db.ListGameRecords(ctx, n)
}
