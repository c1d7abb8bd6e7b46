package router

import (
	"context"
	"time"

	"github.com/wtfashwin/Quiz-App/logger"
	"github.com/wtfashwin/Quiz-App/models"
	"github.com/wtfashwin/Quiz-App/network"
	"github.com/wtfashwin/Quiz-App/room"
)

// scheduleDeadline arms the timeout of the current question. The timer
// only ever injects an advance back into the room; it never touches state.
func (r *Router) scheduleDeadline(s *room.State) {
	if r.opts.QuestionTimeout <= 0 {
		return
	}
	roomID, index := s.ID(), s.CurrentIndex()
	id := r.timers.AddTimer(r.opts.QuestionTimeout, 0, func() {
		r.onDeadline(roomID, index)
	})
	s.SetTimer(id)
}

func (r *Router) onDeadline(roomID string, index int) {
	rm, err := r.rooms.GetRoom(roomID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.EventTimeout)
	defer cancel()

	var advanced, ended bool
	err = rm.Do(ctx, func(s *room.State) error {
		advanced, ended = r.advance(s, index)
		return nil
	})
	if err != nil {
		logger.Log.Debugw("deadline advance skipped", "room", roomID, "question", index, "error", err)
		return
	}
	if advanced {
		logger.Log.Debugw("question timed out", "room", roomID, "question", index)
	}
	if ended {
		r.roomsChanged()
	}
}

// advanceIfAnswered moves on once every rostered player has answered.
func (r *Router) advanceIfAnswered(s *room.State) (advanced, ended bool) {
	if !s.AllAnswered() {
		return false, false
	}
	return r.advance(s, s.CurrentIndex())
}

// advance leaves question from and broadcasts what comes next. Stale calls
// are no-ops.
func (r *Router) advance(s *room.State, from int) (advanced, ended bool) {
	timerID := s.TimerID()
	advanced, ended = s.Advance(from, time.Now())
	if !advanced {
		return false, false
	}
	if timerID != 0 {
		r.timers.RemoveTimer(timerID)
	}

	if ended {
		final := s.Ranked()
		r.toRoom(s, network.EventGameEnded, network.GameEndedEvent{RoomID: s.ID(), FinalScores: final})
		r.monitor.IncGamesCompleted()
		if r.results != nil {
			r.results.RecordGame(models.GameRecord{
				RoomID:        s.ID(),
				RoomName:      s.Name(),
				HostID:        s.HostID(),
				QuestionSet:   s.QuestionSet().Name(),
				QuestionCount: s.QuestionSet().Len(),
				Scores:        final,
				StartedAt:     s.StartedAt(),
				EndedAt:       s.EndedAt(),
			})
		}
		logger.Log.Infow("game ended", "room", s.ID(), "players", len(final))
		return true, true
	}

	r.scheduleDeadline(s)
	q, _ := r.questionView(s)
	r.toRoom(s, network.EventNextQuestion, network.QuestionEvent{RoomID: s.ID(), Question: q})
	return true, false
}
