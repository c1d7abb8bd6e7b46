// models/models.go
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Question 单道题目
type Question struct {
	Ordinal      int      `json:"id" yaml:"-"`
	Prompt       string   `json:"question" yaml:"question"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correctAnswer" yaml:"correct_answer"`
}

// IsCorrect reports whether answerIndex picks the correct option.
func (q Question) IsCorrect(answerIndex int) bool {
	return answerIndex == q.CorrectIndex
}

func (q Question) clone() Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

var ErrEmptyQuestionSet = errors.New("question set is empty")

// QuestionSet is an immutable ordered sequence of questions. The zero value
// is an empty set.
type QuestionSet struct {
	name      string
	questions []Question
}

// NewQuestionSet validates and copies questions into a set. Ordinals are
// reassigned from the slice order.
func NewQuestionSet(name string, questions []Question) (QuestionSet, error) {
	if len(questions) == 0 {
		return QuestionSet{}, ErrEmptyQuestionSet
	}

	out := make([]Question, 0, len(questions))
	for i, q := range questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return QuestionSet{}, fmt.Errorf("question %d: empty prompt", i)
		}
		if len(q.Options) < 2 {
			return QuestionSet{}, fmt.Errorf("question %d: needs at least two options", i)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return QuestionSet{}, fmt.Errorf("question %d: correct index %d out of range", i, q.CorrectIndex)
		}
		q = q.clone()
		q.Ordinal = i
		out = append(out, q)
	}
	return QuestionSet{name: name, questions: out}, nil
}

func (s QuestionSet) Name() string { return s.name }

func (s QuestionSet) Len() int { return len(s.questions) }

// At returns a copy of the i-th question.
func (s QuestionSet) At(i int) (Question, bool) {
	if i < 0 || i >= len(s.questions) {
		return Question{}, false
	}
	return s.questions[i].clone(), true
}

// Questions returns a copy of every question in order.
func (s QuestionSet) Questions() []Question {
	out := make([]Question, len(s.questions))
	for i, q := range s.questions {
		out[i] = q.clone()
	}
	return out
}

// PlayerInfo 玩家基础信息
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ScoreEntry is one scoreboard row. Present is false once the player has left
// the room; their score is kept for the final results.
type ScoreEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Present  bool   `json:"present"`
}

// RoomSummary is the discovery view of a room.
type RoomSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	HostID        string    `json:"hostId"`
	Phase         string    `json:"state"`
	PlayerCount   int       `json:"playerCount"`
	QuestionCount int       `json:"questionCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// GameRecord 游戏记录模型
type GameRecord struct {
	RoomID        string       `json:"room_id"`
	RoomName      string       `json:"room_name"`
	HostID        string       `json:"host_id"`
	QuestionSet   string       `json:"question_set"`
	QuestionCount int          `json:"question_count"`
	Scores        []ScoreEntry `json:"scores"`
	StartedAt     time.Time    `json:"started_at"`
	EndedAt       time.Time    `json:"ended_at"`
}
