// room/room.go
package room

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wtfashwin/Quiz-App/models"
	"github.com/wtfashwin/Quiz-App/state"
)

// Config holds the per-room limits and scoring policy.
type Config struct {
	MaxPlayers int
	QueueSize  int
	Scoring    Scoring
}

const (
	jobQueued int32 = iota
	jobRunning
	jobCancelled
)

type job struct {
	fn     func(*State) error
	result chan error
	status *atomic.Int32
}

// Room 是游戏房间的核心结构。所有状态修改都在房间自己的 goroutine 中串行执行
type Room struct {
	ID        string
	Name      string
	HostID    string
	CreatedAt time.Time

	inbox     chan job
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	inFlight  atomic.Int32

	summary    atomic.Pointer[models.RoomSummary]
	emptySince atomic.Int64

	state *State
}

// NewRoom 创建一个新房间并启动它的执行循环
func NewRoom(id, name, hostID string, questions models.QuestionSet, cfg Config) *Room {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	r := &Room{
		ID:        id,
		Name:      name,
		HostID:    hostID,
		CreatedAt: time.Now(),
		inbox:     make(chan job, cfg.QueueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	r.state = newState(r, questions, cfg)
	r.publish()

	go r.loop()
	return r
}

// Do runs fn inside the room's serialization boundary and returns its
// error. Calls are applied one at a time in arrival order. Do must not be
// called from inside another fn of the same room.
//
// If ctx ends while fn is still queued, fn is withdrawn and never runs. Once
// fn has started, Do waits for it, so a nil error always means fn ran and a
// context error always means it did not.
func (r *Room) Do(ctx context.Context, fn func(*State) error) error {
	j := job{fn: fn, result: make(chan error, 1), status: new(atomic.Int32)}

	select {
	case r.inbox <- j:
	case <-r.quit:
		return Errorf(CodeNotFound, "room %s not found", r.ID)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.result:
		return err
	case <-r.done:
		select {
		case err := <-j.result:
			return err
		default:
			return Errorf(CodeNotFound, "room %s not found", r.ID)
		}
	case <-ctx.Done():
		if j.status.CompareAndSwap(jobQueued, jobCancelled) {
			return ctx.Err()
		}
		// 已经开始执行，等结果
		return <-j.result
	}
}

// Summary returns the last published summary without entering the room.
func (r *Room) Summary() models.RoomSummary {
	return *r.summary.Load()
}

// PlayerCount reads the roster size from the published summary.
func (r *Room) PlayerCount() int {
	return r.summary.Load().PlayerCount
}

// EmptyFor reports how long the roster has been empty, or zero if it is not.
func (r *Room) EmptyFor(now time.Time) time.Duration {
	since := r.emptySince.Load()
	if since == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, since))
}

// Close 停止房间循环，排队中的调用返回 not_found
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.quit)
	})
}

// Done is closed once the room loop has exited.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) loop() {
	defer close(r.done)

	for {
		select {
		case j := <-r.inbox:
			if !j.status.CompareAndSwap(jobQueued, jobRunning) {
				continue
			}
			j.result <- r.apply(j.fn)
		case <-r.quit:
			for {
				select {
				case j := <-r.inbox:
					j.result <- Errorf(CodeNotFound, "room %s not found", r.ID)
				default:
					return
				}
			}
		}
	}
}

func (r *Room) apply(fn func(*State) error) error {
	if r.state.closed {
		return Errorf(CodeNotFound, "room %s not found", r.ID)
	}

	// 同一房间的两次修改交错执行属于程序错误
	if !r.inFlight.CompareAndSwap(0, 1) {
		panic("room " + r.ID + ": concurrent mutation")
	}
	defer r.inFlight.Store(0)

	err := fn(r.state)
	r.publish()
	return err
}

func (r *Room) publish() {
	s := r.state
	r.summary.Store(&models.RoomSummary{
		ID:            r.ID,
		Name:          r.Name,
		HostID:        r.HostID,
		Phase:         string(s.Phase()),
		PlayerCount:   len(s.players),
		QuestionCount: s.questions.Len(),
		CreatedAt:     r.CreatedAt,
	})
	if len(s.players) == 0 {
		r.emptySince.CompareAndSwap(0, s.emptySince.UnixNano())
	} else {
		r.emptySince.Store(0)
	}
}

// State is the mutable room state. It is only reachable from inside Do.
type State struct {
	room      *Room
	cfg       Config
	questions models.QuestionSet
	machine   *state.BaseStateMachine

	players []models.PlayerInfo
	members map[string]Member // playerID -> delivery endpoint
	host    Member
	scores  *Scoreboard

	current    int
	answered   map[string]bool
	askedAt    time.Time
	deadline   time.Time
	timerID    int64
	startedAt  time.Time
	endedAt    time.Time
	emptySince time.Time
	closed     bool
}

func newState(r *Room, questions models.QuestionSet, cfg Config) *State {
	s := &State{
		room:       r,
		cfg:        cfg,
		questions:  questions,
		members:    make(map[string]Member),
		scores:     NewScoreboard(),
		current:    -1,
		answered:   make(map[string]bool),
		emptySince: r.CreatedAt,
	}
	s.machine = state.NewGameMachine(func() bool { return s.questions.Len() > 0 })
	return s
}

func (s *State) ID() string     { return s.room.ID }
func (s *State) Name() string   { return s.room.Name }
func (s *State) HostID() string { return s.room.HostID }

func (s *State) Phase() state.Phase {
	return s.machine.Phase()
}

func (s *State) QuestionSet() models.QuestionSet {
	return s.questions
}

// CurrentIndex is -1 until the game starts.
func (s *State) CurrentIndex() int {
	return s.current
}

// CurrentQuestion is only meaningful while the game is in progress.
func (s *State) CurrentQuestion() (models.Question, bool) {
	if s.Phase() != state.InProgress {
		return models.Question{}, false
	}
	return s.questions.At(s.current)
}

func (s *State) Deadline() time.Time  { return s.deadline }
func (s *State) StartedAt() time.Time { return s.startedAt }
func (s *State) EndedAt() time.Time   { return s.endedAt }

func (s *State) Players() []models.PlayerInfo {
	return append([]models.PlayerInfo(nil), s.players...)
}

func (s *State) PlayerCount() int {
	return len(s.players)
}

func (s *State) HasPlayer(playerID string) bool {
	_, ok := s.indexOf(playerID)
	return ok
}

func (s *State) Player(playerID string) (models.PlayerInfo, bool) {
	i, ok := s.indexOf(playerID)
	if !ok {
		return models.PlayerInfo{}, false
	}
	return s.players[i], true
}

func (s *State) Scores() []models.ScoreEntry {
	return s.scores.Snapshot()
}

func (s *State) Ranked() []models.ScoreEntry {
	return s.scores.Ranked()
}

func (s *State) indexOf(playerID string) (int, bool) {
	for i, p := range s.players {
		if p.ID == playerID {
			return i, true
		}
	}
	return -1, false
}

// ValidateJoin checks a join without changing anything.
func (s *State) ValidateJoin(p models.PlayerInfo) error {
	if p.ID == "" {
		return Errorf(CodeBadRequest, "player id is required")
	}
	if s.Phase() != state.Waiting {
		return Errorf(CodeInvalidPhase, "room %s is %s, joining is closed", s.room.ID, s.Phase())
	}
	if s.HasPlayer(p.ID) {
		return Errorf(CodeAlreadyJoined, "player %s already joined room %s", p.ID, s.room.ID)
	}
	if s.cfg.MaxPlayers > 0 && len(s.players) >= s.cfg.MaxPlayers {
		return Errorf(CodeCapacityExceeded, "room %s is full", s.room.ID)
	}
	return nil
}

// Join appends a validated player and opens their scoreboard entry.
func (s *State) Join(p models.PlayerInfo, m Member) {
	s.players = append(s.players, p)
	s.scores.Add(p)
	if m != nil {
		s.members[p.ID] = m
	}
	s.emptySince = time.Time{}
}

// Leave removes a player from the roster, keeping their score.
func (s *State) Leave(playerID string) (models.PlayerInfo, bool) {
	i, ok := s.indexOf(playerID)
	if !ok {
		return models.PlayerInfo{}, false
	}
	p := s.players[i]
	s.players = append(s.players[:i], s.players[i+1:]...)
	delete(s.members, playerID)
	delete(s.answered, playerID)
	s.scores.Leave(playerID)
	if len(s.players) == 0 {
		s.emptySince = time.Now()
	}
	return p, true
}

// SubscribeHost makes m receive room broadcasts without joining the roster.
func (s *State) SubscribeHost(m Member) {
	s.host = m
}

// UnsubscribeHost drops the host subscription if it belongs to memberID.
func (s *State) UnsubscribeHost(memberID string) bool {
	if s.host == nil || s.host.GetID() != memberID {
		return false
	}
	s.host = nil
	return true
}

func (s *State) HasHostSubscription() bool {
	return s.host != nil
}

// Recipients returns every endpoint joined to the room, host first, each
// endpoint once.
func (s *State) Recipients() []Member {
	out := make([]Member, 0, len(s.players)+1)
	seen := make(map[string]bool, len(s.players)+1)
	if s.host != nil {
		out = append(out, s.host)
		seen[s.host.GetID()] = true
	}
	for _, p := range s.players {
		m, ok := s.members[p.ID]
		if !ok || seen[m.GetID()] {
			continue
		}
		seen[m.GetID()] = true
		out = append(out, m)
	}
	return out
}

// ValidateStart checks that requesterID may start the game now.
func (s *State) ValidateStart(requesterID string) error {
	if requesterID != s.room.HostID {
		return Errorf(CodeUnauthorized, "only the host can start room %s", s.room.ID)
	}
	if s.Phase() != state.Waiting {
		return Errorf(CodeInvalidPhase, "room %s is already %s", s.room.ID, s.Phase())
	}
	if !s.machine.CanChange(state.InProgress) {
		return Errorf(CodeInvalidPhase, "room %s has no questions", s.room.ID)
	}
	return nil
}

// Start moves a validated room into play on its first question.
func (s *State) Start(now time.Time) error {
	if err := s.machine.ChangeState(&state.PhaseState{ID: state.InProgress}); err != nil {
		return Errorf(CodeInvalidPhase, "room %s cannot start: %v", s.room.ID, err)
	}
	s.startedAt = now
	s.ask(0, now)
	return nil
}

func (s *State) ask(index int, now time.Time) {
	s.current = index
	s.answered = make(map[string]bool)
	s.askedAt = now
	s.deadline = now.Add(s.cfg.Scoring.Budget)
	s.timerID = 0
}

// SetTimer remembers the deadline timer of the current question.
func (s *State) SetTimer(id int64) { s.timerID = id }

func (s *State) TimerID() int64 { return s.timerID }

// ValidateAnswer checks a submission without changing anything.
func (s *State) ValidateAnswer(playerID string, questionIndex int) error {
	if s.Phase() != state.InProgress {
		return Errorf(CodeInvalidPhase, "room %s is not in progress", s.room.ID)
	}
	if !s.HasPlayer(playerID) {
		return Errorf(CodeInvalidSubmission, "player %s is not in room %s", playerID, s.room.ID)
	}
	if questionIndex != s.current {
		return Errorf(CodeInvalidSubmission, "question %d is not the current question", questionIndex)
	}
	if s.answered[playerID] {
		return Errorf(CodeInvalidSubmission, "player %s already answered question %d", playerID, questionIndex)
	}
	return nil
}

// AnswerOutcome describes one accepted answer.
type AnswerOutcome struct {
	PlayerID      string
	QuestionIndex int
	Correct       bool
	Awarded       int
}

// RecordAnswer scores a validated answer. An option index outside the
// question's range counts as wrong.
func (s *State) RecordAnswer(playerID string, answerIndex int, now time.Time) AnswerOutcome {
	q, _ := s.questions.At(s.current)
	correct := q.IsCorrect(answerIndex)
	points := s.cfg.Scoring.Points(correct, now.Sub(s.askedAt))

	s.answered[playerID] = true
	s.scores.Award(playerID, points)

	return AnswerOutcome{
		PlayerID:      playerID,
		QuestionIndex: s.current,
		Correct:       correct,
		Awarded:       points,
	}
}

// AllAnswered reports whether every rostered player answered the current
// question.
func (s *State) AllAnswered() bool {
	if s.Phase() != state.InProgress || len(s.players) == 0 {
		return false
	}
	for _, p := range s.players {
		if !s.answered[p.ID] {
			return false
		}
	}
	return true
}

// Advance moves past question fromIndex. It is a no-op returning false when
// the room is not in progress or has already moved on, which makes stale
// deadline timers harmless. ended is true when the last question was passed.
func (s *State) Advance(fromIndex int, now time.Time) (advanced, ended bool) {
	if s.Phase() != state.InProgress || s.current != fromIndex {
		return false, false
	}

	next := s.current + 1
	if next >= s.questions.Len() {
		if err := s.machine.ChangeState(&state.PhaseState{ID: state.Ended}); err != nil {
			return false, false
		}
		s.endedAt = now
		s.deadline = time.Time{}
		s.timerID = 0
		return true, true
	}

	s.ask(next, now)
	return true, false
}

// MarkClosed retires the room: later calls to Do fail with not_found.
func (s *State) MarkClosed() {
	s.closed = true
}
