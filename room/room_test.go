package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wtfashwin/Quiz-App/models"
	"github.com/wtfashwin/Quiz-App/state"
)

// MockMember is a test double for the Member interface.
type MockMember struct {
	ID     string
	mutex  sync.Mutex
	Events []string
}

func (m *MockMember) GetID() string { return m.ID }

func (m *MockMember) Send(event string, data []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func testQuestions(t *testing.T, n int) models.QuestionSet {
	t.Helper()
	questions := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, models.Question{
			Prompt:       fmt.Sprintf("Question %d?", i),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
		})
	}
	set, err := models.NewQuestionSet("test", questions)
	if err != nil {
		t.Fatalf("NewQuestionSet failed: %v", err)
	}
	return set
}

func testConfig() Config {
	return Config{
		QueueSize: 16,
		Scoring:   Scoring{BasePoints: 100, SpeedBonus: 50, Budget: 30 * time.Second},
	}
}

func newTestRoom(t *testing.T, questions int) *Room {
	t.Helper()
	r := NewRoom("room-1", "Test Room", "host", testQuestions(t, questions), testConfig())
	t.Cleanup(r.Close)
	return r
}

func join(t *testing.T, r *Room, id string) error {
	t.Helper()
	return r.Do(context.Background(), func(s *State) error {
		p := models.PlayerInfo{ID: id, Name: "name-" + id}
		if err := s.ValidateJoin(p); err != nil {
			return err
		}
		s.Join(p, &MockMember{ID: "conn-" + id})
		return nil
	})
}

func start(t *testing.T, r *Room, requester string) error {
	t.Helper()
	return r.Do(context.Background(), func(s *State) error {
		if err := s.ValidateStart(requester); err != nil {
			return err
		}
		return s.Start(time.Now())
	})
}

func answer(r *Room, playerID string, question, option int) error {
	return r.Do(context.Background(), func(s *State) error {
		if err := s.ValidateAnswer(playerID, question); err != nil {
			return err
		}
		s.RecordAnswer(playerID, option, time.Now())
		return nil
	})
}

func scoresOf(t *testing.T, r *Room) map[string]int {
	t.Helper()
	out := make(map[string]int)
	err := r.Do(context.Background(), func(s *State) error {
		for _, e := range s.Scores() {
			out[e.PlayerID] = e.Score
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reading scores failed: %v", err)
	}
	return out
}

func TestRoomManager_CreateAndGetRoom(t *testing.T) {
	manager := NewRoomManager(testConfig(), 0)
	defer manager.Close()

	room, err := manager.CreateRoom("Test Room", "host", testQuestions(t, 2))
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if room.ID == "" {
		t.Fatal("CreateRoom should assign an id")
	}

	retrievedRoom, err := manager.GetRoom(room.ID)
	if err != nil {
		t.Fatalf("GetRoom should find the created room: %v", err)
	}
	if retrievedRoom != room {
		t.Error("GetRoom should return the same room instance")
	}

	summary := room.Summary()
	if summary.Phase != string(state.Waiting) || summary.PlayerCount != 0 || summary.QuestionCount != 2 {
		t.Errorf("Unexpected initial summary: %+v", summary)
	}

	if _, err := manager.GetRoom("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected not_found for unknown room, got %v", err)
	}
}

func TestRoomManager_CapacityExceeded(t *testing.T) {
	manager := NewRoomManager(testConfig(), 1)
	defer manager.Close()

	if _, err := manager.CreateRoom("one", "host", testQuestions(t, 1)); err != nil {
		t.Fatalf("First CreateRoom failed: %v", err)
	}
	if _, err := manager.CreateRoom("two", "host", testQuestions(t, 1)); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Expected capacity_exceeded, got %v", err)
	}
}

func TestRoomManager_ListRoomsOrdered(t *testing.T) {
	manager := NewRoomManager(testConfig(), 0)
	defer manager.Close()

	first, _ := manager.CreateRoom("first", "host", testQuestions(t, 1))
	time.Sleep(2 * time.Millisecond)
	second, _ := manager.CreateRoom("second", "host", testQuestions(t, 1))

	list := manager.ListRooms()
	if len(list) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Errorf("Expected rooms in creation order, got %s then %s", list[0].Name, list[1].Name)
	}
}

func TestRoom_JoinDistinctPlayers(t *testing.T) {
	r := newTestRoom(t, 2)

	for _, id := range []string{"a", "b", "c"} {
		if err := join(t, r, id); err != nil {
			t.Fatalf("join %s failed: %v", id, err)
		}
	}
	if err := join(t, r, "b"); !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("Expected already_joined for duplicate id, got %v", err)
	}
	if r.PlayerCount() != 3 {
		t.Errorf("Expected 3 players, got %d", r.PlayerCount())
	}
	if got := len(scoresOf(t, r)); got != 3 {
		t.Errorf("Expected one scoreboard entry per player, got %d", got)
	}
}

func TestRoom_JoinFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 1
	r := NewRoom("room-full", "Full", "host", testQuestions(t, 1), cfg)
	defer r.Close()

	if err := join(t, r, "a"); err != nil {
		t.Fatalf("First join failed: %v", err)
	}
	if err := join(t, r, "b"); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Expected capacity_exceeded, got %v", err)
	}
}

func TestRoom_StartByNonHost(t *testing.T) {
	r := newTestRoom(t, 2)
	_ = join(t, r, "a")

	if err := start(t, r, "a"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected unauthorized, got %v", err)
	}
	if r.Summary().Phase != string(state.Waiting) {
		t.Errorf("Expected phase to stay waiting, got %s", r.Summary().Phase)
	}
}

func TestRoom_StartWithoutQuestions(t *testing.T) {
	r := NewRoom("room-empty", "Empty", "host", models.QuestionSet{}, testConfig())
	defer r.Close()

	if err := start(t, r, "host"); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("Expected invalid_phase for empty question set, got %v", err)
	}
}

func TestRoom_JoinAfterStart(t *testing.T) {
	r := newTestRoom(t, 2)
	_ = join(t, r, "a")

	if err := start(t, r, "host"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := start(t, r, "host"); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("Expected invalid_phase on second start, got %v", err)
	}
	if err := join(t, r, "late"); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("Expected invalid_phase for late join, got %v", err)
	}
}

func TestRoom_AnswerValidation(t *testing.T) {
	r := newTestRoom(t, 2)
	_ = join(t, r, "a")

	if err := answer(r, "a", 0, 0); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("Expected invalid_phase before start, got %v", err)
	}

	_ = start(t, r, "host")

	if err := answer(r, "stranger", 0, 0); !errors.Is(err, ErrInvalidSubmission) {
		t.Errorf("Expected invalid_submission for non-roster player, got %v", err)
	}
	if err := answer(r, "a", 1, 0); !errors.Is(err, ErrInvalidSubmission) {
		t.Errorf("Expected invalid_submission for wrong question, got %v", err)
	}
	if got := scoresOf(t, r)["a"]; got != 0 {
		t.Errorf("Rejected answers must not score, got %d", got)
	}
}

func TestRoom_ConcurrentAnswers(t *testing.T) {
	r := newTestRoom(t, 2)
	_ = join(t, r, "a")
	_ = join(t, r, "b")
	_ = start(t, r, "host")

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			results <- answer(r, "a", 0, 0)
		}()
		go func() {
			defer wg.Done()
			results <- answer(r, "b", 0, 0)
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
		} else if !errors.Is(err, ErrInvalidSubmission) {
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if accepted != 2 {
		t.Errorf("Expected exactly one accepted answer per player, got %d", accepted)
	}

	for id, score := range scoresOf(t, r) {
		if score < 100 || score > 150 {
			t.Errorf("Expected a single correct answer for %s, got %d", id, score)
		}
	}
}

func TestRoom_ReplayedAnswerIgnored(t *testing.T) {
	r := newTestRoom(t, 2)
	_ = join(t, r, "a")
	_ = join(t, r, "b")
	_ = start(t, r, "host")

	if err := answer(r, "a", 0, 0); err != nil {
		t.Fatalf("first answer failed: %v", err)
	}
	before := scoresOf(t, r)["a"]

	if err := answer(r, "a", 0, 0); !errors.Is(err, ErrInvalidSubmission) {
		t.Errorf("Expected invalid_submission on replay, got %v", err)
	}
	if after := scoresOf(t, r)["a"]; after != before {
		t.Errorf("Replay changed score from %d to %d", before, after)
	}
}

func TestRoom_AdvanceAndEnd(t *testing.T) {
	r := newTestRoom(t, 2)
	_ = join(t, r, "a")
	_ = start(t, r, "host")

	ctx := context.Background()
	err := r.Do(ctx, func(s *State) error {
		if !s.AllAnswered() {
			s.RecordAnswer("a", 0, time.Now())
		}
		if !s.AllAnswered() {
			t.Error("Expected all players to have answered")
		}

		if advanced, ended := s.Advance(0, time.Now()); !advanced || ended {
			t.Errorf("Expected advance to question 1, got advanced=%v ended=%v", advanced, ended)
		}
		if s.CurrentIndex() != 1 {
			t.Errorf("Expected current index 1, got %d", s.CurrentIndex())
		}
		if s.AllAnswered() {
			t.Error("Answers must reset on a new question")
		}

		// stale deadline for question 0
		if advanced, _ := s.Advance(0, time.Now()); advanced {
			t.Error("Stale advance should be a no-op")
		}

		if advanced, ended := s.Advance(1, time.Now()); !advanced || !ended {
			t.Errorf("Expected game to end, got advanced=%v ended=%v", advanced, ended)
		}
		if s.Phase() != state.Ended {
			t.Errorf("Expected ended phase, got %s", s.Phase())
		}
		if advanced, _ := s.Advance(1, time.Now()); advanced {
			t.Error("Advance after end should be a no-op")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRoom_LeaveKeepsScore(t *testing.T) {
	r := newTestRoom(t, 1)
	_ = join(t, r, "a")
	_ = join(t, r, "b")
	_ = start(t, r, "host")
	_ = answer(r, "a", 0, 0)

	err := r.Do(context.Background(), func(s *State) error {
		p, ok := s.Leave("a")
		if !ok || p.ID != "a" {
			t.Errorf("Expected to remove a, got %+v %v", p, ok)
		}
		if _, ok := s.Leave("a"); ok {
			t.Error("Second leave should report false")
		}
		for _, e := range s.Scores() {
			if e.PlayerID == "a" && (e.Present || e.Score == 0) {
				t.Errorf("Departed player should keep score and be absent: %+v", e)
			}
		}
		if len(s.Recipients()) != 1 {
			t.Errorf("Expected only b to receive broadcasts, got %d", len(s.Recipients()))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRoom_RecipientsIncludeHost(t *testing.T) {
	r := newTestRoom(t, 1)
	host := &MockMember{ID: "host-conn"}

	err := r.Do(context.Background(), func(s *State) error {
		s.SubscribeHost(host)
		s.Join(models.PlayerInfo{ID: "host", Name: "Host"}, host)
		s.Join(models.PlayerInfo{ID: "a", Name: "A"}, &MockMember{ID: "a-conn"})

		recipients := s.Recipients()
		if len(recipients) != 2 {
			t.Errorf("Expected host once plus a, got %d", len(recipients))
		}
		if recipients[0].GetID() != "host-conn" {
			t.Errorf("Expected host first, got %s", recipients[0].GetID())
		}
		if s.UnsubscribeHost("other") {
			t.Error("Unsubscribe with a different id should fail")
		}
		if !s.UnsubscribeHost("host-conn") || s.HasHostSubscription() {
			t.Error("Expected host subscription to be dropped")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRoomManager_RemoveIfEmpty(t *testing.T) {
	manager := NewRoomManager(testConfig(), 0)
	defer manager.Close()
	ctx := context.Background()

	room, _ := manager.CreateRoom("Test Room", "host", testQuestions(t, 1))
	_ = join(t, room, "a")

	if manager.RemoveIfEmpty(ctx, room.ID) {
		t.Fatal("Room with players must not be removed")
	}

	_ = room.Do(ctx, func(s *State) error {
		s.Leave("a")
		return nil
	})

	if !manager.RemoveIfEmpty(ctx, room.ID) {
		t.Fatal("Empty room should be removed")
	}
	if manager.RemoveIfEmpty(ctx, room.ID) {
		t.Error("RemoveIfEmpty should be idempotent")
	}
	for _, s := range manager.ListRooms() {
		if s.ID == room.ID {
			t.Error("Removed room should not be listed")
		}
	}
	if err := join(t, room, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected not_found on removed room, got %v", err)
	}
}

func TestRoomManager_Sweep(t *testing.T) {
	manager := NewRoomManager(testConfig(), 0)
	defer manager.Close()
	ctx := context.Background()

	idle, _ := manager.CreateRoom("idle", "host", testQuestions(t, 1))
	busy, _ := manager.CreateRoom("busy", "host", testQuestions(t, 1))
	_ = join(t, busy, "a")

	time.Sleep(20 * time.Millisecond)
	removed := manager.Sweep(ctx, 10*time.Millisecond)

	if len(removed) != 1 || removed[0] != idle.ID {
		t.Fatalf("Expected only the idle room to be swept, got %v", removed)
	}
	if _, err := manager.GetRoom(busy.ID); err != nil {
		t.Errorf("Busy room should survive the sweep: %v", err)
	}
	if removed := manager.Sweep(ctx, time.Hour); len(removed) != 0 {
		t.Errorf("Nothing should be swept with a long ttl, got %v", removed)
	}
}

func TestRoom_SerializedMutations(t *testing.T) {
	r := newTestRoom(t, 1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = join(t, r, fmt.Sprintf("p%d", i))
		}(i)
	}
	wg.Wait()

	if r.PlayerCount() != 50 {
		t.Errorf("Expected 50 players after concurrent joins, got %d", r.PlayerCount())
	}
}

func TestRoom_DoAfterClose(t *testing.T) {
	r := NewRoom("room-closed", "Closed", "host", testQuestions(t, 1), testConfig())
	r.Close()
	<-r.Done()

	if err := join(t, r, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected not_found after close, got %v", err)
	}
}

func TestRoom_DoHonoursContext(t *testing.T) {
	r := newTestRoom(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	go func() {
		_ = r.Do(context.Background(), func(s *State) error {
			<-release
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	cancel()
	if err := r.Do(ctx, func(s *State) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	close(release)
}

func TestRoom_DoWithdrawnWhenContextEndsWhileQueued(t *testing.T) {
	r := newTestRoom(t, 2)

	running := make(chan struct{})
	release := make(chan struct{})
	go r.Do(context.Background(), func(s *State) error {
		close(running)
		<-release
		return nil
	})
	<-running

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.Do(ctx, func(s *State) error {
		s.Join(models.PlayerInfo{ID: "ghost"}, &MockMember{ID: "conn-ghost"})
		return nil
	})
	close(release)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if err := r.Do(context.Background(), func(s *State) error {
		if s.HasPlayer("ghost") {
			t.Error("Withdrawn call must not run")
		}
		return nil
	}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
}

func TestRoom_DoWaitsOnceStarted(t *testing.T) {
	r := newTestRoom(t, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := r.Do(ctx, func(s *State) error {
		time.Sleep(50 * time.Millisecond)
		s.Join(models.PlayerInfo{ID: "slow"}, &MockMember{ID: "conn-slow"})
		return nil
	})
	if err != nil {
		t.Fatalf("Started call must report its own result, got %v", err)
	}
	if r.PlayerCount() != 1 {
		t.Errorf("Expected 1 player, got %d", r.PlayerCount())
	}
}
