package router

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtfashwin/Quiz-App/auth"
	"github.com/wtfashwin/Quiz-App/broadcast"
	"github.com/wtfashwin/Quiz-App/models"
	"github.com/wtfashwin/Quiz-App/monitor"
	"github.com/wtfashwin/Quiz-App/network"
	"github.com/wtfashwin/Quiz-App/room"
	"github.com/wtfashwin/Quiz-App/session"
	"github.com/wtfashwin/Quiz-App/timer"
)

type sentEvent struct {
	event string
	data  []byte
}

// MockConnection records everything sent to one client.
type MockConnection struct {
	mu     sync.Mutex
	events []sentEvent
	closed bool
}

func (c *MockConnection) Send(event string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return network.ErrConnectionClosed
	}
	c.events = append(c.events, sentEvent{event: event, data: append([]byte(nil), data...)})
	return nil
}

func (c *MockConnection) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *MockConnection) RemoteAddr() string { return "127.0.0.1:0" }

func (c *MockConnection) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.event == event {
			n++
		}
	}
	return n
}

// last decodes the most recent event named event into v.
func (c *MockConnection) last(t *testing.T, event string, v any) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].event == event {
			require.NoError(t, json.Unmarshal(c.events[i].data, v))
			return
		}
	}
	t.Fatalf("no %s event received", event)
}

type MockResolver struct {
	set models.QuestionSet
}

func (m *MockResolver) Resolve(ctx context.Context, name string) (models.QuestionSet, error) {
	return m.set, nil
}

type MockSink struct {
	mu      sync.Mutex
	records []models.GameRecord
}

func (m *MockSink) RecordGame(record models.GameRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
}

func (m *MockSink) Records() []models.GameRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.GameRecord(nil), m.records...)
}

type harness struct {
	router *Router
	rooms  *room.Manager
	sink   *MockSink
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	set, err := models.NewQuestionSet("test", []models.Question{
		{Prompt: "first?", Options: []string{"a", "b", "c"}, CorrectIndex: 0},
		{Prompt: "second?", Options: []string{"a", "b"}, CorrectIndex: 1},
	})
	require.NoError(t, err)

	rooms := room.NewRoomManager(room.Config{
		Scoring: room.Scoring{BasePoints: 100, SpeedBonus: 50, Budget: 10 * time.Second},
	}, 0)
	sessions := session.NewManager()
	mon := monitor.NewMonitor("test")
	timers := timer.NewTimerManager(5 * time.Millisecond)
	sink := &MockSink{}

	t.Cleanup(func() {
		timers.Stop()
		rooms.Close()
	})

	r := New(rooms, sessions, broadcast.NewRoomBroadcaster(sessions, mon), timers,
		&MockResolver{set: set}, sink, mon, opts)
	return &harness{router: r, rooms: rooms, sink: sink}
}

func (h *harness) connect() (*session.Session, *MockConnection) {
	conn := &MockConnection{}
	sess := session.NewSession(conn)
	h.router.Connect(sess)
	return sess, conn
}

func (h *harness) send(t *testing.T, sess *session.Session, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	h.router.Dispatch(context.Background(), sess, &network.Inbound{Event: event, Data: data})
}

func (h *harness) createRoom(t *testing.T, sess *session.Session, conn *MockConnection, hostID string) string {
	t.Helper()
	h.send(t, sess, network.EventCreateRoom, network.CreateRoomRequest{Name: "Trivia Night", HostID: hostID})
	var created network.RoomCreatedEvent
	conn.last(t, network.EventRoomCreated, &created)
	require.NotEmpty(t, created.RoomID)
	return created.RoomID
}

func (h *harness) join(t *testing.T, sess *session.Session, roomID, playerID string) {
	t.Helper()
	h.send(t, sess, network.EventJoinRoom, network.JoinRoomRequest{
		RoomID: roomID,
		Player: models.PlayerInfo{ID: playerID, Name: playerID},
	})
}

func (h *harness) answer(t *testing.T, sess *session.Session, roomID, playerID string, question, option int) {
	t.Helper()
	h.send(t, sess, network.EventSubmitAnswer, network.SubmitAnswerRequest{
		RoomID:        roomID,
		PlayerID:      playerID,
		QuestionIndex: &question,
		AnswerIndex:   &option,
	})
}

func lastError(t *testing.T, conn *MockConnection) network.ErrorEvent {
	t.Helper()
	var e network.ErrorEvent
	conn.last(t, network.EventError, &e)
	return e
}

func scoreOf(scores []models.ScoreEntry, playerID string) int {
	for _, s := range scores {
		if s.PlayerID == playerID {
			return s.Score
		}
	}
	return -1
}

func TestRouter_FullGame(t *testing.T) {
	h := newHarness(t, Options{})

	host, hostConn := h.connect()
	alice, aliceConn := h.connect()
	bob, _ := h.connect()

	roomID := h.createRoom(t, host, hostConn, "H")
	h.join(t, alice, roomID, "A")
	h.join(t, bob, roomID, "B")

	var joined network.PlayerJoinedEvent
	hostConn.last(t, network.EventPlayerJoined, &joined)
	assert.Len(t, joined.Players, 2)

	h.send(t, host, network.EventStartGame, network.StartGameRequest{RoomID: roomID, RequesterID: "H"})
	var started network.QuestionEvent
	aliceConn.last(t, network.EventGameStarted, &started)
	assert.Equal(t, 0, started.Question.Index)
	assert.Equal(t, "first?", started.Question.Prompt)

	h.answer(t, alice, roomID, "A", 0, 0)
	h.answer(t, bob, roomID, "B", 0, 1)

	var scores network.ScoresUpdatedEvent
	hostConn.last(t, network.EventScoresUpdated, &scores)
	assert.Greater(t, scoreOf(scores.Scores, "A"), scoreOf(scores.Scores, "B"))
	require.NotNil(t, scores.LastAnswer)
	assert.Equal(t, "B", scores.LastAnswer.PlayerID)
	assert.False(t, scores.LastAnswer.Correct)

	var next network.QuestionEvent
	aliceConn.last(t, network.EventNextQuestion, &next)
	assert.Equal(t, 1, next.Question.Index)

	h.answer(t, alice, roomID, "A", 1, 1)
	h.answer(t, bob, roomID, "B", 1, 1)

	var ended network.GameEndedEvent
	hostConn.last(t, network.EventGameEnded, &ended)
	require.Len(t, ended.FinalScores, 2)
	assert.Equal(t, "A", ended.FinalScores[0].PlayerID)
	assert.GreaterOrEqual(t, ended.FinalScores[0].Score, ended.FinalScores[1].Score)

	records := h.sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, roomID, records[0].RoomID)
	assert.Equal(t, 2, records[0].QuestionCount)

	// late answers are rejected
	h.answer(t, alice, roomID, "A", 1, 0)
	assert.Equal(t, string(room.CodeInvalidPhase), lastError(t, aliceConn).Code)
}

func TestRouter_DuplicateJoinRejected(t *testing.T) {
	h := newHarness(t, Options{})
	host, hostConn := h.connect()
	alice, aliceConn := h.connect()
	other, otherConn := h.connect()

	roomID := h.createRoom(t, host, hostConn, "H")
	h.join(t, alice, roomID, "A")
	h.join(t, alice, roomID, "A")
	assert.Equal(t, string(room.CodeAlreadyJoined), lastError(t, aliceConn).Code)

	h.join(t, other, roomID, "A")
	assert.Equal(t, string(room.CodeAlreadyJoined), lastError(t, otherConn).Code)
}

func TestRouter_StartRequiresHost(t *testing.T) {
	h := newHarness(t, Options{})
	host, hostConn := h.connect()
	alice, aliceConn := h.connect()

	roomID := h.createRoom(t, host, hostConn, "H")
	h.join(t, alice, roomID, "A")

	h.send(t, alice, network.EventStartGame, network.StartGameRequest{RoomID: roomID, RequesterID: "A"})
	assert.Equal(t, string(room.CodeUnauthorized), lastError(t, aliceConn).Code)
	assert.Zero(t, aliceConn.count(network.EventGameStarted))

	// a bare room id is accepted
	h.send(t, host, network.EventAuthenticate, network.AuthenticateRequest{User: &network.UserPayload{ID: "H"}})
	h.send(t, host, network.EventStartGame, roomID)
	assert.Equal(t, 1, aliceConn.count(network.EventGameStarted))
}

func TestRouter_UnknownRoomAndEvent(t *testing.T) {
	h := newHarness(t, Options{})
	alice, conn := h.connect()

	h.join(t, alice, "missing", "A")
	assert.Equal(t, string(room.CodeNotFound), lastError(t, conn).Code)

	h.send(t, alice, "dance", map[string]string{})
	assert.Equal(t, string(room.CodeBadRequest), lastError(t, conn).Code)

	h.router.Dispatch(context.Background(), alice, &network.Inbound{Event: network.EventJoinRoom})
	assert.Equal(t, string(room.CodeBadRequest), lastError(t, conn).Code)
}

func TestRouter_DeadlineAdvances(t *testing.T) {
	h := newHarness(t, Options{QuestionTimeout: 30 * time.Millisecond})
	host, hostConn := h.connect()
	alice, _ := h.connect()

	roomID := h.createRoom(t, host, hostConn, "H")
	h.join(t, alice, roomID, "A")
	h.send(t, host, network.EventStartGame, network.StartGameRequest{RoomID: roomID, RequesterID: "H"})

	require.Eventually(t, func() bool {
		return hostConn.count(network.EventNextQuestion) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return hostConn.count(network.EventGameEnded) == 1
	}, 2*time.Second, 5*time.Millisecond)

	var ended network.GameEndedEvent
	hostConn.last(t, network.EventGameEnded, &ended)
	assert.Equal(t, 0, scoreOf(ended.FinalScores, "A"))
}

func TestRouter_LastPlayerLeavingRemovesRoom(t *testing.T) {
	h := newHarness(t, Options{})
	host, hostConn := h.connect()
	alice, _ := h.connect()

	roomID := h.createRoom(t, host, hostConn, "H")
	h.join(t, alice, roomID, "A")
	require.Equal(t, 1, h.rooms.Count())

	h.router.Disconnect(alice)

	assert.Equal(t, 0, h.rooms.Count())
	_, err := h.rooms.GetRoom(roomID)
	assert.ErrorIs(t, err, room.ErrNotFound)

	var left network.PlayerLeftEvent
	hostConn.last(t, network.EventPlayerLeft, &left)
	assert.Equal(t, "A", left.Player.ID)

	boundRoom, _ := host.Room()
	assert.Empty(t, boundRoom)

	// disconnecting twice is harmless
	h.router.Disconnect(alice)
}

func TestRouter_LeaveMidGameAdvances(t *testing.T) {
	h := newHarness(t, Options{})
	host, hostConn := h.connect()
	alice, _ := h.connect()
	bob, _ := h.connect()

	roomID := h.createRoom(t, host, hostConn, "H")
	h.join(t, alice, roomID, "A")
	h.join(t, bob, roomID, "B")
	h.send(t, host, network.EventStartGame, network.StartGameRequest{RoomID: roomID, RequesterID: "H"})

	h.answer(t, alice, roomID, "A", 0, 0)
	assert.Zero(t, hostConn.count(network.EventNextQuestion))

	h.send(t, bob, network.EventLeaveRoom, network.LeaveRoomRequest{RoomID: roomID})
	assert.Equal(t, 1, hostConn.count(network.EventNextQuestion))
	assert.Equal(t, 1, h.rooms.Count())
}

func TestRouter_AuthRequired(t *testing.T) {
	jwtCfg := &auth.JWTConfig{Secret: []byte("test-secret"), Issuer: "quiz", Audience: "quiz", TTL: time.Hour}
	h := newHarness(t, Options{AuthRequired: true, JWT: jwtCfg})
	sess, conn := h.connect()

	h.send(t, sess, network.EventCreateRoom, network.CreateRoomRequest{Name: "r", HostID: "H"})
	assert.Equal(t, string(room.CodeUnauthorized), lastError(t, conn).Code)

	h.send(t, sess, network.EventAuthenticate, network.AuthenticateRequest{User: &network.UserPayload{ID: "H"}})
	assert.Equal(t, string(room.CodeUnauthorized), lastError(t, conn).Code)

	h.send(t, sess, network.EventAuthenticate, network.AuthenticateRequest{Token: "garbage"})
	assert.Equal(t, string(room.CodeUnauthorized), lastError(t, conn).Code)

	token, err := auth.GenerateToken(jwtCfg, "H", "Host", "host")
	require.NoError(t, err)
	h.send(t, sess, network.EventAuthenticate, network.AuthenticateRequest{Token: token})

	var authed network.AuthenticatedEvent
	conn.last(t, network.EventAuthenticated, &authed)
	assert.Equal(t, "H", authed.User.ID)

	// acting as someone else is refused
	h.send(t, sess, network.EventCreateRoom, network.CreateRoomRequest{Name: "r", HostID: "X"})
	assert.Equal(t, string(room.CodeUnauthorized), lastError(t, conn).Code)

	roomID := h.createRoom(t, sess, conn, "")
	rm, err := h.rooms.GetRoom(roomID)
	require.NoError(t, err)
	assert.Equal(t, "H", rm.HostID)
}

func TestRouter_SendMessage(t *testing.T) {
	h := newHarness(t, Options{})
	host, hostConn := h.connect()
	alice, aliceConn := h.connect()
	stranger, strangerConn := h.connect()

	roomID := h.createRoom(t, host, hostConn, "H")
	h.join(t, alice, roomID, "A")

	h.send(t, alice, network.EventSendMessage, network.SendMessageRequest{RoomID: roomID, PlayerID: "A", Text: "  hi  "})
	var msg network.ChatMessageEvent
	hostConn.last(t, network.EventReceiveMessage, &msg)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "A", msg.PlayerID)

	h.send(t, alice, network.EventSendMessage, network.SendMessageRequest{RoomID: roomID, PlayerID: "A", Text: "   "})
	assert.Equal(t, string(room.CodeBadRequest), lastError(t, aliceConn).Code)

	h.send(t, stranger, network.EventSendMessage, network.SendMessageRequest{RoomID: roomID, PlayerID: "Z", Text: "hello"})
	assert.Equal(t, string(room.CodeUnauthorized), lastError(t, strangerConn).Code)

	h.send(t, host, network.EventSendMessage, network.SendMessageRequest{PlayerID: "H", Text: "welcome"})
	aliceConn.last(t, network.EventReceiveMessage, &msg)
	assert.Equal(t, "H", msg.PlayerID)
	assert.Equal(t, 2, aliceConn.count(network.EventReceiveMessage))
}

func TestRouter_GetRoomsAndRoom(t *testing.T) {
	h := newHarness(t, Options{})
	host, hostConn := h.connect()
	roomID := h.createRoom(t, host, hostConn, "H")

	h.send(t, host, network.EventGetRooms, nil)
	var rooms []models.RoomSummary
	hostConn.last(t, network.EventRoomsUpdated, &rooms)
	require.Len(t, rooms, 1)
	assert.Equal(t, roomID, rooms[0].ID)

	h.send(t, host, network.EventGetRoom, network.GetRoomRequest{RoomID: roomID})
	var view network.RoomView
	hostConn.last(t, network.EventRoomState, &view)
	assert.Equal(t, "waiting", view.Phase)
	assert.Equal(t, 2, view.QuestionCount)
	assert.Nil(t, view.CurrentQuestion)
}

func TestRouter_TimedOutJoinLeavesRoomUnchanged(t *testing.T) {
	h := newHarness(t, Options{EventTimeout: 50 * time.Millisecond})
	host, hostConn := h.connect()
	alice, aliceConn := h.connect()

	roomID := h.createRoom(t, host, hostConn, "H")
	rm, err := h.rooms.GetRoom(roomID)
	require.NoError(t, err)

	busy := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		rm.Do(context.Background(), func(s *room.State) error {
			close(busy)
			<-release
			return nil
		})
	}()
	<-busy

	h.join(t, alice, roomID, "A")
	close(release)
	<-finished

	rejected := lastError(t, aliceConn)
	assert.Equal(t, string(room.CodeBadRequest), rejected.Code)

	require.NoError(t, rm.Do(context.Background(), func(s *room.State) error {
		assert.False(t, s.HasPlayer("A"))
		return nil
	}))
	assert.Zero(t, rm.PlayerCount())
	assert.Zero(t, hostConn.count(network.EventPlayerJoined))
	boundRoom, _ := alice.Room()
	assert.Empty(t, boundRoom)

	// retrying works and disconnecting cleans up
	h.join(t, alice, roomID, "A")
	assert.Equal(t, 1, rm.PlayerCount())
	h.router.Disconnect(alice)
	assert.Equal(t, 0, h.rooms.Count())
}

func TestRouter_UnauthenticatedActsOnlyAsItself(t *testing.T) {
	h := newHarness(t, Options{})
	host, hostConn := h.connect()
	alice, aliceConn := h.connect()
	stranger, strangerConn := h.connect()

	roomID := h.createRoom(t, host, hostConn, "H")
	h.join(t, alice, roomID, "A")
	h.send(t, host, network.EventStartGame, network.StartGameRequest{RoomID: roomID, RequesterID: "H"})

	h.answer(t, host, roomID, "A", 0, 0)
	assert.Equal(t, string(room.CodeUnauthorized), lastError(t, hostConn).Code)

	h.answer(t, stranger, roomID, "A", 0, 0)
	assert.Equal(t, string(room.CodeUnauthorized), lastError(t, strangerConn).Code)

	h.send(t, stranger, network.EventSendMessage, network.SendMessageRequest{RoomID: roomID, PlayerID: "H", Text: "hi"})
	assert.Equal(t, string(room.CodeUnauthorized), lastError(t, strangerConn).Code)
	assert.Zero(t, aliceConn.count(network.EventReceiveMessage))

	assert.Zero(t, hostConn.count(network.EventScoresUpdated))
	h.answer(t, alice, roomID, "A", 0, 0)
	assert.Equal(t, 1, hostConn.count(network.EventScoresUpdated))
}

func TestRouter_RoomListArrivesInOrder(t *testing.T) {
	h := newHarness(t, Options{})
	_, watcherConn := h.connect()

	const creators = 8
	var wg sync.WaitGroup
	for i := 0; i < creators; i++ {
		sess, _ := h.connect()
		data, err := json.Marshal(network.CreateRoomRequest{Name: "room", HostID: "host"})
		require.NoError(t, err)

		wg.Add(1)
		go func() {
			defer wg.Done()
			h.router.Dispatch(context.Background(), sess, &network.Inbound{Event: network.EventCreateRoom, Data: data})
		}()
	}
	wg.Wait()

	require.Equal(t, creators, h.rooms.Count())
	var rooms []models.RoomSummary
	watcherConn.last(t, network.EventRoomsUpdated, &rooms)
	assert.Len(t, rooms, creators)
}

func TestRouter_DisconnectEvent(t *testing.T) {
	h := newHarness(t, Options{})
	host, hostConn := h.connect()
	alice, aliceConn := h.connect()

	roomID := h.createRoom(t, host, hostConn, "H")
	h.join(t, alice, roomID, "A")

	h.router.Dispatch(context.Background(), alice, &network.Inbound{Event: network.EventDisconnect})

	_, ok := h.router.sessions.Get(alice.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, h.rooms.Count())
	assert.Equal(t, 1, hostConn.count(network.EventPlayerLeft))

	assert.ErrorIs(t, aliceConn.Send(network.EventRoomsUpdated, nil), network.ErrConnectionClosed)
}
