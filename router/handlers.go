package router

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wtfashwin/Quiz-App/auth"
	"github.com/wtfashwin/Quiz-App/logger"
	"github.com/wtfashwin/Quiz-App/models"
	"github.com/wtfashwin/Quiz-App/network"
	"github.com/wtfashwin/Quiz-App/room"
	"github.com/wtfashwin/Quiz-App/session"
)

const maxMessageLength = 500

func decode(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return room.Errorf(room.CodeBadRequest, "missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return room.Errorf(room.CodeBadRequest, "malformed payload: %v", err)
	}
	return nil
}

// decodeRoomRef accepts either an object or a bare room id string.
func decodeRoomRef(data json.RawMessage, v any) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", nil
	}
	if trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return "", room.Errorf(room.CodeBadRequest, "malformed room id: %v", err)
		}
		return id, nil
	}
	return "", decode(trimmed, v)
}

// targetRoom falls back to the session's bound room.
func targetRoom(sess *session.Session, roomID string) (string, error) {
	if roomID != "" {
		return roomID, nil
	}
	if bound, _ := sess.Room(); bound != "" {
		return bound, nil
	}
	return "", room.Errorf(room.CodeBadRequest, "room id is required")
}

// actAs resolves the player an event acts for. An unauthenticated session
// can only act as the player it joined as, or as the host of the room it
// created.
func (r *Router) actAs(sess *session.Session, claimed string) (string, error) {
	id, err := r.claim(sess, claimed)
	if err != nil {
		return "", err
	}
	if _, authenticated := sess.Identity(); authenticated {
		return id, nil
	}

	boundRoom, boundPlayer := sess.Room()
	switch {
	case boundPlayer != "":
		if boundPlayer != id {
			return "", room.Errorf(room.CodeUnauthorized, "connection is joined as %s", boundPlayer)
		}
	case boundRoom != "":
		rm, err := r.rooms.GetRoom(boundRoom)
		if err != nil || rm.HostID != id {
			return "", room.Errorf(room.CodeUnauthorized, "connection hosts room %s, cannot act as %s", boundRoom, id)
		}
	default:
		return "", room.Errorf(room.CodeUnauthorized, "join a room before acting as %s", id)
	}
	return id, nil
}

func (r *Router) handleAuthenticate(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var req network.AuthenticateRequest
	if err := decode(data, &req); err != nil {
		return err
	}

	var id session.Identity
	switch {
	case req.Token != "":
		if r.opts.JWT == nil || len(r.opts.JWT.Secret) == 0 {
			return room.Errorf(room.CodeUnauthorized, "token authentication is not configured")
		}
		claims, err := auth.ValidateToken(r.opts.JWT, req.Token)
		if err != nil {
			return room.Errorf(room.CodeUnauthorized, "invalid token")
		}
		id = session.Identity{UserID: claims.UserID, Name: claims.Name, Role: claims.Role}
	case req.User != nil && !r.opts.AuthRequired:
		if req.User.ID == "" {
			return room.Errorf(room.CodeBadRequest, "user id is required")
		}
		id = session.Identity{UserID: req.User.ID, Name: req.User.Name, Role: req.User.Role}
		if id.Name == "" {
			id.Name = id.UserID
		}
	default:
		return room.Errorf(room.CodeUnauthorized, "a valid token is required")
	}

	if prev, ok := sess.Identity(); ok && prev.UserID != id.UserID {
		if roomID, _ := sess.Room(); roomID != "" {
			return room.Errorf(room.CodeInvalidPhase, "leave room %s before switching identity", roomID)
		}
	}

	sess.Authenticate(id)
	logger.Log.Infow("client authenticated", "session", sess.ID, "user", id.UserID, "role", id.Role,
		"connections", len(r.sessions.GetByUserID(id.UserID)))
	return r.broadcaster.SendTo(sess, network.EventAuthenticated, network.AuthenticatedEvent{
		User: network.UserPayload{ID: id.UserID, Name: id.Name, Role: id.Role},
	})
}

func (r *Router) handleCreateRoom(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var req network.CreateRoomRequest
	if err := decode(data, &req); err != nil {
		return err
	}

	hostID := req.HostID
	if hostID == "" && req.Host != nil {
		hostID = req.Host.ID
	}
	hostID, err := r.claim(sess, hostID)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return room.Errorf(room.CodeBadRequest, "room name is required")
	}

	questions, err := r.questions.Resolve(ctx, req.QuestionSet)
	if err != nil {
		return room.Errorf(room.CodeBadRequest, "%v", err)
	}

	rm, err := r.rooms.CreateRoom(name, hostID, questions)
	if err != nil {
		return err
	}

	prevRoom, prevPlayer := sess.Room()
	if err := rm.Do(ctx, func(s *room.State) error {
		s.SubscribeHost(sess)
		return nil
	}); err != nil {
		return err
	}
	if prevRoom != "" {
		if err := r.leave(ctx, sess, prevRoom, prevPlayer); err != nil {
			logger.Log.Debugw("leave previous room failed", "session", sess.ID, "room", prevRoom, "error", err)
		}
	}
	sess.Bind(rm.ID, "")

	logger.Log.Infow("room created", "room", rm.ID, "name", name, "host", hostID, "questions", questions.Len())
	r.broadcaster.SendTo(sess, network.EventRoomCreated, network.RoomCreatedEvent{RoomID: rm.ID, Room: rm.Summary()})
	r.roomsChanged()
	return nil
}

func (r *Router) handleJoinRoom(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var req network.JoinRoomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.RoomID == "" {
		return room.Errorf(room.CodeBadRequest, "room id is required")
	}

	playerID, err := r.claim(sess, req.Player.ID)
	if err != nil {
		return err
	}
	player := models.PlayerInfo{ID: playerID, Name: displayName(sess, playerID, req.Player.Name)}

	rm, err := r.rooms.GetRoom(req.RoomID)
	if err != nil {
		return err
	}

	prevRoom, prevPlayer := sess.Room()
	if prevRoom == rm.ID && prevPlayer != "" {
		return room.Errorf(room.CodeAlreadyJoined, "connection already joined room %s as %s", rm.ID, prevPlayer)
	}

	err = rm.Do(ctx, func(s *room.State) error {
		if err := s.ValidateJoin(player); err != nil {
			return err
		}
		s.Join(player, sess)

		r.broadcaster.SendTo(sess, network.EventRoomJoined, r.roomView(s))
		r.toRoom(s, network.EventPlayerJoined, network.PlayerJoinedEvent{
			RoomID:  s.ID(),
			Player:  player,
			Players: s.Players(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	if prevRoom != "" && prevRoom != rm.ID {
		if err := r.leave(ctx, sess, prevRoom, prevPlayer); err != nil {
			logger.Log.Debugw("leave previous room failed", "session", sess.ID, "room", prevRoom, "error", err)
		}
	}
	sess.Bind(rm.ID, playerID)

	logger.Log.Infow("player joined", "room", rm.ID, "player", playerID)
	r.roomsChanged()
	return nil
}

func (r *Router) handleLeaveRoom(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var req network.LeaveRoomRequest
	if len(bytes.TrimSpace(data)) > 0 {
		if err := decode(data, &req); err != nil {
			return err
		}
	}

	boundRoom, boundPlayer := sess.Room()
	if boundRoom == "" || (req.RoomID != "" && req.RoomID != boundRoom) {
		return room.Errorf(room.CodeNotFound, "not in room %s", req.RoomID)
	}
	if req.PlayerID != "" {
		playerID, err := r.claim(sess, req.PlayerID)
		if err != nil {
			return err
		}
		if playerID != boundPlayer {
			return room.Errorf(room.CodeUnauthorized, "connection is joined as %s", boundPlayer)
		}
	}

	return r.leave(ctx, sess, boundRoom, boundPlayer)
}

// leave removes playerID (if any) and the session's host subscription from
// the room, destroying the room when its roster ends up empty.
func (r *Router) leave(ctx context.Context, sess *session.Session, roomID, playerID string) error {
	defer func() {
		if bound, _ := sess.Room(); bound == roomID {
			sess.Unbind()
		}
	}()

	rm, err := r.rooms.GetRoom(roomID)
	if err != nil {
		return err
	}

	var (
		empty     bool
		timerID   int64
		remaining []room.Member
	)
	err = rm.Do(ctx, func(s *room.State) error {
		if playerID != "" {
			if p, ok := s.Leave(playerID); ok {
				r.toRoom(s, network.EventPlayerLeft, network.PlayerLeftEvent{
					RoomID:   s.ID(),
					Player:   p,
					Username: p.Name,
					Players:  s.Players(),
				})
				r.advanceIfAnswered(s)
			}
		}
		s.UnsubscribeHost(sess.ID)

		empty = s.PlayerCount() == 0
		timerID = s.TimerID()
		remaining = s.Recipients()
		return nil
	})
	if err != nil {
		return err
	}

	if empty && r.rooms.RemoveIfEmpty(ctx, roomID) {
		if timerID != 0 {
			r.timers.RemoveTimer(timerID)
		}
		for _, m := range remaining {
			if other, ok := m.(*session.Session); ok {
				if bound, _ := other.Room(); bound == roomID {
					other.Unbind()
				}
			}
		}
		logger.Log.Infow("room destroyed", "room", roomID)
	}

	r.roomsChanged()
	return nil
}

func (r *Router) handleStartGame(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var req network.StartGameRequest
	roomID, err := decodeRoomRef(data, &req)
	if err != nil {
		return err
	}
	if roomID == "" {
		roomID = req.RoomID
	}
	if roomID, err = targetRoom(sess, roomID); err != nil {
		return err
	}

	requester, err := r.claim(sess, req.RequesterID)
	if err != nil {
		return err
	}

	rm, err := r.rooms.GetRoom(roomID)
	if err != nil {
		return err
	}

	err = rm.Do(ctx, func(s *room.State) error {
		if err := s.ValidateStart(requester); err != nil {
			return err
		}
		if err := s.Start(time.Now()); err != nil {
			return err
		}
		r.scheduleDeadline(s)

		q, _ := r.questionView(s)
		r.toRoom(s, network.EventGameStarted, network.QuestionEvent{
			RoomID:   s.ID(),
			Question: q,
			Players:  s.Players(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("game started", "room", roomID, "host", requester)
	r.roomsChanged()
	return nil
}

func (r *Router) handleSubmitAnswer(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var req network.SubmitAnswerRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.QuestionIndex == nil || req.AnswerIndex == nil {
		return room.Errorf(room.CodeBadRequest, "questionIndex and answerIndex are required")
	}

	playerID, err := r.actAs(sess, req.PlayerID)
	if err != nil {
		return err
	}
	roomID, err := targetRoom(sess, req.RoomID)
	if err != nil {
		return err
	}
	rm, err := r.rooms.GetRoom(roomID)
	if err != nil {
		return err
	}

	var ended bool
	err = rm.Do(ctx, func(s *room.State) error {
		if err := s.ValidateAnswer(playerID, *req.QuestionIndex); err != nil {
			return err
		}
		out := s.RecordAnswer(playerID, *req.AnswerIndex, time.Now())
		r.monitor.IncAnswers(out.Correct)

		r.toRoom(s, network.EventScoresUpdated, network.ScoresUpdatedEvent{
			RoomID: s.ID(),
			Scores: s.Scores(),
			LastAnswer: &network.AnswerResult{
				PlayerID:      out.PlayerID,
				QuestionIndex: out.QuestionIndex,
				Correct:       out.Correct,
				Awarded:       out.Awarded,
			},
		})
		_, ended = r.advanceIfAnswered(s)
		return nil
	})
	if err != nil {
		return err
	}

	if ended {
		r.roomsChanged()
	}
	return nil
}

func (r *Router) handleGetRooms(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	return r.broadcaster.SendTo(sess, network.EventRoomsUpdated, r.rooms.ListRooms())
}

func (r *Router) handleGetRoom(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var req network.GetRoomRequest
	roomID, err := decodeRoomRef(data, &req)
	if err != nil {
		return err
	}
	if roomID == "" {
		roomID = req.RoomID
	}
	if roomID, err = targetRoom(sess, roomID); err != nil {
		return err
	}

	rm, err := r.rooms.GetRoom(roomID)
	if err != nil {
		return err
	}

	var view network.RoomView
	if err := rm.Do(ctx, func(s *room.State) error {
		view = r.roomView(s)
		return nil
	}); err != nil {
		return err
	}
	return r.broadcaster.SendTo(sess, network.EventRoomState, view)
}

func (r *Router) handleSendMessage(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var req network.SendMessageRequest
	if err := decode(data, &req); err != nil {
		return err
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return room.Errorf(room.CodeBadRequest, "message text is required")
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return room.Errorf(room.CodeBadRequest, "message longer than %d characters", maxMessageLength)
	}

	playerID, err := r.actAs(sess, req.PlayerID)
	if err != nil {
		return err
	}
	roomID, err := targetRoom(sess, req.RoomID)
	if err != nil {
		return err
	}
	rm, err := r.rooms.GetRoom(roomID)
	if err != nil {
		return err
	}

	return rm.Do(ctx, func(s *room.State) error {
		name := displayName(sess, playerID, "")
		if p, ok := s.Player(playerID); ok {
			name = p.Name
		} else if playerID != s.HostID() {
			return room.Errorf(room.CodeNotFound, "player %s is not in room %s", playerID, s.ID())
		}

		r.toRoom(s, network.EventReceiveMessage, network.ChatMessageEvent{
			RoomID:   s.ID(),
			PlayerID: playerID,
			Name:     name,
			Text:     text,
			SentAt:   time.Now(),
		})
		return nil
	})
}
