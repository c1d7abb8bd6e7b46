// Package router is the single entry point for client events. It resolves
// the target room, runs validation and mutation inside the room's
// serialization boundary and fans the results out to the room's members.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wtfashwin/Quiz-App/auth"
	"github.com/wtfashwin/Quiz-App/broadcast"
	"github.com/wtfashwin/Quiz-App/logger"
	"github.com/wtfashwin/Quiz-App/models"
	"github.com/wtfashwin/Quiz-App/monitor"
	"github.com/wtfashwin/Quiz-App/network"
	"github.com/wtfashwin/Quiz-App/room"
	"github.com/wtfashwin/Quiz-App/session"
	"github.com/wtfashwin/Quiz-App/timer"
)

// QuestionResolver supplies the question set for a new room.
type QuestionResolver interface {
	Resolve(ctx context.Context, name string) (models.QuestionSet, error)
}

// ResultSink receives every finished game. RecordGame must not block.
type ResultSink interface {
	RecordGame(record models.GameRecord)
}

type Options struct {
	AuthRequired    bool
	JWT             *auth.JWTConfig
	QuestionTimeout time.Duration
	// EventTimeout bounds how long one event may wait for its room.
	EventTimeout time.Duration
}

type handlerFunc func(ctx context.Context, sess *session.Session, data json.RawMessage) error

type Router struct {
	rooms       *room.Manager
	sessions    *session.Manager
	broadcaster broadcast.Broadcaster
	timers      *timer.TimerManager
	questions   QuestionResolver
	results     ResultSink
	monitor     *monitor.Monitor
	opts        Options
	handlers    map[string]handlerFunc

	// listMu 保证 rooms_updated 按快照顺序送达
	listMu sync.Mutex
}

func New(
	rooms *room.Manager,
	sessions *session.Manager,
	broadcaster broadcast.Broadcaster,
	timers *timer.TimerManager,
	questions QuestionResolver,
	results ResultSink,
	mon *monitor.Monitor,
	opts Options,
) *Router {
	if opts.EventTimeout <= 0 {
		opts.EventTimeout = 5 * time.Second
	}

	r := &Router{
		rooms:       rooms,
		sessions:    sessions,
		broadcaster: broadcaster,
		timers:      timers,
		questions:   questions,
		results:     results,
		monitor:     mon,
		opts:        opts,
	}
	r.handlers = map[string]handlerFunc{
		network.EventAuthenticate: r.handleAuthenticate,
		network.EventCreateRoom:   r.handleCreateRoom,
		network.EventJoinRoom:     r.handleJoinRoom,
		network.EventLeaveRoom:    r.handleLeaveRoom,
		network.EventStartGame:    r.handleStartGame,
		network.EventSubmitAnswer: r.handleSubmitAnswer,
		network.EventGetRooms:     r.handleGetRooms,
		network.EventGetRoom:      r.handleGetRoom,
		network.EventSendMessage:  r.handleSendMessage,
	}
	return r
}

// Connect registers a new session and sends it the current room list.
func (r *Router) Connect(sess *session.Session) {
	r.sessions.Add(sess)
	r.monitor.IncOnlineConnections()
	r.broadcaster.SendTo(sess, network.EventRoomsUpdated, r.rooms.ListRooms())
	logger.Log.Debugw("client connected", "session", sess.ID, "remote", sess.Conn.RemoteAddr())
}

// Dispatch handles one inbound event. Rejections are answered with a
// direct error event; Dispatch itself never fails.
func (r *Router) Dispatch(ctx context.Context, sess *session.Session, in *network.Inbound) {
	start := time.Now()
	r.monitor.IncEventsReceived(in.Event)
	defer func() {
		r.monitor.ObserveEventLatency(time.Since(start))
	}()

	if in.Event == network.EventDisconnect {
		r.Disconnect(sess)
		sess.Close()
		return
	}

	h, ok := r.handlers[in.Event]
	if !ok {
		r.reject(sess, in.Event, room.Errorf(room.CodeBadRequest, "unknown event %q", in.Event))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.EventTimeout)
	defer cancel()

	if err := h(ctx, sess, in.Data); err != nil {
		r.reject(sess, in.Event, err)
	}
}

// Reject answers a frame that could not even be decoded.
func (r *Router) Reject(sess *session.Session, err error) {
	r.reject(sess, "", room.Errorf(room.CodeBadRequest, "%v", err))
}

// Disconnect removes the session from its room, if any, and forgets it.
// Calling it twice is harmless.
func (r *Router) Disconnect(sess *session.Session) {
	if _, ok := r.sessions.Get(sess.ID); !ok {
		return
	}
	r.sessions.Remove(sess.ID)
	r.monitor.DecOnlineConnections()

	if roomID, playerID := sess.Room(); roomID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.EventTimeout)
		defer cancel()
		if err := r.leave(ctx, sess, roomID, playerID); err != nil {
			logger.Log.Debugw("leave on disconnect failed", "session", sess.ID, "room", roomID, "error", err)
		}
	}
	logger.Log.Debugw("client disconnected", "session", sess.ID)
}

// Sweep removes rooms that stayed empty for ttl.
func (r *Router) Sweep(ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.EventTimeout)
	defer cancel()

	removed := r.rooms.Sweep(ctx, ttl)
	if len(removed) == 0 {
		return
	}
	logger.Log.Infow("swept idle rooms", "rooms", removed)
	r.roomsChanged()
}

func (r *Router) reject(sess *session.Session, event string, err error) {
	var e *room.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		e = room.Errorf(room.CodeBadRequest, "server busy, try again")
	default:
		e = room.AsError(err)
	}

	r.monitor.IncEventsRejected(string(e.Code))
	logger.Log.Debugw("event rejected", "session", sess.ID, "event", event, "code", e.Code, "error", e.Message)
	r.broadcaster.SendTo(sess, network.EventError, network.ErrorEvent{Code: string(e.Code), Message: e.Message})
}

// roomsChanged pushes the room list to every connected client. Snapshots
// are taken and fanned out one at a time, so a client never receives an
// older list after a newer one.
func (r *Router) roomsChanged() {
	r.listMu.Lock()
	defer r.listMu.Unlock()

	r.monitor.SetActiveRooms(r.rooms.Count())
	if err := r.broadcaster.BroadcastToAll(network.EventRoomsUpdated, r.rooms.ListRooms()); err != nil {
		logger.Log.Warnw("rooms_updated broadcast failed", "error", err)
	}
}

func (r *Router) toRoom(s *room.State, event string, payload any) {
	if err := r.broadcaster.BroadcastToMembers(s.Recipients(), event, payload); err != nil {
		logger.Log.Warnw("room broadcast failed", "room", s.ID(), "event", event, "error", err)
	}
}
