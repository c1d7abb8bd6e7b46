package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/wtfashwin/Quiz-App/logger"
	"github.com/wtfashwin/Quiz-App/models"
	"github.com/wtfashwin/Quiz-App/room"
)

// ServiceName is the name CoordinatorService is registered under.
const ServiceName = "Coordinator"

// Server manages the RPC listener.
type Server struct {
	rpc      *rpc.Server
	listener net.Listener
	address  string
	wg       sync.WaitGroup
}

// NewServer listens on addr and serves svc on every accepted connection.
func NewServer(addr string, svc *CoordinatorService) (*Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(ServiceName, svc); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		rpc:      server,
		listener: listener,
		address:  listener.Addr().String(),
	}, nil
}

// Addr returns the address actually bound, useful with ":0".
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests. It returns once the listener is
// closed.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.rpc.ServeConn(conn)
		}()
	}
}

// Stop closes the RPC listener. Connections already open are served until
// the client hangs up.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// CoordinatorService exposes read-only room inspection to operators.
type CoordinatorService struct {
	rooms   *room.Manager
	timeout time.Duration
}

func NewCoordinatorService(rooms *room.Manager) *CoordinatorService {
	return &CoordinatorService{rooms: rooms, timeout: 2 * time.Second}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []models.RoomSummary
}

func (cs *CoordinatorService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Rooms = cs.rooms.ListRooms()
	return nil
}

type GetRoomArgs struct {
	RoomID string
}

type GetRoomReply struct {
	Room         models.RoomSummary
	Players      []models.PlayerInfo
	Scores       []models.ScoreEntry
	CurrentIndex int
}

// GetRoom returns a consistent snapshot of one room.
func (cs *CoordinatorService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	rm, err := cs.rooms.GetRoom(args.RoomID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cs.timeout)
	defer cancel()

	err = rm.Do(ctx, func(s *room.State) error {
		reply.Players = s.Players()
		reply.Scores = s.Scores()
		reply.CurrentIndex = s.CurrentIndex()
		return nil
	})
	if err != nil {
		return err
	}
	reply.Room = rm.Summary()
	return nil
}
