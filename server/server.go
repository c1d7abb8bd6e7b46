package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wtfashwin/Quiz-App/config"
	"github.com/wtfashwin/Quiz-App/logger"
	"github.com/wtfashwin/Quiz-App/models"
	"github.com/wtfashwin/Quiz-App/monitor"
	"github.com/wtfashwin/Quiz-App/persistence"
	"github.com/wtfashwin/Quiz-App/room"
	"github.com/wtfashwin/Quiz-App/router"
	gameserver_rpc "github.com/wtfashwin/Quiz-App/rpc"
)

// Results is the read side of the game archive.
type Results interface {
	Leaderboard(ctx context.Context, n int) ([]persistence.LeaderboardEntry, error)
	RecentGames(ctx context.Context, n int) ([]models.GameRecord, error)
}

type GameServer struct {
	cfg      config.ServerConfig
	game     config.GameConfig
	router   *router.Router
	rooms    *room.Manager
	monitor  *monitor.Monitor
	results  Results
	upgrader websocket.Upgrader
	engine   *gin.Engine
	http     *http.Server
	sio      *socketIO

	rpcServer    *gameserver_rpc.Server
	healthServer *gameserver_rpc.HealthServer
}

func NewGameServer(cfg *config.Config, r *router.Router, rooms *room.Manager, mon *monitor.Monitor, results Results) *GameServer {
	s := &GameServer{
		cfg:     cfg.Server,
		game:    cfg.Game,
		router:  r,
		rooms:   rooms,
		monitor: mon,
		results: results,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
		},
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	s.routes()

	if cfg.Server.SocketIOEnabled {
		s.sio = newSocketIO(r, cfg.Server.AllowedOrigins, cfg.Game.SendQueueSize)
		s.sio.mount(s.engine)
	}

	s.http = &http.Server{
		Addr:              cfg.Server.HTTPAddress,
		Handler:           s.engine,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	return s
}

// Handler exposes the HTTP routes, mainly for tests.
func (s *GameServer) Handler() http.Handler {
	return s.engine
}

func (s *GameServer) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(s.monitor.Handler()))
	s.engine.GET("/ws", s.handleWebSocket)

	api := s.engine.Group("/api")
	api.GET("/rooms", s.handleListRooms)
	api.GET("/rooms/:id", s.handleGetRoom)
	api.GET("/leaderboard", s.handleLeaderboard)
	api.GET("/games", s.handleRecentGames)
}

// AttachRPC registers the admin listeners started and stopped with the
// HTTP server.
func (s *GameServer) AttachRPC(rpcServer *gameserver_rpc.Server, health *gameserver_rpc.HealthServer) {
	s.rpcServer = rpcServer
	s.healthServer = health
}

// Start serves until ctx is cancelled, then shuts everything down.
func (s *GameServer) Start(ctx context.Context) error {
	if s.rpcServer != nil {
		go s.rpcServer.Start()
	}
	if s.healthServer != nil {
		go s.healthServer.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Log.Infof("Game server listening on %s", s.cfg.HTTPAddress)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		s.stopAdmin()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	logger.Log.Info("shutting down game server")
	s.stopAdmin()
	if s.sio != nil {
		s.sio.close()
	}
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serverErr
}

func (s *GameServer) stopAdmin() {
	if s.healthServer != nil {
		s.healthServer.Stop()
	}
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if allowsAny(origins) {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return len(origins) == 0
}

func originChecker(origins []string) func(r *http.Request) bool {
	if allowsAny(origins) {
		return func(r *http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// 非浏览器客户端不带 Origin
		return origin == "" || allowed[origin]
	}
}
