package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wtfashwin/Quiz-App/auth"
	"github.com/wtfashwin/Quiz-App/broadcast"
	"github.com/wtfashwin/Quiz-App/config"
	"github.com/wtfashwin/Quiz-App/logger"
	"github.com/wtfashwin/Quiz-App/monitor"
	"github.com/wtfashwin/Quiz-App/persistence"
	"github.com/wtfashwin/Quiz-App/room"
	"github.com/wtfashwin/Quiz-App/router"
	gameserver_rpc "github.com/wtfashwin/Quiz-App/rpc"
	"github.com/wtfashwin/Quiz-App/server"
	"github.com/wtfashwin/Quiz-App/services"
	"github.com/wtfashwin/Quiz-App/session"
	"github.com/wtfashwin/Quiz-App/timer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the room coordinator",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Init(cfg.Log.Level, cfg.Log.Development)
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func jwtConfig(cfg config.AuthConfig) *auth.JWTConfig {
	if cfg.Secret == "" {
		return nil
	}
	return &auth.JWTConfig{
		Secret:   []byte(cfg.Secret),
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		TTL:      cfg.TTL,
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	// Initialize Database
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	logger.Log.Infow("database ready", "driver", cfg.Database.Driver)

	board, err := persistence.OpenLeaderboard(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("open leaderboard: %w", err)
	}
	defer board.Close()

	questions, err := services.NewQuestionService(cfg.Questions, db)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	results := services.NewResultsService(db, board)
	defer results.Wait()

	if cfg.Auth.Required && cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.required needs auth.secret")
	}

	rooms := room.NewRoomManager(room.Config{
		MaxPlayers: cfg.Game.MaxPlayers,
		QueueSize:  cfg.Game.RoomQueueSize,
		Scoring: room.Scoring{
			BasePoints: cfg.Game.BasePoints,
			SpeedBonus: cfg.Game.SpeedBonus,
			Budget:     cfg.Game.QuestionTimeout,
		},
	}, cfg.Game.MaxRooms)
	defer rooms.Close()

	sessions := session.NewManager()
	mon := monitor.NewMonitor(cfg.Metrics.Namespace)
	broadcaster := broadcast.NewRoomBroadcaster(sessions, mon)
	timers := timer.NewTimerManager(cfg.Game.TimerResolution)
	defer timers.Stop()

	r := router.New(rooms, sessions, broadcaster, timers, questions, results, mon, router.Options{
		AuthRequired:    cfg.Auth.Required,
		JWT:             jwtConfig(cfg.Auth),
		QuestionTimeout: cfg.Game.QuestionTimeout,
	})

	if cfg.Game.SweepInterval > 0 {
		timers.AddTimer(cfg.Game.SweepInterval, cfg.Game.SweepInterval, func() {
			r.Sweep(cfg.Game.EmptyRoomTTL)
		})
	}

	gameServer := server.NewGameServer(cfg, r, rooms, mon, results)

	if cfg.Server.RPCAddress != "" {
		rpcServer, err := gameserver_rpc.NewServer(cfg.Server.RPCAddress, gameserver_rpc.NewCoordinatorService(rooms))
		if err != nil {
			return fmt.Errorf("start rpc server: %w", err)
		}
		var health *gameserver_rpc.HealthServer
		if cfg.Server.HealthAddress != "" {
			if health, err = gameserver_rpc.NewHealthServer(cfg.Server.HealthAddress); err != nil {
				rpcServer.Stop()
				return fmt.Errorf("start health server: %w", err)
			}
		}
		gameServer.AttachRPC(rpcServer, health)
	}

	logger.Log.Infof("Starting quiz server on %s", cfg.Server.HTTPAddress)
	return gameServer.Start(ctx)
}
