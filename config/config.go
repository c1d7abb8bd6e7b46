package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "QUIZ"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Game      GameConfig      `mapstructure:"game"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Questions QuestionsConfig `mapstructure:"questions"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	HTTPAddress       string        `mapstructure:"http_address"`
	RPCAddress        string        `mapstructure:"rpc_address"`
	HealthAddress     string        `mapstructure:"health_address"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	SocketIOEnabled   bool          `mapstructure:"socketio_enabled"`
	Heartbeat         time.Duration `mapstructure:"heartbeat"`
}

// GameConfig holds the coordinator's policy knobs.
type GameConfig struct {
	QuestionTimeout time.Duration `mapstructure:"question_timeout"`
	BasePoints      int           `mapstructure:"base_points"`
	SpeedBonus      int           `mapstructure:"speed_bonus"`
	MaxRooms        int           `mapstructure:"max_rooms"`
	MaxPlayers      int           `mapstructure:"max_players"`
	RoomQueueSize   int           `mapstructure:"room_queue_size"`
	SendQueueSize   int           `mapstructure:"send_queue_size"`
	EmptyRoomTTL    time.Duration `mapstructure:"empty_room_ttl"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	TimerResolution time.Duration `mapstructure:"timer_resolution"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"ttl"`
	Required bool          `mapstructure:"required"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// DSN renders the connection string understood by both lib/pq and pgx.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.DBName)
}

type QuestionsConfig struct {
	Source string `mapstructure:"source"`
	File   string `mapstructure:"file"`
	Set    string `mapstructure:"set"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	DB      int    `mapstructure:"db"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddress:       ":3001",
			RPCAddress:        ":3002",
			HealthAddress:     ":3003",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			AllowedOrigins:    []string{"http://localhost:3000"},
			SocketIOEnabled:   true,
			Heartbeat:         30 * time.Second,
		},
		Game: GameConfig{
			QuestionTimeout: 30 * time.Second,
			BasePoints:      100,
			SpeedBonus:      50,
			MaxRooms:        0,
			MaxPlayers:      0,
			RoomQueueSize:   64,
			SendQueueSize:   64,
			EmptyRoomTTL:    10 * time.Minute,
			SweepInterval:   time.Minute,
			TimerResolution: 100 * time.Millisecond,
		},
		Auth: AuthConfig{
			Issuer:   "quiz",
			Audience: "quiz",
			TTL:      24 * time.Hour,
		},
		Database: DatabaseConfig{
			Driver: "memory",
			Postgres: PostgresConfig{
				Host:   "localhost",
				Port:   5432,
				User:   "postgres",
				DBName: "quiz",
			},
		},
		Questions: QuestionsConfig{
			Source: "builtin",
			Set:    "default",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Namespace: "quiz",
		},
	}
}

// LoadConfig resolves configuration from defaults, an optional config.yaml in
// path, a .env file and QUIZ_* environment variables, in increasing precedence.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.http_address", d.Server.HTTPAddress)
	v.SetDefault("server.rpc_address", d.Server.RPCAddress)
	v.SetDefault("server.health_address", d.Server.HealthAddress)
	v.SetDefault("server.read_header_timeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.socketio_enabled", d.Server.SocketIOEnabled)
	v.SetDefault("server.heartbeat", d.Server.Heartbeat)

	v.SetDefault("game.question_timeout", d.Game.QuestionTimeout)
	v.SetDefault("game.base_points", d.Game.BasePoints)
	v.SetDefault("game.speed_bonus", d.Game.SpeedBonus)
	v.SetDefault("game.max_rooms", d.Game.MaxRooms)
	v.SetDefault("game.max_players", d.Game.MaxPlayers)
	v.SetDefault("game.room_queue_size", d.Game.RoomQueueSize)
	v.SetDefault("game.send_queue_size", d.Game.SendQueueSize)
	v.SetDefault("game.empty_room_ttl", d.Game.EmptyRoomTTL)
	v.SetDefault("game.sweep_interval", d.Game.SweepInterval)
	v.SetDefault("game.timer_resolution", d.Game.TimerResolution)

	v.SetDefault("auth.secret", d.Auth.Secret)
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("auth.audience", d.Auth.Audience)
	v.SetDefault("auth.ttl", d.Auth.TTL)
	v.SetDefault("auth.required", d.Auth.Required)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.postgres.host", d.Database.Postgres.Host)
	v.SetDefault("database.postgres.port", d.Database.Postgres.Port)
	v.SetDefault("database.postgres.user", d.Database.Postgres.User)
	v.SetDefault("database.postgres.password", d.Database.Postgres.Password)
	v.SetDefault("database.postgres.dbname", d.Database.Postgres.DBName)

	v.SetDefault("questions.source", d.Questions.Source)
	v.SetDefault("questions.file", d.Questions.File)
	v.SetDefault("questions.set", d.Questions.Set)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.db", d.Redis.DB)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)

	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}
