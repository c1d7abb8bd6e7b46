// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wtfashwin/Quiz-App/config"
	"github.com/wtfashwin/Quiz-App/models"
)

// Database 数据库接口
type Database interface {
	LoadQuestionSet(ctx context.Context, name string) (models.QuestionSet, error)
	SaveQuestionSet(ctx context.Context, set models.QuestionSet) error
	SaveGameRecord(ctx context.Context, record models.GameRecord) error
	ListGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)

// Open picks the storage backend named by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Database, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryDatabase(), nil
	case "postgres":
		return NewPostgreSQL(cfg.Postgres.DSN())
	case "gorm":
		return NewGormPostgreSQL(cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
