// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wtfashwin/Quiz-App/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewGormPostgreSQLWithDB(db)
}

// NewGormPostgreSQLWithDB migrates the schema on an existing handle.
func NewGormPostgreSQLWithDB(db *gorm.DB) (*GormPostgreSQL, error) {
	if err := autoMigrate(db); err != nil {
		return nil, err
	}
	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormQuestionSet{},
		&models.GormQuestion{},
		&models.GormGameRecord{},
	)
}

func (p *GormPostgreSQL) LoadQuestionSet(ctx context.Context, name string) (models.QuestionSet, error) {
	var set models.GormQuestionSet
	err := p.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("ordinal") }).
		Where("name = ?", name).
		First(&set).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.QuestionSet{}, ErrRecordNotFound
		}
		return models.QuestionSet{}, err
	}
	if len(set.Questions) == 0 {
		return models.QuestionSet{}, ErrRecordNotFound
	}

	questions := make([]models.Question, 0, len(set.Questions))
	for _, q := range set.Questions {
		questions = append(questions, models.Question{
			Prompt:       q.Prompt,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
		})
	}
	return models.NewQuestionSet(set.Name, questions)
}

// SaveQuestionSet 同名题库整体替换
func (p *GormPostgreSQL) SaveQuestionSet(ctx context.Context, set models.QuestionSet) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.GormQuestionSet{Name: set.Name()}
		if err := tx.Where("name = ?", set.Name()).FirstOrCreate(&row).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("set_id = ?", row.ID).Delete(&models.GormQuestion{}).Error; err != nil {
			return err
		}

		questions := make([]models.GormQuestion, 0, set.Len())
		for _, q := range set.Questions() {
			questions = append(questions, models.GormQuestion{
				SetID:        row.ID,
				Ordinal:      q.Ordinal,
				Prompt:       q.Prompt,
				Options:      q.Options,
				CorrectIndex: q.CorrectIndex,
			})
		}
		return tx.Create(&questions).Error
	})
}

// SaveGameRecord 保存游戏记录
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	row := models.GormGameRecord{
		RoomID:        record.RoomID,
		RoomName:      record.RoomName,
		HostID:        record.HostID,
		QuestionSet:   record.QuestionSet,
		QuestionCount: record.QuestionCount,
		Scores:        record.Scores,
		StartedAt:     record.StartedAt,
		EndedAt:       record.EndedAt,
	}
	return p.db.WithContext(ctx).Create(&row).Error
}

func (p *GormPostgreSQL) ListGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.GormGameRecord
	if err := p.db.WithContext(ctx).Order("ended_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.GameRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.ToRecord())
	}
	return records, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
