// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wtfashwin/Quiz-App/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// NewPostgreSQLWithDB wraps an existing handle without touching the schema.
func NewPostgreSQLWithDB(db *sql.DB) *PostgreSQL {
	return &PostgreSQL{db: db}
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS question_sets (
            id SERIAL PRIMARY KEY,
            name VARCHAR(255) UNIQUE NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS questions (
            id SERIAL PRIMARY KEY,
            set_id INTEGER NOT NULL REFERENCES question_sets(id) ON DELETE CASCADE,
            ordinal INTEGER NOT NULL,
            prompt TEXT NOT NULL,
            options JSONB NOT NULL,
            correct_index INTEGER NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(255) NOT NULL,
            room_name VARCHAR(255) NOT NULL,
            host_id VARCHAR(255) NOT NULL,
            question_set VARCHAR(255) NOT NULL,
            question_count INTEGER NOT NULL,
            scores JSONB NOT NULL,
            started_at TIMESTAMP NOT NULL,
            ended_at TIMESTAMP NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_questions_set_id ON questions(set_id, ordinal);
        CREATE INDEX IF NOT EXISTS idx_game_records_ended_at ON game_records(ended_at);
    `)
	return err
}

// LoadQuestionSet 按名称加载题库
func (p *PostgreSQL) LoadQuestionSet(ctx context.Context, name string) (models.QuestionSet, error) {
	query := `
        SELECT q.prompt, q.options, q.correct_index
        FROM questions q
        JOIN question_sets s ON s.id = q.set_id
        WHERE s.name = $1
        ORDER BY q.ordinal
    `
	rows, err := p.db.QueryContext(ctx, query, name)
	if err != nil {
		return models.QuestionSet{}, err
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var (
			q       models.Question
			options []byte
		)
		if err := rows.Scan(&q.Prompt, &options, &q.CorrectIndex); err != nil {
			return models.QuestionSet{}, err
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return models.QuestionSet{}, fmt.Errorf("question options: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return models.QuestionSet{}, err
	}
	if len(questions) == 0 {
		return models.QuestionSet{}, ErrRecordNotFound
	}

	return models.NewQuestionSet(name, questions)
}

// SaveQuestionSet 保存题库，同名题库整体替换
func (p *PostgreSQL) SaveQuestionSet(ctx context.Context, set models.QuestionSet) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var setID int64
	err = tx.QueryRowContext(ctx, `
        INSERT INTO question_sets (name) VALUES ($1)
        ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
        RETURNING id
    `, set.Name()).Scan(&setID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE set_id = $1`, setID); err != nil {
		return err
	}

	for _, q := range set.Questions() {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO questions (set_id, ordinal, prompt, options, correct_index)
            VALUES ($1, $2, $3, $4, $5)
        `, setID, q.Ordinal, q.Prompt, options, q.CorrectIndex)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveGameRecord 保存游戏记录
func (p *PostgreSQL) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	scores, err := json.Marshal(record.Scores)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO game_records (room_id, room_name, host_id, question_set, question_count, scores, started_at, ended_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err = p.db.ExecContext(ctx, query,
		record.RoomID,
		record.RoomName,
		record.HostID,
		record.QuestionSet,
		record.QuestionCount,
		scores,
		record.StartedAt,
		record.EndedAt)
	return err
}

// ListGameRecords 最近的游戏记录，按结束时间倒序
func (p *PostgreSQL) ListGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
        SELECT room_id, room_name, host_id, question_set, question_count, scores, started_at, ended_at
        FROM game_records
        ORDER BY ended_at DESC
        LIMIT $1
    `
	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		var (
			r      models.GameRecord
			scores []byte
		)
		err := rows.Scan(&r.RoomID, &r.RoomName, &r.HostID, &r.QuestionSet, &r.QuestionCount, &scores, &r.StartedAt, &r.EndedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(scores, &r.Scores); err != nil {
			return nil, fmt.Errorf("game record scores: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
