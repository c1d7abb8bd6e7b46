// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormQuestionSet 题库
type GormQuestionSet struct {
	gorm.Model
	Name      string         `gorm:"uniqueIndex;not null"`
	Questions []GormQuestion `gorm:"foreignKey:SetID;constraint:OnDelete:CASCADE"`
}

// GormQuestion 题目
type GormQuestion struct {
	gorm.Model
	SetID        uint     `gorm:"index;not null"`
	Ordinal      int      `gorm:"not null"`
	Prompt       string   `gorm:"not null"`
	Options      []string `gorm:"serializer:json;not null"`
	CorrectIndex int      `gorm:"not null"`
}

// GormGameRecord 游戏记录模型
type GormGameRecord struct {
	gorm.Model
	RoomID        string       `gorm:"index;not null"`
	RoomName      string       `gorm:"not null"`
	HostID        string       `gorm:"not null"`
	QuestionSet   string
	QuestionCount int          `gorm:"default:0"`
	Scores        []ScoreEntry `gorm:"serializer:json;not null"`
	StartedAt     time.Time
	EndedAt       time.Time
}

// ToRecord converts the row back to the domain record.
func (g GormGameRecord) ToRecord() GameRecord {
	return GameRecord{
		RoomID:        g.RoomID,
		RoomName:      g.RoomName,
		HostID:        g.HostID,
		QuestionSet:   g.QuestionSet,
		QuestionCount: g.QuestionCount,
		Scores:        g.Scores,
		StartedAt:     g.StartedAt,
		EndedAt:       g.EndedAt,
	}
}
