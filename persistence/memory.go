package persistence

import (
	"context"
	"sync"

	"github.com/wtfashwin/Quiz-App/models"
)

// MemoryDatabase keeps everything in process memory. Records are lost on
// restart.
type MemoryDatabase struct {
	sets    map[string]models.QuestionSet
	records []models.GameRecord
	mutex   sync.RWMutex
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{sets: make(map[string]models.QuestionSet)}
}

func (m *MemoryDatabase) LoadQuestionSet(ctx context.Context, name string) (models.QuestionSet, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	set, ok := m.sets[name]
	if !ok {
		return models.QuestionSet{}, ErrRecordNotFound
	}
	return set, nil
}

func (m *MemoryDatabase) SaveQuestionSet(ctx context.Context, set models.QuestionSet) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sets[set.Name()] = set
	return nil
}

func (m *MemoryDatabase) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	record.Scores = append([]models.ScoreEntry(nil), record.Scores...)
	m.records = append(m.records, record)
	return nil
}

// ListGameRecords returns the newest records first.
func (m *MemoryDatabase) ListGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]models.GameRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *MemoryDatabase) Close() error {
	return nil
}
