package room

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wtfashwin/Quiz-App/models"
)

var errNotEmpty = errors.New("room not empty")

// Manager 管理所有房间。map 只在查找、创建、删除时短暂加锁
type Manager struct {
	rooms    map[string]*Room
	mutex    sync.RWMutex
	cfg      Config
	maxRooms int
}

// NewRoomManager creates a registry. maxRooms <= 0 means unlimited.
func NewRoomManager(cfg Config, maxRooms int) *Manager {
	return &Manager{
		rooms:    make(map[string]*Room),
		cfg:      cfg,
		maxRooms: maxRooms,
	}
}

// CreateRoom 创建一个等待中的空房间
func (m *Manager) CreateRoom(name, hostID string, questions models.QuestionSet) (*Room, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.maxRooms > 0 && len(m.rooms) >= m.maxRooms {
		return nil, Errorf(CodeCapacityExceeded, "room limit %d reached", m.maxRooms)
	}

	id := uuid.NewString()
	for m.rooms[id] != nil {
		id = uuid.NewString()
	}

	room := NewRoom(id, name, hostID, questions, m.cfg)
	m.rooms[id] = room
	return room, nil
}

func (m *Manager) GetRoom(id string) (*Room, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	if !exists {
		return nil, Errorf(CodeNotFound, "room %s not found", id)
	}
	return room, nil
}

// ListRooms returns a snapshot of every room summary, oldest first.
func (m *Manager) ListRooms() []models.RoomSummary {
	m.mutex.RLock()
	list := make([]models.RoomSummary, 0, len(m.rooms))
	for _, room := range m.rooms {
		list = append(list, room.Summary())
	}
	m.mutex.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// RemoveIfEmpty deletes the room if its roster is empty and reports whether
// it did. It is safe to call repeatedly. It must not be called from inside
// Room.Do.
func (m *Manager) RemoveIfEmpty(ctx context.Context, id string) bool {
	return m.removeWhen(ctx, id, func(s *State) bool {
		return s.PlayerCount() == 0
	})
}

// Sweep removes rooms whose roster has been empty for at least ttl and
// returns their ids.
func (m *Manager) Sweep(ctx context.Context, ttl time.Duration) []string {
	now := time.Now()

	m.mutex.RLock()
	var candidates []string
	for id, room := range m.rooms {
		if room.PlayerCount() == 0 && room.EmptyFor(now) >= ttl {
			candidates = append(candidates, id)
		}
	}
	m.mutex.RUnlock()

	var removed []string
	for _, id := range candidates {
		ok := m.removeWhen(ctx, id, func(s *State) bool {
			return s.PlayerCount() == 0 && !s.emptySince.IsZero() && now.Sub(s.emptySince) >= ttl
		})
		if ok {
			removed = append(removed, id)
		}
	}
	return removed
}

func (m *Manager) removeWhen(ctx context.Context, id string, cond func(*State) bool) bool {
	room, err := m.GetRoom(id)
	if err != nil {
		return false
	}

	err = room.Do(ctx, func(s *State) error {
		if !cond(s) {
			return errNotEmpty
		}
		s.MarkClosed()
		return nil
	})
	if err != nil {
		return false
	}

	m.mutex.Lock()
	if m.rooms[id] == room {
		delete(m.rooms, id)
	}
	m.mutex.Unlock()

	room.Close()
	return true
}

// Close stops every room and waits for their loops to exit.
func (m *Manager) Close() {
	m.mutex.Lock()
	closing := make([]*Room, 0, len(m.rooms))
	for id, room := range m.rooms {
		room.Close()
		closing = append(closing, room)
		delete(m.rooms, id)
	}
	m.mutex.Unlock()

	for _, room := range closing {
		<-room.Done()
	}
}
