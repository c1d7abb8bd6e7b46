package room

import (
	"sort"

	"github.com/wtfashwin/Quiz-App/models"
)

// Scoreboard keeps one entry per player who ever joined, in join order.
// Entries of departed players stay, marked not present.
type Scoreboard struct {
	order   []string
	entries map[string]*models.ScoreEntry
}

func NewScoreboard() *Scoreboard {
	return &Scoreboard{entries: make(map[string]*models.ScoreEntry)}
}

// Add creates a zero entry, or marks a returning player present again.
func (b *Scoreboard) Add(p models.PlayerInfo) {
	if e, ok := b.entries[p.ID]; ok {
		e.Present = true
		e.Name = p.Name
		return
	}
	b.order = append(b.order, p.ID)
	b.entries[p.ID] = &models.ScoreEntry{PlayerID: p.ID, Name: p.Name, Present: true}
}

// Award adds delta to the player's score. Negative deltas are ignored so
// scores never drop below zero.
func (b *Scoreboard) Award(playerID string, delta int) bool {
	e, ok := b.entries[playerID]
	if !ok {
		return false
	}
	if delta > 0 {
		e.Score += delta
	}
	return true
}

func (b *Scoreboard) Leave(playerID string) {
	if e, ok := b.entries[playerID]; ok {
		e.Present = false
	}
}

func (b *Scoreboard) Score(playerID string) (int, bool) {
	e, ok := b.entries[playerID]
	if !ok {
		return 0, false
	}
	return e.Score, true
}

func (b *Scoreboard) Len() int {
	return len(b.order)
}

// Snapshot copies all entries in join order.
func (b *Scoreboard) Snapshot() []models.ScoreEntry {
	out := make([]models.ScoreEntry, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.entries[id])
	}
	return out
}

// Ranked copies all entries ordered by score, highest first; ties keep join
// order.
func (b *Scoreboard) Ranked() []models.ScoreEntry {
	out := b.Snapshot()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
