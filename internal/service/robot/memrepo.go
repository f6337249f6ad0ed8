package robot

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/cheese-robot-bridge/internal/domain"
)

// memrepo is used when no DATABASE_URL is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID    int64
	byID      map[int64]*domain.RobotGame
	bySession map[string]*domain.RobotGame
}

func NewMemoryRepository() Repository {
	return &memrepo{
		byID:      make(map[int64]*domain.RobotGame),
		bySession: make(map[string]*domain.RobotGame),
	}
}

func (m *memrepo) InsertGame(_ context.Context, game *domain.RobotGame) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}
	key := strings.TrimSpace(game.SessionUUID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bySession[key]; exists {
		return 0, ErrDuplicateGame
	}
	m.nextID++
	cp := *game
	cp.ID = m.nextID
	cp.MovesUCI = append([]string(nil), game.MovesUCI...)
	cp.MovesSAN = append([]string(nil), game.MovesSAN...)
	m.byID[cp.ID] = &cp
	m.bySession[key] = &cp
	return cp.ID, nil
}

func (m *memrepo) GetRecentGames(_ context.Context, robotID string, limit int) ([]*domain.RobotGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*domain.RobotGame, 0)
	for _, g := range m.byID {
		if g.RobotID == robotID {
			cp := *g
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GetGameBySession(_ context.Context, sessionUUID string) (*domain.RobotGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.bySession[strings.TrimSpace(sessionUUID)]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}
