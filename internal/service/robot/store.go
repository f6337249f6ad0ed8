package robot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/cheese-robot-bridge/internal/storage"
)

var ErrSnapshotConflict = errors.New("robot is driven by another session")

// Snapshot is everything needed to pick a session back up after a restart.
type Snapshot struct {
	SessionUUID string       `json:"session_uuid"`
	RobotID     string       `json:"robot_id"`
	HumanColor  string       `json:"human_color"`
	Preset      string       `json:"preset"`
	Status      string       `json:"status"`
	Moves       []string     `json:"moves"`
	Storage     storage.Grid `json:"storage"`
	PendingKind string       `json:"pending_kind,omitempty"`
	PendingFile string       `json:"pending_file,omitempty"`
	Handshakes  int          `json:"handshakes"`
	StartedAt   time.Time    `json:"started_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	// Load returns nil, nil when the robot has no saved session.
	Load(ctx context.Context, robotID string) (*Snapshot, error)
	Delete(ctx context.Context, robotID string) error
}

type memoryStore struct {
	mu    sync.RWMutex
	snaps map[string]Snapshot
}

// NewMemoryStore keeps snapshots in process; used when no REDIS_URL is configured.
func NewMemoryStore() SnapshotStore {
	return &memoryStore{snaps: make(map[string]Snapshot)}
}

func (m *memoryStore) Save(_ context.Context, snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.snaps[snap.RobotID]; ok && conflicts(&cur, snap) {
		return ErrSnapshotConflict
	}
	cp := *snap
	cp.Moves = append([]string(nil), snap.Moves...)
	m.snaps[snap.RobotID] = cp
	return nil
}

func (m *memoryStore) Load(_ context.Context, robotID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur, ok := m.snaps[robotID]
	if !ok {
		return nil, nil
	}
	cur.Moves = append([]string(nil), cur.Moves...)
	return &cur, nil
}

func (m *memoryStore) Delete(_ context.Context, robotID string) error {
	m.mu.Lock()
	delete(m.snaps, robotID)
	m.mu.Unlock()
	return nil
}

// conflicts reports whether next would overwrite a different live session.
func conflicts(cur, next *Snapshot) bool {
	return cur.SessionUUID != next.SessionUUID && cur.Status == statusActive
}
