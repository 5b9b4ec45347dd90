package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/pkg/quest"
	"github.com/jwebster45206/quest-engine/pkg/state"
)

// MockStorage is an in-memory Storage for tests. Sessions are stored as JSON
// so callers never share state with what was saved.
type MockStorage struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID][]byte
	events    map[uuid.UUID][]quest.GameEvent
	catalog   *quest.Catalog
	pingError error
	saveError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage serving catalog
func NewMockStorage(catalog *quest.Catalog) *MockStorage {
	return &MockStorage{
		sessions: make(map[uuid.UUID][]byte),
		events:   make(map[uuid.UUID][]quest.GameEvent),
		catalog:  catalog,
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the mock to fail on SaveSession with the given error
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveSession(ctx context.Context, s *state.Session) error {
	if s == nil {
		return errors.New("session cannot be nil")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.sessions[s.ID] = data
	return nil
}

func (m *MockStorage) LoadSession(ctx context.Context, id uuid.UUID) (*state.Session, error) {
	m.mu.RLock()
	data, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var s state.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Character != nil {
		s.Character.Normalize()
	}
	return &s, nil
}

func (m *MockStorage) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MockStorage) ListSessions(ctx context.Context) ([]*state.Session, error) {
	m.mu.RLock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	out := make([]*state.Session, 0, len(ids))
	for _, id := range ids {
		s, err := m.LoadSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b *state.Session) int { return cmp.Compare(a.ID.String(), b.ID.String()) })
	return out, nil
}

func (m *MockStorage) AppendEvents(ctx context.Context, id uuid.UUID, events []quest.GameEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[id] = append(m.events[id], events...)
	return nil
}

func (m *MockStorage) ListEvents(ctx context.Context, id uuid.UUID) ([]quest.GameEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.events[id]), nil
}

func (m *MockStorage) LoadCatalog(ctx context.Context) (*quest.Catalog, error) {
	if m.catalog == nil {
		return nil, errors.New("no catalog configured")
	}
	return m.catalog, nil
}
