package exam

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu    sync.RWMutex
	tests map[string]Test
	now   func() time.Time
}

// NewMemoryStore returns a Store backed by a map. Handy for tests and for
// running the gateway without a database.
func NewMemoryStore() Store {
	return &memoryStore{
		tests: map[string]Test{},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *memoryStore) FindByID(_ context.Context, id string) (Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[id]
	if !ok {
		return Test{}, ErrNotFound
	}
	return Clone(t), nil
}

func (m *memoryStore) FindPublished(_ context.Context) ([]Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Test, 0, len(m.tests))
	for _, t := range m.tests {
		if t.Published {
			out = append(out, Clone(t))
		}
	}
	sortPublished(out)
	return out, nil
}

func (m *memoryStore) FindAll(_ context.Context) ([]Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Test, 0, len(m.tests))
	for _, t := range m.tests {
		out = append(out, Clone(t))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) Create(_ context.Context, t Test) (Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	t.ID = uuid.NewString()
	t.CreatedAt, t.UpdatedAt = now, now
	SortQuestions(&t)
	m.tests[t.ID] = Clone(t)
	return t, nil
}

func (m *memoryStore) Update(_ context.Context, id string, t Test) (Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.tests[id]
	if !ok {
		return Test{}, ErrNotFound
	}
	t.ID = id
	t.CreatedAt = prev.CreatedAt
	t.UpdatedAt = m.now()
	SortQuestions(&t)
	m.tests[id] = Clone(t)
	return t, nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tests[id]; !ok {
		return ErrNotFound
	}
	delete(m.tests, id)
	return nil
}

func sortPublished(ts []Test) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].Tag != ts[j].Tag {
			return ts[i].Tag > ts[j].Tag
		}
		return ts[i].CreatedAt.After(ts[j].CreatedAt)
	})
}
