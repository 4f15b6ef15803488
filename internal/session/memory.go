package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps states in process. Used in tests and when Redis is disabled.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	states map[string]State
}

// NewMemoryStore returns a store whose entries expire after ttl (0 = never).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, states: map[string]State{}}
}

func (m *MemoryStore) Load(_ context.Context, key string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[key]
	if !ok {
		return &State{}, nil
	}
	if m.ttl > 0 && m.now().Sub(st.UpdatedAt) > m.ttl {
		delete(m.states, key)
		return &State{}, nil
	}
	return clone(st), nil
}

func (m *MemoryStore) Save(_ context.Context, key string, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !state.Active() {
		delete(m.states, key)
		return nil
	}
	state.UpdatedAt = m.now()
	m.states[key] = *clone(*state)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
	return nil
}

func clone(st State) *State {
	out := st
	if st.Data != nil {
		out.Data = make(map[string]string, len(st.Data))
		for k, v := range st.Data {
			out.Data[k] = v
		}
	}
	return &out
}
