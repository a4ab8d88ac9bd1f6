package storage

import (
	"context"
	"sync"
)

// Memory keeps state in process memory. It is meant for tests and local development.
type Memory struct {
	mu     sync.RWMutex
	scopes map[Ref]Values
	closed bool
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{scopes: make(map[Ref]Values)}
}

// Load returns a copy of the scope content, empty when nothing was stored yet.
func (m *Memory) Load(_ context.Context, ref Ref) (Values, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.scopes[ref].Clone(), nil
}

// Get returns a single value and whether it was present.
func (m *Memory) Get(_ context.Context, ref Ref, key string) (any, bool, error) {
	if err := (Mutation{Ref: ref, Key: key}).validate(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	v, ok := m.scopes[ref][key]
	return v, ok, nil
}

// Set stores value under key, creating the scope instance lazily.
func (m *Memory) Set(ctx context.Context, ref Ref, key string, value any) error {
	return m.Apply(ctx, []Mutation{{Ref: ref, Key: key, Value: value}})
}

// Delete removes key; deleting an absent key is not an error.
func (m *Memory) Delete(ctx context.Context, ref Ref, key string) error {
	return m.Apply(ctx, []Mutation{{Ref: ref, Key: key, Delete: true}})
}

// Apply validates the whole batch before touching any scope.
func (m *Memory) Apply(_ context.Context, muts []Mutation) error {
	for _, mut := range muts {
		if err := mut.validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, mut := range muts {
		values, ok := m.scopes[mut.Ref]
		if mut.Delete {
			if ok {
				delete(values, mut.Key)
				if len(values) == 0 {
					delete(m.scopes, mut.Ref)
				}
			}
			continue
		}
		if !ok {
			values = make(Values)
			m.scopes[mut.Ref] = values
		}
		values[mut.Key] = mut.Value
	}
	return nil
}

// Close drops all state.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.scopes = nil
	return nil
}
