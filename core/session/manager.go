package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/citybot/core/logger"
	"github.com/m3rciful/citybot/core/storage"
)

// HandlerFunc processes one turn. Returning an error discards the turn's changes.
type HandlerFunc func(ctx context.Context, t *Turn) error

// Manager runs turns against a store, one at a time per conversation.
type Manager struct {
	store storage.Store
	locks keyedMutex
	log   *slog.Logger
}

// NewManager constructs a Manager backed by store.
func NewManager(store storage.Store) *Manager {
	return &Manager{
		store: store,
		locks: keyedMutex{entries: make(map[string]*lockEntry)},
		log:   logger.Component("session"),
	}
}

// Process loads the scopes for msg, runs h, and flushes the recorded
// mutations in one batch. Turns of the same conversation never overlap.
func (m *Manager) Process(ctx context.Context, msg Message, replier Replier, h HandlerFunc) error {
	if !msg.Address.Valid() {
		return fmt.Errorf("%w: %+v", ErrInvalidAddress, msg.Address)
	}
	start := time.Now()
	unlock, err := m.locks.lock(ctx, msg.Address.lockKey())
	if err != nil {
		return fmt.Errorf("session: wait for conversation: %w", err)
	}
	defer unlock()

	addr := msg.Address
	user, err := m.store.Load(ctx, addr.UserRef())
	if err != nil {
		return fmt.Errorf("session: load user scope: %w", err)
	}
	conv, err := m.store.Load(ctx, addr.ConversationRef())
	if err != nil {
		return fmt.Errorf("session: load conversation scope: %w", err)
	}
	private, err := m.store.Load(ctx, addr.PrivateRef())
	if err != nil {
		return fmt.Errorf("session: load private scope: %w", err)
	}

	turn := newTurn(msg, replier, user, conv, private)
	if err := h(ctx, turn); err != nil {
		logger.LogEvent(ctx, m.log, slog.LevelWarn, "turn.discard",
			slog.String("status", "fail"),
			slog.Int("mutations", len(turn.muts)),
			slog.String("err", err.Error()),
		)
		return err
	}
	if err := m.store.Apply(ctx, turn.muts); err != nil {
		return fmt.Errorf("session: flush: %w", err)
	}
	logger.LogEvent(ctx, m.log, slog.LevelDebug, "turn.flush",
		slog.String("status", "ok"),
		slog.Int("mutations", len(turn.muts)),
		slog.Int("messages", len(turn.replies)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// keyedMutex hands out one lock per key and forgets keys nobody holds.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func (k *keyedMutex) lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}
	return func() {
		<-e.ch
		k.release(key, e)
	}, nil
}

func (k *keyedMutex) release(key string, e *lockEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
