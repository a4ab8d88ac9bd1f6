package storage

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/m3rciful/citybot/core/logger"
)

// generationStripes bounds the write counters; refs sharing a stripe only
// cost each other a skipped cache fill.
const generationStripes = 256

// Cached is a read-through cache in front of another Store. Every write
// evicts the affected scope instance, and a load that raced with a write to
// the same ref is returned but not cached, so reads never observe values
// older than the last write made through this Cached.
type Cached struct {
	next  Store
	cache *expirable.LRU[Ref, Values]

	mu          sync.Mutex
	generations [generationStripes]uint64
}

// NewCached wraps next with an LRU of at most size scope instances, each kept for ttl.
func NewCached(next Store, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[Ref, Values](size, nil, ttl),
	}
}

func stripe(ref Ref) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ref.Scope))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(ref.ID))
	return int(h.Sum32() % generationStripes)
}

func (c *Cached) generation(ref Ref) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[stripe(ref)]
}

// invalidate runs after a write reached the wrapped store, committed or not.
func (c *Cached) invalidate(refs ...Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ref := range refs {
		c.generations[stripe(ref)]++
		c.cache.Remove(ref)
	}
}

// Load serves the scope from cache or loads it from the wrapped store.
func (c *Cached) Load(ctx context.Context, ref Ref) (Values, error) {
	if values, ok := c.cache.Get(ref); ok {
		c.log(ctx, ref, "hit")
		return values.Clone(), nil
	}
	gen := c.generation(ref)
	values, err := c.next.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.generations[stripe(ref)] == gen {
		c.cache.Add(ref, values.Clone())
	}
	c.mu.Unlock()
	c.log(ctx, ref, "miss")
	return values, nil
}

// Get answers from a cached scope when present.
func (c *Cached) Get(ctx context.Context, ref Ref, key string) (any, bool, error) {
	if values, ok := c.cache.Get(ref); ok {
		v, found := values[key]
		return v, found, nil
	}
	return c.next.Get(ctx, ref, key)
}

// Set writes through and evicts ref.
func (c *Cached) Set(ctx context.Context, ref Ref, key string, value any) error {
	defer c.invalidate(ref)
	return c.next.Set(ctx, ref, key, value)
}

// Delete writes through and evicts ref.
func (c *Cached) Delete(ctx context.Context, ref Ref, key string) error {
	defer c.invalidate(ref)
	return c.next.Delete(ctx, ref, key)
}

// Apply writes through and evicts every ref touched by the batch.
func (c *Cached) Apply(ctx context.Context, muts []Mutation) error {
	defer func() {
		refs := make([]Ref, 0, len(muts))
		for _, mut := range muts {
			refs = append(refs, mut.Ref)
		}
		c.invalidate(refs...)
	}()
	return c.next.Apply(ctx, muts)
}

// Close purges the cache and closes the wrapped store.
func (c *Cached) Close() error {
	c.cache.Purge()
	return c.next.Close()
}

func (c *Cached) log(ctx context.Context, ref Ref, result string) {
	if !logger.ShouldSampleDebug() {
		return
	}
	logger.Store.LogAttrs(ctx, slog.LevelDebug, "",
		slog.String("event", "store.cache"),
		slog.String("cache", result),
		slog.String("scope", string(ref.Scope)),
		slog.String("scope_id", ref.ID),
	)
}
