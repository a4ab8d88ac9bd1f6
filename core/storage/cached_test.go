package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingStore struct {
	*Memory
	loads    int
	applyErr error
}

func (c *countingStore) Load(ctx context.Context, ref Ref) (Values, error) {
	c.loads++
	return c.Memory.Load(ctx, ref)
}

func (c *countingStore) Apply(ctx context.Context, muts []Mutation) error {
	if c.applyErr != nil {
		return c.applyErr
	}
	return c.Memory.Apply(ctx, muts)
}

func (c *countingStore) Set(ctx context.Context, ref Ref, key string, value any) error {
	return c.Apply(ctx, []Mutation{{Ref: ref, Key: key, Value: value}})
}

func TestCachedServesRepeatedLoads(t *testing.T) {
	ctx := context.Background()
	next := &countingStore{Memory: NewMemory()}
	c := NewCached(next, 8, time.Minute)
	ref := Ref{Scope: ScopeConversation, ID: "console:1"}

	for i := 0; i < 3; i++ {
		if _, err := c.Load(ctx, ref); err != nil {
			t.Fatalf("load: %v", err)
		}
	}
	if next.loads != 1 {
		t.Fatalf("backend loads = %d, want 1", next.loads)
	}

	values, _ := c.Load(ctx, ref)
	values["City"] = "Oslo"
	if again, _ := c.Load(ctx, ref); len(again) != 0 {
		t.Fatalf("cached entry mutated through a returned map: %#v", again)
	}
}

func TestCachedInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	next := &countingStore{Memory: NewMemory()}
	c := NewCached(next, 8, time.Minute)
	ref := Ref{Scope: ScopeConversation, ID: "console:1"}

	if _, err := c.Load(ctx, ref); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.Set(ctx, ref, "City", "Seattle"); err != nil {
		t.Fatalf("set: %v", err)
	}
	values, err := c.Load(ctx, ref)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if values["City"] != "Seattle" {
		t.Fatalf("stale read after set: %#v", values)
	}
	if next.loads != 2 {
		t.Fatalf("backend loads = %d, want 2", next.loads)
	}

	if err := c.Apply(ctx, []Mutation{{Ref: ref, Key: "City", Delete: true}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if v, ok, _ := c.Get(ctx, ref, "City"); ok {
		t.Fatalf("stale get after delete: %v", v)
	}
}

func TestCachedInvalidatesOnFailedWrite(t *testing.T) {
	ctx := context.Background()
	next := &countingStore{Memory: NewMemory()}
	c := NewCached(next, 8, time.Minute)
	ref := Ref{Scope: ScopeUser, ID: "console:1"}

	if _, err := c.Load(ctx, ref); err != nil {
		t.Fatalf("load: %v", err)
	}
	next.applyErr = errors.New("disk full")
	if err := c.Set(ctx, ref, "UserName", "Ada"); err == nil {
		t.Fatal("expected write error")
	}
	if _, err := c.Load(ctx, ref); err != nil {
		t.Fatalf("load: %v", err)
	}
	if next.loads != 2 {
		t.Fatalf("backend loads = %d, want 2", next.loads)
	}
}

func TestCachedExpires(t *testing.T) {
	ctx := context.Background()
	next := &countingStore{Memory: NewMemory()}
	c := NewCached(next, 8, 10*time.Millisecond)
	ref := Ref{Scope: ScopeUser, ID: "console:1"}

	_, _ = c.Load(ctx, ref)
	time.Sleep(50 * time.Millisecond)
	_, _ = c.Load(ctx, ref)
	if next.loads != 2 {
		t.Fatalf("backend loads = %d, want 2", next.loads)
	}
}

// gatedStore parks the first Load after it has read the backing values.
type gatedStore struct {
	*Memory
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (g *gatedStore) Load(ctx context.Context, ref Ref) (Values, error) {
	values, err := g.Memory.Load(ctx, ref)
	g.once.Do(func() {
		close(g.loaded)
		<-g.release
	})
	return values, err
}

func TestCachedDropsLoadRacingWithWrite(t *testing.T) {
	ctx := context.Background()
	ref := Ref{Scope: ScopeUser, ID: "telegram:7"}
	next := &gatedStore{Memory: NewMemory(), loaded: make(chan struct{}), release: make(chan struct{})}
	if err := next.Memory.Set(ctx, ref, "UserName", "Ada"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	c := NewCached(next, 8, time.Minute)

	done := make(chan Values, 1)
	go func() {
		values, _ := c.Load(ctx, ref)
		done <- values
	}()
	<-next.loaded
	if err := c.Apply(ctx, []Mutation{{Ref: ref, Key: "UserName", Delete: true}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	close(next.release)
	if values := <-done; values["UserName"] != "Ada" {
		t.Fatalf("racing load = %#v, want the values it read", values)
	}

	values, err := c.Load(ctx, ref)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v, ok := values["UserName"]; ok {
		t.Fatalf("UserName = %v served after delete committed", v)
	}
}
