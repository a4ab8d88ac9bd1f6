package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/citybot/core/database"
	"github.com/m3rciful/citybot/core/storage"
)

var (
	userRef    = storage.Ref{Scope: storage.ScopeUser, ID: "telegram:7"}
	convRef    = storage.Ref{Scope: storage.ScopeConversation, ID: "telegram:9"}
	privateRef = storage.Ref{Scope: storage.ScopePrivateConversation, ID: "telegram:9:7"}
)

func newSQLiteStore(t *testing.T) *storage.SQL {
	t.Helper()
	ctx := context.Background()
	cfg := database.Config{Path: filepath.Join(t.TempDir(), "state.db")}
	if err := database.RunMigrations(ctx, database.DriverSQLite, cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := database.Connect(ctx, database.DriverSQLite, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	s := storage.NewSQL(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func backends(t *testing.T) map[string]storage.Store {
	return map[string]storage.Store{
		"memory": storage.NewMemory(),
		"sqlite": newSQLiteStore(t),
		"cached": storage.NewCached(storage.NewMemory(), 16, time.Minute),
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, ok, err := s.Get(ctx, userRef, "UserName"); err != nil || ok {
				t.Fatalf("absent key: ok=%v err=%v", ok, err)
			}
			values, err := s.Load(ctx, userRef)
			if err != nil {
				t.Fatalf("load empty: %v", err)
			}
			if values == nil || len(values) != 0 {
				t.Fatalf("load empty = %#v", values)
			}

			if err := s.Set(ctx, userRef, "UserName", "Ada"); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := s.Set(ctx, privateRef, "UserWelcomed", true); err != nil {
				t.Fatalf("set bool: %v", err)
			}
			v, ok, err := s.Get(ctx, userRef, "UserName")
			if err != nil || !ok || v != "Ada" {
				t.Fatalf("get = %v, %v, %v", v, ok, err)
			}
			v, ok, err = s.Get(ctx, privateRef, "UserWelcomed")
			if err != nil || !ok || v != true {
				t.Fatalf("get bool = %v, %v, %v", v, ok, err)
			}

			// Scopes are independent.
			if _, ok, _ := s.Get(ctx, convRef, "UserName"); ok {
				t.Fatal("conversation scope leaked user key")
			}

			if err := s.Set(ctx, userRef, "UserName", "Grace"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			if v, _, _ := s.Get(ctx, userRef, "UserName"); v != "Grace" {
				t.Fatalf("overwrite = %v", v)
			}

			if err := s.Delete(ctx, userRef, "UserName"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := s.Delete(ctx, userRef, "UserName"); err != nil {
				t.Fatalf("delete absent: %v", err)
			}
			if _, ok, _ := s.Get(ctx, userRef, "UserName"); ok {
				t.Fatal("key still present after delete")
			}
		})
	}
}

func TestStoreApplyBatch(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			muts := []storage.Mutation{
				{Ref: convRef, Key: "City", Value: "Seattle"},
				{Ref: privateRef, Key: "City", Value: "Paris"},
				{Ref: privateRef, Key: "UserWelcomed", Value: true},
				{Ref: privateRef, Key: "City", Delete: true},
			}
			if err := s.Apply(ctx, muts); err != nil {
				t.Fatalf("apply: %v", err)
			}
			conv, err := s.Load(ctx, convRef)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if conv["City"] != "Seattle" {
				t.Fatalf("conversation = %#v", conv)
			}
			priv, err := s.Load(ctx, privateRef)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if _, ok := priv["City"]; ok || priv["UserWelcomed"] != true {
				t.Fatalf("private = %#v", priv)
			}

			// Loaded values are copies.
			priv["UserWelcomed"] = false
			again, _ := s.Load(ctx, privateRef)
			if again["UserWelcomed"] != true {
				t.Fatal("mutating a loaded map changed the store")
			}
		})
	}
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := s.Apply(ctx, []storage.Mutation{
				{Ref: userRef, Key: "UserName", Value: "Ada"},
				{Ref: storage.Ref{Scope: "global", ID: "x"}, Key: "k", Value: 1},
			})
			if !errors.Is(err, storage.ErrInvalidRef) {
				t.Fatalf("err = %v, want ErrInvalidRef", err)
			}
			if _, ok, _ := s.Get(ctx, userRef, "UserName"); ok {
				t.Fatal("invalid batch was partially applied")
			}
			if err := s.Set(ctx, userRef, "", "x"); !errors.Is(err, storage.ErrEmptyKey) {
				t.Fatalf("err = %v, want ErrEmptyKey", err)
			}
			if _, err := s.Load(ctx, storage.Ref{Scope: storage.ScopeUser}); !errors.Is(err, storage.ErrInvalidRef) {
				t.Fatalf("err = %v, want ErrInvalidRef", err)
			}
		})
	}
}

func TestMemoryClosed(t *testing.T) {
	s := storage.NewMemory()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.Load(context.Background(), userRef); !errors.Is(err, storage.ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if err := s.Set(context.Background(), userRef, "k", "v"); !errors.Is(err, storage.ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestMemoryConcurrentWriters(t *testing.T) {
	s := storage.NewMemory()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := storage.Ref{Scope: storage.ScopeUser, ID: string(rune('a' + i%8))}
			_ = s.Set(ctx, ref, "n", i)
			_, _ = s.Load(ctx, ref)
		}(i)
	}
	wg.Wait()
	for i := 0; i < 8; i++ {
		ref := storage.Ref{Scope: storage.ScopeUser, ID: string(rune('a' + i))}
		if _, ok, _ := s.Get(ctx, ref, "n"); !ok {
			t.Fatalf("missing value for %s", ref)
		}
	}
}
