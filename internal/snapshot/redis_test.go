package snapshot

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedis(client, "ledger:snapshot")
	ctx := context.Background()

	payload := []byte(`{"version":1}`)
	if err := store.Save(ctx, payload); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(loaded, payload) {
		t.Fatalf("round trip mismatch: %s", loaded)
	}
}

func TestRedisStoreLoadMissing(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedis(client, "ledger:snapshot")

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreOverwrite(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedis(client, "ledger:snapshot")
	ctx := context.Background()

	if err := store.Save(ctx, []byte("old")); err != nil {
		t.Fatalf("save old: %v", err)
	}
	if err := store.Save(ctx, []byte("new")); err != nil {
		t.Fatalf("save new: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(loaded) != "new" {
		t.Fatalf("expected latest snapshot, got %s", loaded)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}
	if err := store.Save(ctx, []byte("state")); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(loaded) != "state" {
		t.Fatalf("unexpected contents: %s", loaded)
	}
}
