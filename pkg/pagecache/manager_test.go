package pagecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips the test when none is
// running. The integration tests use a container instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client)
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	key := Key{Query: "books", From: 0, To: 10}
	entry := &Entry{
		Data:     []byte(`{"items":["a","b"],"total":2}`),
		HasTotal: true,
		Expires:  time.Now().Add(5 * time.Minute),
		CachedAt: time.Now(),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", got.Data, entry.Data)
	}
	if !got.HasTotal {
		t.Error("HasTotal lost")
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), Key{Query: "nothing"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := Key{Query: "broken"}
	if err := client.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("raw set failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestManager_Set_Expired(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	key := Key{Query: "old"}
	entry := &Entry{Data: []byte(`{}`), Expires: time.Now().Add(-time.Minute)}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired entry was stored, Get error = %v", err)
	}
}

func TestManager_Set_Nil(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	if err := manager.Set(context.Background(), Key{}, nil); err == nil {
		t.Error("Set(nil) should fail")
	}
}

func TestManager_DeleteAndPurge(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	entry := &Entry{Data: []byte(`{}`), Expires: time.Now().Add(time.Minute)}
	for _, key := range []Key{
		{Namespace: "a", Query: "q", From: 0, To: 10},
		{Namespace: "a", Query: "q", From: 10, To: 20},
		{Namespace: "b", Query: "q", From: 0, To: 10},
	} {
		if err := manager.Set(ctx, key, entry); err != nil {
			t.Fatalf("Set(%s) failed: %v", key, err)
		}
	}

	if err := manager.Delete(ctx, Key{Namespace: "a", Query: "q", From: 10, To: 20}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	deleted, err := manager.Purge(ctx, "a")
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Purge deleted %d keys, want 1", deleted)
	}

	if _, err := manager.Get(ctx, Key{Namespace: "b", Query: "q", From: 0, To: 10}); err != nil {
		t.Errorf("other namespace affected by purge: %v", err)
	}
}
