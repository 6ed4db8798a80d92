//go:build integration

package pagecache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/uncover/pkg/primary"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}
	return client, cleanup
}

func TestSource_Integration_ReadThrough(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	var calls atomic.Int32
	inner := primary.DataSourceFunc[int](func(_ context.Context, req primary.Request) (*primary.Response[int], error) {
		calls.Add(1)
		items := make([]int, 0, req.Size())
		for i := req.From; i < req.To; i++ {
			items = append(items, i*i)
		}
		return primary.NewResponseWithTotal(items, 1000), nil
	})

	manager := NewManager(client)
	src := NewSource[int](inner, manager, time.Minute, WithLogger(zerolog.Nop()))
	ctx := context.Background()
	req := primary.NewRequest(3, 30, 40, "squares", true)

	for i := 0; i < 3; i++ {
		resp, err := src.Fetch(ctx, req)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if resp.Items[0] != 900 || *resp.Total != 1000 {
			t.Errorf("Fetch() = %+v", resp)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}

	ttl, err := client.TTL(ctx, KeyFor(DefaultNamespace, req).String()).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within 1m", ttl)
	}

	deleted, err := manager.Purge(ctx, DefaultNamespace)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Purge() = %d, want 1", deleted)
	}

	if _, err := src.Fetch(ctx, req); err != nil {
		t.Fatalf("Fetch() after purge error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("upstream calls after purge = %d, want 2", calls.Load())
	}
}
