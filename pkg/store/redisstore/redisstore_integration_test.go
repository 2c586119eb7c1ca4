//go:build integration

package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wilhg/workshop/pkg/store"
	"github.com/wilhg/workshop/pkg/store/storetest"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("skip: cannot start redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := c.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisConformance(t *testing.T) {
	addr := startRedis(t)
	n := 0
	storetest.Run(t, func(t *testing.T) store.BlobStore {
		n++
		cfg := DefaultConfig()
		cfg.Addr = addr
		cfg.KeyPrefix = fmt.Sprintf("test:%d:", n)
		s, err := Open(context.Background(), cfg)
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}

func TestRedisPrefixesAreIsolated(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	a := New(client, "a:")
	b := New(client, "b:")
	if err := a.Put(ctx, "snapshots/1.json", []byte("x")); err != nil {
		t.Fatal(err)
	}
	keys, err := b.List(ctx, "snapshots/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Fatalf("keys=%v want none", keys)
	}
}
