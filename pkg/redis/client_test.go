package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/angelmondragon/lanecalc/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := NewFromAddr(mr.Addr())
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	if err := client.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := client.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("unexpected get %q err=%v", got, err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := client.Get(ctx, "k"); !errors.Is(err, Nil) {
		t.Fatalf("expected Nil after expiry, got %v", err)
	}

	if err := client.Set(ctx, "k2", "v", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := client.Del(ctx, "k2"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, "k2"); !errors.Is(err, Nil) {
		t.Fatalf("expected Nil after delete, got %v", err)
	}
}

func TestSetNXOnlyOnce(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	first, err := client.SetNX(ctx, "once", "1", time.Minute)
	if err != nil || !first {
		t.Fatalf("expected first SetNX to succeed, got %v err=%v", first, err)
	}
	second, err := client.SetNX(ctx, "once", "1", time.Minute)
	if err != nil || second {
		t.Fatalf("expected second SetNX to fail, got %v err=%v", second, err)
	}
}

func TestIndexedValues(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	index := client.HoldIndexKey("lane-3")

	for _, id := range []string{"a", "b"} {
		if err := client.PutIndexed(ctx, client.HoldKey("lane-3", id), "{}", index, id, time.Hour); err != nil {
			t.Fatalf("put %s failed: %v", id, err)
		}
	}
	if ttl := mr.TTL(index); ttl != time.Hour {
		t.Fatalf("expected index ttl 1h, got %v", ttl)
	}
	if err := client.DeleteIndexed(ctx, client.HoldKey("lane-3", "a"), index, "a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if mr.Exists(client.HoldKey("lane-3", "a")) {
		t.Fatal("value should be deleted with its index entry")
	}
	members, err := client.Members(ctx, index)
	if err != nil {
		t.Fatalf("members failed: %v", err)
	}
	if len(members) != 1 || members[0] != "b" {
		t.Fatalf("unexpected members %v", members)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "lc:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.HoldKey("lane-3", "tx"); got != "lc:hold:lane-3:tx" {
		t.Fatalf("unexpected hold key %s", got)
	}
	if got := client.HoldIndexKey(" lane-3 "); got != "lc:hold:lane-3:index" {
		t.Fatalf("unexpected hold index key %s", got)
	}
	if got := client.CacheKey("product", ""); got != "lc:cache:product" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 4, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 4 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected address options %+v", opts)
	}
	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options db=%d pool=%d", opts.DB, opts.PoolSize)
	}
}
