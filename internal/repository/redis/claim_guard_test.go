package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestClaimGuardStore_AcquireOnce(t *testing.T) {
	client, _ := newTestRedis(t)
	guard := NewClaimGuardStore(client, "claim:inflight:test", time.Minute)

	acquired, err := guard.Acquire(context.Background(), "claim-1")
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if !acquired {
		t.Fatalf("expected first acquire to succeed")
	}

	acquired, err = guard.Acquire(context.Background(), "claim-1")
	if err != nil {
		t.Fatalf("second Acquire returned error: %v", err)
	}
	if acquired {
		t.Fatalf("expected second acquire to fail while guard held")
	}
}

func TestClaimGuardStore_ReleaseAllowsReacquire(t *testing.T) {
	client, _ := newTestRedis(t)
	guard := NewClaimGuardStore(client, "claim:inflight:test", time.Minute)

	if _, err := guard.Acquire(context.Background(), "claim-1"); err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if err := guard.Release(context.Background(), "claim-1"); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}

	acquired, err := guard.Acquire(context.Background(), "claim-1")
	if err != nil {
		t.Fatalf("Acquire after release returned error: %v", err)
	}
	if !acquired {
		t.Fatalf("expected acquire to succeed after release")
	}
}

func TestClaimGuardStore_TTLExpiry(t *testing.T) {
	client, server := newTestRedis(t)
	guard := NewClaimGuardStore(client, "claim:inflight:test", time.Second)

	if _, err := guard.Acquire(context.Background(), "claim-1"); err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}

	server.FastForward(2 * time.Second)

	acquired, err := guard.Acquire(context.Background(), "claim-1")
	if err != nil {
		t.Fatalf("Acquire after expiry returned error: %v", err)
	}
	if !acquired {
		t.Fatalf("expected acquire to succeed after guard TTL expiry")
	}
}

func TestClaimGuardStore_EmptyClaimID(t *testing.T) {
	client, _ := newTestRedis(t)
	guard := NewClaimGuardStore(client, "", time.Minute)

	if _, err := guard.Acquire(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty claim id")
	}
	if err := guard.Release(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty claim id")
	}
}
