package redis

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/tzuhan-lo/namecard-bot/internal/domain"
)

func newTestBackend(t *testing.T) (*SessionBackend, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	backend, err := NewSessionBackend(client)
	if err != nil {
		t.Fatalf("NewSessionBackend() error = %v", err)
	}
	return backend, srv
}

func TestSessionBackendSetExAndGet(t *testing.T) {
	t.Parallel()

	backend, srv := newTestBackend(t)
	ctx := context.Background()

	if err := backend.SetEx(ctx, "session:status:u1", 24*time.Hour, []byte(`{"userId":"u1"}`)); err != nil {
		t.Fatalf("SetEx() error = %v", err)
	}

	payload, err := backend.Get(ctx, "session:status:u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(payload) != `{"userId":"u1"}` {
		t.Fatalf("Get() = %s, want stored payload", payload)
	}

	if ttl := srv.TTL("session:status:u1"); ttl != 24*time.Hour {
		t.Fatalf("TTL = %v, want 24h", ttl)
	}
}

func TestSessionBackendGetMissing(t *testing.T) {
	t.Parallel()

	backend, _ := newTestBackend(t)

	if _, err := backend.Get(context.Background(), "session:status:nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSessionBackendEntryExpires(t *testing.T) {
	t.Parallel()

	backend, srv := newTestBackend(t)
	ctx := context.Background()

	if err := backend.SetEx(ctx, "session:status:u1", time.Hour, []byte("{}")); err != nil {
		t.Fatalf("SetEx() error = %v", err)
	}

	srv.FastForward(2 * time.Hour)

	if _, err := backend.Get(ctx, "session:status:u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestSessionBackendScanFiltersPrefix(t *testing.T) {
	t.Parallel()

	backend, _ := newTestBackend(t)
	ctx := context.Background()

	entries := map[string]string{
		"session:status:u1": "{}",
		"session:status:u2": "{}",
		"other:u3":          "{}",
	}
	for key, value := range entries {
		if err := backend.SetEx(ctx, key, time.Hour, []byte(value)); err != nil {
			t.Fatalf("SetEx(%q) error = %v", key, err)
		}
	}

	keys, err := backend.Scan(ctx, "session:status:")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	sort.Strings(keys)

	want := []string{"session:status:u1", "session:status:u2"}
	if len(keys) != len(want) {
		t.Fatalf("Scan() returned %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Scan() returned %v, want %v", keys, want)
		}
	}
}

func TestSessionBackendDelete(t *testing.T) {
	t.Parallel()

	backend, _ := newTestBackend(t)
	ctx := context.Background()

	if err := backend.SetEx(ctx, "session:status:u1", time.Hour, []byte("{}")); err != nil {
		t.Fatalf("SetEx() error = %v", err)
	}
	if err := backend.Delete(ctx, "session:status:u1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := backend.Get(ctx, "session:status:u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestNewSessionBackendRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewSessionBackend(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
