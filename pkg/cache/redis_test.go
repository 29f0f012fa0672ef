package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

type cachedCtx struct {
	UserID    string `json:"userId"`
	CompanyID string `json:"companyId"`
	Role      string `json:"role"`
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis[*cachedCtx]) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)

	store, err := NewRedis[*cachedCtx]("redis://"+srv.Addr(), "authctx")
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return srv, store
}

func TestRedisRoundTrip(t *testing.T) {
	_, store := newTestRedis(t)
	ctx := context.Background()

	want := &cachedCtx{UserID: "u1", CompanyID: "c1", Role: "office"}
	store.Set(ctx, "sess-1", want, time.Minute)

	got, ok := store.Get(ctx, "sess-1")
	if !ok {
		t.Fatal("expected hit")
	}
	if *got != *want {
		t.Fatalf("Get() = %+v, want %+v", got, want)
	}
}

func TestRedisExpiry(t *testing.T) {
	srv, store := newTestRedis(t)
	ctx := context.Background()

	store.Set(ctx, "sess-1", &cachedCtx{UserID: "u1"}, time.Minute)
	srv.FastForward(61 * time.Second)

	if _, ok := store.Get(ctx, "sess-1"); ok {
		t.Fatal("entry survived past its TTL")
	}
}

func TestRedisDelete(t *testing.T) {
	_, store := newTestRedis(t)
	ctx := context.Background()

	store.Set(ctx, "sess-1", &cachedCtx{UserID: "u1"}, time.Minute)
	store.Delete(ctx, "sess-1")
	if _, ok := store.Get(ctx, "sess-1"); ok {
		t.Fatal("deleted entry still resolvable")
	}
}

func TestRedisMissOnBadURL(t *testing.T) {
	if _, err := NewRedis[*cachedCtx]("not-a-url", "authctx"); err == nil {
		t.Fatal("NewRedis() expected error for invalid url")
	}
}
