package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "fgtest"), mr
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := store.SaveToken(ctx, "ctx-1", Token{Value: "opaque.provider.token", ExpiresAt: exp}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	got, err := store.LoadToken(ctx, "ctx-1")
	if err != nil {
		t.Fatalf("LoadToken failed: %v", err)
	}
	if got.Value != "opaque.provider.token" {
		t.Fatalf("expected token value round trip, got %q", got.Value)
	}
	if !got.ExpiresAt.Equal(exp) {
		t.Fatalf("expected expiry %v, got %v", exp, got.ExpiresAt)
	}
}

func TestSaveTokenNoExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveToken(ctx, "ctx-1", Token{Value: "tok"}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	if mr.TTL("fgtest:ct:ctx-1") != 0 {
		t.Fatalf("expected no TTL for token without expiry, got %v", mr.TTL("fgtest:ct:ctx-1"))
	}

	got, err := store.LoadToken(ctx, "ctx-1")
	if err != nil {
		t.Fatalf("LoadToken failed: %v", err)
	}
	if !got.ExpiresAt.IsZero() {
		t.Fatalf("expected zero expiry, got %v", got.ExpiresAt)
	}
}

func TestSaveTokenReplacesPrevious(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveToken(ctx, "ctx-1", Token{Value: "first"}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	if err := store.SaveToken(ctx, "ctx-1", Token{Value: "second"}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	got, err := store.LoadToken(ctx, "ctx-1")
	if err != nil {
		t.Fatalf("LoadToken failed: %v", err)
	}
	if got.Value != "second" {
		t.Fatalf("expected replacement token, got %q", got.Value)
	}
}

func TestLoadTokenMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.LoadToken(context.Background(), "nobody")
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestLoadTokenExpiredInRedis(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveToken(ctx, "ctx-1", Token{Value: "tok", ExpiresAt: time.Now().Add(2 * time.Second)}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	mr.FastForward(5 * time.Second)

	_, err := store.LoadToken(ctx, "ctx-1")
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound after TTL, got %v", err)
	}
}

func TestDeleteTokenIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveToken(ctx, "ctx-1", Token{Value: "tok"}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	if err := store.DeleteToken(ctx, "ctx-1"); err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	if err := store.DeleteToken(ctx, "ctx-1"); err != nil {
		t.Fatalf("second DeleteToken must be a no-op, got %v", err)
	}

	_, err := store.LoadToken(ctx, "ctx-1")
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound after delete, got %v", err)
	}
}

func TestLoadTokenCorruptBlob(t *testing.T) {
	store, mr := newTestStore(t)

	mr.Set("fgtest:ct:ctx-1", "not-a-token-blob")

	_, err := store.LoadToken(context.Background(), "ctx-1")
	if !errors.Is(err, ErrTokenCorrupt) {
		t.Fatalf("expected ErrTokenCorrupt, got %v", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	if err := store.SaveToken(context.Background(), "ctx-1", Token{Value: "tok"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.LoadToken(context.Background(), "ctx-1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
