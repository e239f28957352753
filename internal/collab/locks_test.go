package collab

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestMemoryLockStoreSingleHolder(t *testing.T) {
	s := NewMemoryLockStore()
	ctx := context.Background()
	ttl := time.Minute

	a := Holder{UserID: "1", UserName: "staff", SessionID: "sess-a"}
	b := Holder{UserID: "2", UserName: "yamada", SessionID: "sess-b"}

	got, ok, err := s.TryAcquire(ctx, 1, a, ttl)
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, true)
	assert.Equal(t, got, a)

	// the second contender sees the real holder, not itself
	got, ok, err = s.TryAcquire(ctx, 1, b, ttl)
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, false)
	assert.Equal(t, got, a)

	// a different row is independent
	_, ok, err = s.TryAcquire(ctx, 2, b, ttl)
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, true)
}

func TestMemoryLockStoreReacquireOwnLock(t *testing.T) {
	s := NewMemoryLockStore()
	ctx := context.Background()
	a := Holder{UserID: "1", UserName: "staff", SessionID: "sess-a"}

	_, ok, _ := s.TryAcquire(ctx, 1, a, time.Minute)
	assert.Equal(t, ok, true)

	_, ok, _ = s.TryAcquire(ctx, 1, a, time.Minute)
	assert.Equal(t, ok, true)
}

func TestMemoryLockStoreRelease(t *testing.T) {
	s := NewMemoryLockStore()
	ctx := context.Background()
	a := Holder{UserID: "1", SessionID: "sess-a"}
	b := Holder{UserID: "2", SessionID: "sess-b"}

	s.TryAcquire(ctx, 1, a, time.Minute)

	// a session that does not hold the lock cannot free it
	ok, err := s.Release(ctx, 1, "sess-b")
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, false)

	ok, err = s.Release(ctx, 1, "sess-a")
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, true)

	_, ok, _ = s.TryAcquire(ctx, 1, b, time.Minute)
	assert.Equal(t, ok, true)
}

func TestMemoryLockStoreExpiry(t *testing.T) {
	s := NewMemoryLockStore()
	ctx := context.Background()
	a := Holder{UserID: "1", SessionID: "sess-a"}
	b := Holder{UserID: "2", SessionID: "sess-b"}

	s.TryAcquire(ctx, 1, a, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok, err := s.TryAcquire(ctx, 1, b, time.Minute)
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, true)

	// the expired session cannot refresh what it lost
	ok, err = s.Refresh(ctx, 1, "sess-a", time.Minute)
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, false)
}

func TestMemoryLockStoreRefresh(t *testing.T) {
	s := NewMemoryLockStore()
	ctx := context.Background()
	a := Holder{UserID: "1", SessionID: "sess-a"}

	s.TryAcquire(ctx, 1, a, 50*time.Millisecond)

	ok, err := s.Refresh(ctx, 1, "sess-a", time.Minute)
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, true)

	time.Sleep(60 * time.Millisecond)
	b := Holder{UserID: "2", SessionID: "sess-b"}
	got, ok, _ := s.TryAcquire(ctx, 1, b, time.Minute)
	assert.Equal(t, ok, false)
	assert.Equal(t, got.SessionID, "sess-a")
}
