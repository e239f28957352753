// Package collab implements the shop-editor collaboration hub: websocket
// sessions, the row-lock store and the lock/update protocol dispatch.
package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Holder identifies who owns a row lock. SessionID ties the lock to one
// websocket connection so a reconnecting user cannot fight their own stale
// session over a row.
type Holder struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	SessionID string `json:"session_id"`
}

// LockStore is the server-side source of truth for row locks. At most one
// holder exists per shop id; clients never invent locks locally, they only
// mirror the events derived from this store.
type LockStore interface {
	// TryAcquire takes the lock for h or reports the current holder. A
	// holder re-acquiring its own lock refreshes the TTL and succeeds.
	TryAcquire(ctx context.Context, shopID int64, h Holder, ttl time.Duration) (Holder, bool, error)
	// Release frees the lock if the session holds it.
	Release(ctx context.Context, shopID int64, sessionID string) (bool, error)
	// Refresh extends the TTL if the session holds the lock.
	Refresh(ctx context.Context, shopID int64, sessionID string, ttl time.Duration) (bool, error)
}

// ---- in-memory store ----

type memLock struct {
	holder    Holder
	expiresAt time.Time
}

// MemoryLockStore is the single-process fallback used when Redis is not
// reachable at startup. Expiry is checked lazily on access.
type MemoryLockStore struct {
	mu    sync.Mutex
	locks map[int64]memLock
}

func NewMemoryLockStore() *MemoryLockStore {
	return &MemoryLockStore{locks: make(map[int64]memLock)}
}

func (s *MemoryLockStore) TryAcquire(_ context.Context, shopID int64, h Holder, ttl time.Duration) (Holder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if cur, ok := s.locks[shopID]; ok && cur.expiresAt.After(now) && cur.holder.SessionID != h.SessionID {
		return cur.holder, false, nil
	}
	s.locks[shopID] = memLock{holder: h, expiresAt: now.Add(ttl)}
	return h, true, nil
}

func (s *MemoryLockStore) Release(_ context.Context, shopID int64, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.locks[shopID]
	if !ok || cur.holder.SessionID != sessionID {
		return false, nil
	}
	delete(s.locks, shopID)
	return true, nil
}

func (s *MemoryLockStore) Refresh(_ context.Context, shopID int64, sessionID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.locks[shopID]
	if !ok || cur.holder.SessionID != sessionID || cur.expiresAt.Before(time.Now()) {
		return false, nil
	}
	cur.expiresAt = time.Now().Add(ttl)
	s.locks[shopID] = cur
	return true, nil
}

// ---- redis store ----

// RedisLockStore keeps row locks in Redis so multiple server instances see
// the same holders. Keys carry a TTL; the hub refreshes them while the
// holding session stays alive, so a crashed client frees its rows within
// one TTL.
type RedisLockStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLockStore(rdb *redis.Client) *RedisLockStore {
	return &RedisLockStore{rdb: rdb, prefix: "shopedit:lock:"}
}

func (s *RedisLockStore) key(shopID int64) string {
	return fmt.Sprintf("%s%d", s.prefix, shopID)
}

// releaseScript deletes the key only when the stored session id matches.
var releaseScript = redis.NewScript(`
    local v = redis.call('GET', KEYS[1])
    if not v then return 0 end
    local h = cjson.decode(v)
    if h['session_id'] ~= ARGV[1] then return 0 end
    redis.call('DEL', KEYS[1])
    return 1
`)

// refreshScript extends the TTL only when the stored session id matches.
var refreshScript = redis.NewScript(`
    local v = redis.call('GET', KEYS[1])
    if not v then return 0 end
    local h = cjson.decode(v)
    if h['session_id'] ~= ARGV[1] then return 0 end
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
    return 1
`)

func (s *RedisLockStore) TryAcquire(ctx context.Context, shopID int64, h Holder, ttl time.Duration) (Holder, bool, error) {
	val, err := json.Marshal(h)
	if err != nil {
		return Holder{}, false, err
	}
	ok, err := s.rdb.SetNX(ctx, s.key(shopID), val, ttl).Result()
	if err != nil {
		return Holder{}, false, err
	}
	if ok {
		return h, true, nil
	}
	raw, err := s.rdb.Get(ctx, s.key(shopID)).Bytes()
	if err == redis.Nil {
		// holder expired between SETNX and GET; retry once
		ok, err := s.rdb.SetNX(ctx, s.key(shopID), val, ttl).Result()
		if err != nil || !ok {
			return Holder{}, false, err
		}
		return h, true, nil
	}
	if err != nil {
		return Holder{}, false, err
	}
	var cur Holder
	if err := json.Unmarshal(raw, &cur); err != nil {
		return Holder{}, false, err
	}
	if cur.SessionID == h.SessionID {
		_, _ = s.Refresh(ctx, shopID, h.SessionID, ttl)
		return h, true, nil
	}
	return cur, false, nil
}

func (s *RedisLockStore) Release(ctx context.Context, shopID int64, sessionID string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.rdb, []string{s.key(shopID)}, sessionID).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisLockStore) Refresh(ctx context.Context, shopID int64, sessionID string, ttl time.Duration) (bool, error) {
	n, err := refreshScript.Run(ctx, s.rdb, []string{s.key(shopID)}, sessionID, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
