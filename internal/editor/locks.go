package editor

import "sync"

// Holder names the user currently holding a row lock.
type Holder struct {
	UserID string
	Name   string
}

// LockTable mirrors the server's row-lock state. Only the dispatch of
// lock_acquired, lock_failed and lock_released events writes to it; the
// edit controller never does, so a denied request cannot leave a phantom
// lock behind. The map key guarantees at most one holder per shop.
type LockTable struct {
	mu sync.Mutex
	m  map[int64]Holder
}

func NewLockTable() *LockTable {
	return &LockTable{m: make(map[int64]Holder)}
}

// Set records the holder announced by the server, replacing any previous
// entry for the shop.
func (t *LockTable) Set(shopID int64, h Holder) {
	t.mu.Lock()
	t.m[shopID] = h
	t.mu.Unlock()
}

// Remove drops the lock entry for the shop, if any.
func (t *LockTable) Remove(shopID int64) {
	t.mu.Lock()
	delete(t.m, shopID)
	t.mu.Unlock()
}

// Lookup returns the current holder and whether the shop is locked.
func (t *LockTable) Lookup(shopID int64) (Holder, bool) {
	t.mu.Lock()
	h, ok := t.m[shopID]
	t.mu.Unlock()
	return h, ok
}

// Len reports how many rows are currently locked.
func (t *LockTable) Len() int {
	t.mu.Lock()
	n := len(t.m)
	t.mu.Unlock()
	return n
}
