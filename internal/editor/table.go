package editor

import (
	"strconv"
	"strings"

	"github.com/choko510/jirotter-sub000/internal/model"
)

// LockClass describes how a row should render and respond to clicks.
type LockClass string

const (
	// LockFree rows are editable by the local user.
	LockFree LockClass = "free"
	// LockSelf rows are locked by the local user's own edit.
	LockSelf LockClass = "self"
	// LockOther rows are locked by someone else and are not interactive.
	LockOther LockClass = "other"
)

// RowView is the render-ready projection of one shop row: the cached record
// plus lock ownership, the holder's display name when locked by another
// editor, and whether the row is inside its post-update highlight window.
type RowView struct {
	Shop     model.Shop
	Lock     LockClass
	LockedBy string
	Editing  bool
	Flash    bool
}

// Rows projects the cached table for rendering, optionally filtered. The
// filter matches case-insensitively against name and address; empty keeps
// every row. Expired flashes are pruned as a side effect.
func (e *Editor) Rows(filter string) []RowView {
	e.mu.Lock()
	defer e.mu.Unlock()

	needle := strings.ToLower(strings.TrimSpace(filter))
	now := e.now()
	out := make([]RowView, 0, len(e.shops))
	for _, s := range e.shops {
		if needle != "" &&
			!strings.Contains(strings.ToLower(s.Name), needle) &&
			!strings.Contains(strings.ToLower(s.Address), needle) {
			continue
		}
		rv := RowView{Shop: s, Lock: LockFree}
		if h, ok := e.locks.Lookup(s.ID); ok {
			if h.UserID == e.userID {
				rv.Lock = LockSelf
			} else {
				rv.Lock = LockOther
				rv.LockedBy = h.Name
			}
		}
		if e.session != nil && e.session.ShopID == s.ID {
			rv.Editing = true
			if rv.Lock == LockFree {
				rv.Lock = LockSelf
			}
		}
		if until, ok := e.flashes[s.ID]; ok {
			if now.Before(until) {
				rv.Flash = true
			} else {
				delete(e.flashes, s.ID)
			}
		}
		out = append(out, rv)
	}
	return out
}

// FormatWaitTime renders the wait-time cell: digits with a minute suffix,
// or a dash when unset.
func FormatWaitTime(w *int) string {
	if w == nil {
		return "-"
	}
	return strconv.Itoa(*w) + "分"
}
