package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/choko510/jirotter-sub000/internal/model"
	"github.com/choko510/jirotter-sub000/internal/protocol"
)

// Channel is the outbound half of the realtime connection. Send is a no-op
// while disconnected; callers check Connected to choose the REST fallback.
type Channel interface {
	Connected() bool
	Send(typ string, payload any)
}

// restAPI is what the editor needs from the HTTP side. *APIClient satisfies
// it; tests substitute a recording fake.
type restAPI interface {
	AuthStatus(ctx context.Context) (AuthStatus, error)
	ListShops(ctx context.Context, limit, offset int) ([]model.Shop, error)
	PatchShop(ctx context.Context, id int64, field string, value any) (model.Shop, error)
	ShopHistory(ctx context.Context, id int64, limit int) ([]model.ShopHistory, error)
}

// EditSession is one in-progress cell edit. At most one exists at a time;
// starting a second edit is rejected until the first commits or cancels.
type EditSession struct {
	ShopID   int64
	Field    string
	Original string
}

const (
	listLimit     = 200
	flashDuration = 1200 * time.Millisecond
	historyLimit  = 100
)

var (
	ErrNotAuthenticated = errors.New("editor: not authenticated")
	ErrNotAdmin         = errors.New("editor: admin privileges required")
	ErrEditInProgress   = errors.New("editor: another edit is in progress")
	ErrRowLocked        = errors.New("editor: row is locked by another editor")
	ErrNoEdit           = errors.New("editor: no edit in progress")
	ErrUnknownShop      = errors.New("editor: unknown shop")
	ErrFieldNotEditable = errors.New("editor: field is not editable")
)

// Editor holds the client-side state of the collaborative shop table: the
// cached shop rows, the remote lock table, the single in-progress edit and
// the short-lived highlight marks for remotely updated rows.
//
// All exported methods are safe for concurrent use; the websocket read loop
// calls HandleFrame while the UI loop calls the rest.
type Editor struct {
	api    restAPI
	ch     Channel
	notify Notifier
	now    func() time.Time

	mu       sync.Mutex
	userID   string
	username string
	shops    []model.Shop
	index    map[int64]int
	locks    *LockTable
	session  *EditSession
	flashes  map[int64]time.Time

	historyOpen bool
	historyShop int64
}

// New builds an Editor over an API client and an outbound channel. The
// channel may be nil; the editor then behaves as permanently disconnected
// and every commit goes through REST.
func New(api restAPI, ch Channel, notify Notifier) *Editor {
	if notify == nil {
		notify = LogNotifier{}
	}
	return &Editor{
		api:     api,
		ch:      ch,
		notify:  notify,
		now:     time.Now,
		index:   map[int64]int{},
		locks:   NewLockTable(),
		flashes: map[int64]time.Time{},
	}
}

// SetChannel installs the live channel after construction, for wiring where
// the connection's frame handler needs the editor first.
func (e *Editor) SetChannel(ch Channel) {
	e.mu.Lock()
	e.ch = ch
	e.mu.Unlock()
}

// Init verifies the caller is an authenticated admin and loads the shop
// table. It must succeed before any other operation is meaningful.
func (e *Editor) Init(ctx context.Context) error {
	st, err := e.api.AuthStatus(ctx)
	if err != nil {
		return fmt.Errorf("auth status: %w", err)
	}
	if !st.Authenticated {
		return ErrNotAuthenticated
	}
	if !st.IsAdmin {
		return ErrNotAdmin
	}
	shops, err := e.api.ListShops(ctx, listLimit, 0)
	if err != nil {
		return fmt.Errorf("list shops: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.userID = fmt.Sprintf("%d", st.UserID)
	e.username = st.Username
	e.shops = shops
	e.index = make(map[int64]int, len(shops))
	for i, s := range shops {
		e.index[s.ID] = i
	}
	return nil
}

// Reload refetches the shop list, used after a reconnect to resync state
// that may have changed while offline. Locks and flashes are cleared; the
// server rebroadcasts live locks as editors touch them.
func (e *Editor) Reload(ctx context.Context) error {
	shops, err := e.api.ListShops(ctx, listLimit, 0)
	if err != nil {
		return fmt.Errorf("list shops: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shops = shops
	e.index = make(map[int64]int, len(shops))
	for i, s := range shops {
		e.index[s.ID] = i
	}
	e.locks = NewLockTable()
	e.flashes = map[int64]time.Time{}
	return nil
}

// Shop returns a copy of the cached row.
func (e *Editor) Shop(id int64) (model.Shop, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.index[id]
	if !ok {
		return model.Shop{}, false
	}
	return e.shops[i], true
}

// Session returns the in-progress edit, if any.
func (e *Editor) Session() (EditSession, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return EditSession{}, false
	}
	return *e.session, true
}

// UserID reports the identity Init established, in wire form.
func (e *Editor) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// HandleFrame dispatches one inbound websocket frame. Unknown types and
// malformed payloads are dropped; the protocol treats them as noise.
func (e *Editor) HandleFrame(raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		log.Printf("editor: drop malformed frame: %v", err)
		return
	}
	switch msg.Type {
	case protocol.TypeConnected:
		// informational, identity already established over REST
	case protocol.TypeLockAcquired:
		var p protocol.LockAcquired
		if msg.DecodeData(&p) == nil {
			e.onLockAcquired(p)
		}
	case protocol.TypeLockFailed:
		var p protocol.LockFailed
		if msg.DecodeData(&p) == nil {
			e.onLockFailed(p)
		}
	case protocol.TypeLockReleased:
		var p protocol.LockReleased
		if msg.DecodeData(&p) == nil {
			e.locks.Remove(p.ShopID)
		}
	case protocol.TypeFieldUpdated:
		var p protocol.FieldUpdated
		if msg.DecodeData(&p) == nil {
			e.onFieldUpdated(p)
		}
	case protocol.TypeLockHeartbeat, protocol.TypeLockMissing:
		// advisory; no local state change
	case protocol.TypeUpdateRejected:
		var p protocol.UpdateRejected
		if msg.DecodeData(&p) == nil {
			e.notify.Error(fmt.Sprintf("更新が拒否されました: %s (%s)", p.Field, p.Reason))
		}
	case protocol.TypeError:
		var p protocol.ErrorPayload
		if msg.DecodeData(&p) == nil && p.Detail != "" {
			e.notify.Error(p.Detail)
		}
	default:
		log.Printf("editor: drop frame type %q", msg.Type)
	}
}

func (e *Editor) onLockAcquired(p protocol.LockAcquired) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locks.Set(p.ShopID, Holder{UserID: p.UserID, Name: p.UserName})
}

// onLockFailed records the holder and force-cancels a local edit of the same
// row: the server has told us someone else owns it, so any input the user
// managed to open in the race window is abandoned.
func (e *Editor) onLockFailed(p protocol.LockFailed) {
	e.mu.Lock()
	cancelled := false
	e.locks.Set(p.ShopID, Holder{UserID: p.LockedBy, Name: p.LockedByName})
	if e.session != nil && e.session.ShopID == p.ShopID {
		e.session = nil
		cancelled = true
	}
	name := p.LockedByName
	e.mu.Unlock()

	if cancelled {
		e.notify.Info(fmt.Sprintf("%s が編集中のため、編集をキャンセルしました", name))
	} else {
		e.notify.Info(fmt.Sprintf("%s が編集中です", name))
	}
}

func (e *Editor) onFieldUpdated(p protocol.FieldUpdated) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.index[p.ShopID]
	if !ok {
		return
	}
	applyField(&e.shops[i], p.Field, p.Value)
	if p.Field != "updated_at" {
		e.shops[i].UpdatedAt = e.now().UTC()
	}
	if p.UpdatedByName != "" {
		e.shops[i].UpdatedBy = p.UpdatedByName
	}
	e.flashes[p.ShopID] = e.now().Add(flashDuration)
}

// applyField writes a wire value into the cached row. Unknown fields are
// ignored rather than erroring; the server is the authority on what it sends.
func applyField(s *model.Shop, field string, v any) {
	switch field {
	case model.FieldName:
		s.Name = model.FieldValueString(v)
	case model.FieldAddress:
		s.Address = model.FieldValueString(v)
	case model.FieldBusinessHours:
		s.BusinessHours = model.FieldValueString(v)
	case model.FieldClosedDays:
		s.ClosedDays = model.FieldValueString(v)
	case model.FieldSeats:
		s.Seats = model.FieldValueString(v)
	case model.FieldWaitTime:
		switch n := v.(type) {
		case nil:
			s.WaitTime = nil
		case float64:
			w := int(n)
			s.WaitTime = &w
		case int:
			w := n
			s.WaitTime = &w
		}
	}
}
