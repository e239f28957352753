package collab

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/choko510/jirotter-sub000/internal/middleware"
	"github.com/choko510/jirotter-sub000/internal/model"
	"github.com/choko510/jirotter-sub000/internal/protocol"
	"github.com/choko510/jirotter-sub000/internal/queue"
	"github.com/choko510/jirotter-sub000/internal/repository"
	queue_publisher "github.com/choko510/jirotter-sub000/internal/service"
)

// Hub owns the websocket sessions of the shop editor and dispatches the
// lock/update protocol. The lock store is the source of truth for row
// ownership; the hub only mirrors its decisions out to clients.
type Hub struct {
	shops   *repository.ShopRepo
	locks   LockStore
	lockTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewHub(shops *repository.ShopRepo, locks LockStore, lockTTL time.Duration) *Hub {
	if lockTTL <= 0 {
		lockTTL = 90 * time.Second
	}
	return &Hub{
		shops:    shops,
		locks:    locks,
		lockTTL:  lockTTL,
		sessions: make(map[string]*Session),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the editor authenticates with a token, not a cookie, so cross-origin
	// handshakes carry no ambient credentials
	CheckOrigin: func(*http.Request) bool { return true },
}

// HandleWS returns the echo handler for /ws/shop-editor. Browsers cannot set
// headers on a websocket handshake, so the access token is accepted from the
// ?token= query parameter as well as the Authorization header. Only active
// admins may join.
func (h *Hub) HandleWS(secret string) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.QueryParam("token")
		if raw == "" {
			auth := c.Request().Header.Get("Authorization")
			if len(auth) > 7 && auth[:7] == "Bearer " {
				raw = auth[7:]
			}
		}
		claims, err := middleware.ParseAccessToken(secret, raw)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		isAdmin, _ := claims["is_admin"].(bool)
		if !isAdmin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin required"})
		}
		userID := uint64(0)
		if sub, ok := claims["sub"].(float64); ok {
			userID = uint64(sub)
		}
		username, _ := claims["username"].(string)

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}

		s := newSession(h, conn, userID, username)
		h.register(s)

		go s.writePump()
		h.sendTo(s, protocol.TypeConnected, struct{}{})
		s.readPump()
		return nil
	}
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	log.Printf("collab: session %s connected (user=%s)", s.ID, s.Username)
}

// unregister drops the session and frees every row lock it still holds,
// broadcasting the releases so other editors see the rows open up.
func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	s.shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, shopID := range s.heldShops() {
		if released, err := h.locks.Release(ctx, shopID, s.ID); err == nil && released {
			h.broadcast(protocol.TypeLockReleased, protocol.LockReleased{ShopID: shopID})
		}
	}
	log.Printf("collab: session %s disconnected", s.ID)
}

// dispatch routes one inbound frame. Malformed frames and unknown types are
// dropped; the protocol never lets a bad payload take the hub down.
func (h *Hub) dispatch(s *Session, raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		log.Printf("collab: dropping malformed frame from %s: %v", s.ID, err)
		return
	}
	switch msg.Type {
	case protocol.TypeLockRequest:
		h.handleLockRequest(s, msg)
	case protocol.TypeUpdateField:
		h.handleUpdateField(s, msg)
	case protocol.TypeUnlockRequest:
		h.handleUnlockRequest(s, msg)
	default:
		log.Printf("collab: ignoring frame type %q from %s", msg.Type, s.ID)
	}
}

func (h *Hub) handleLockRequest(s *Session, msg protocol.Message) {
	var req protocol.LockRequest
	if err := msg.DecodeData(&req); err != nil || req.ShopID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	holder := Holder{
		UserID:    strconv.FormatUint(s.UserID, 10),
		UserName:  s.Username,
		SessionID: s.ID,
	}
	cur, acquired, err := h.locks.TryAcquire(ctx, req.ShopID, holder, h.lockTTL)
	if err != nil {
		log.Printf("collab: lock acquire failed for shop %d: %v", req.ShopID, err)
		h.sendTo(s, protocol.TypeError, protocol.ErrorPayload{Detail: "lock store unavailable"})
		return
	}
	if !acquired {
		h.sendTo(s, protocol.TypeLockFailed, protocol.LockFailed{
			ShopID:       req.ShopID,
			LockedBy:     cur.UserID,
			LockedByName: cur.UserName,
		})
		return
	}
	s.trackHeld(req.ShopID)
	h.broadcast(protocol.TypeLockAcquired, protocol.LockAcquired{
		ShopID:   req.ShopID,
		UserID:   holder.UserID,
		UserName: holder.UserName,
	})
}

func (h *Hub) handleUpdateField(s *Session, msg protocol.Message) {
	var req protocol.UpdateField
	if err := msg.DecodeData(&req); err != nil || req.ShopID == 0 {
		return
	}
	value, err := NormalizeFieldValue(req.Field, req.Value)
	if err != nil {
		h.sendTo(s, protocol.TypeUpdateRejected, protocol.UpdateRejected{
			ShopID: req.ShopID,
			Field:  req.Field,
			Reason: err.Error(),
		})
		return
	}

	// the row lock is advisory: an update without one is applied but the
	// sender is told its lock is gone so the UI can resync
	if !s.holds(req.ShopID) {
		h.sendTo(s, protocol.TypeLockMissing, protocol.LockMissing{ShopID: req.ShopID})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	before, err := h.shops.GetByID(ctx, req.ShopID)
	if err != nil {
		h.sendTo(s, protocol.TypeUpdateRejected, protocol.UpdateRejected{
			ShopID: req.ShopID,
			Field:  req.Field,
			Reason: "shop not found",
		})
		return
	}
	updated, err := h.shops.UpdateField(ctx, req.ShopID, req.Field, value)
	if err != nil {
		log.Printf("collab: update shop %d field %s failed: %v", req.ShopID, req.Field, err)
		h.sendTo(s, protocol.TypeError, protocol.ErrorPayload{Detail: "update failed"})
		return
	}

	h.broadcast(protocol.TypeFieldUpdated, protocol.FieldUpdated{
		ShopID:        req.ShopID,
		Field:         req.Field,
		Value:         value,
		UpdatedByName: s.Username,
	})

	event := queue.FieldUpdatedEvent{
		ShopID:     req.ShopID,
		Field:      req.Field,
		OldValue:   model.ShopFieldString(before, req.Field),
		NewValue:   model.FieldValueString(value),
		EditorID:   s.UserID,
		EditorName: s.Username,
		UpdatedAt:  updated.UpdatedAt.UTC().Format(time.RFC3339),
	}
	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pcancel()
		_ = queue_publisher.PublishFieldUpdated(pctx, event)
	}()
}

func (h *Hub) handleUnlockRequest(s *Session, msg protocol.Message) {
	var req protocol.UnlockRequest
	if err := msg.DecodeData(&req); err != nil || req.ShopID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	released, err := h.locks.Release(ctx, req.ShopID, s.ID)
	if err != nil {
		log.Printf("collab: lock release failed for shop %d: %v", req.ShopID, err)
		return
	}
	s.untrackHeld(req.ShopID)
	if released {
		h.broadcast(protocol.TypeLockReleased, protocol.LockReleased{ShopID: req.ShopID})
	}
}

// refreshHeld extends the TTL of every lock the session holds and confirms
// each with a heartbeat. A refresh that fails means the lock already
// expired; everyone is told it is gone.
func (h *Hub) refreshHeld(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, shopID := range s.heldShops() {
		ok, err := h.locks.Refresh(ctx, shopID, s.ID, h.lockTTL)
		if err != nil {
			log.Printf("collab: lock refresh failed for shop %d: %v", shopID, err)
			continue
		}
		if !ok {
			s.untrackHeld(shopID)
			h.broadcast(protocol.TypeLockReleased, protocol.LockReleased{ShopID: shopID})
			continue
		}
		h.sendTo(s, protocol.TypeLockHeartbeat, protocol.LockHeartbeat{ShopID: shopID})
	}
}

// NotifyFieldUpdated broadcasts a field change that was committed outside
// the channel (the REST fallback path), so connected editors converge on
// the same state as the database.
func (h *Hub) NotifyFieldUpdated(shopID int64, field string, value any, updatedBy string) {
	h.broadcast(protocol.TypeFieldUpdated, protocol.FieldUpdated{
		ShopID:        shopID,
		Field:         field,
		Value:         value,
		UpdatedByName: updatedBy,
	})
}

func (h *Hub) broadcast(typ string, payload any) {
	frame, err := protocol.Encode(typ, payload)
	if err != nil {
		log.Printf("collab: encode %s failed: %v", typ, err)
		return
	}
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	for _, s := range targets {
		s.enqueue(frame)
	}
}

func (h *Hub) sendTo(s *Session, typ string, payload any) {
	frame, err := protocol.Encode(typ, payload)
	if err != nil {
		log.Printf("collab: encode %s failed: %v", typ, err)
		return
	}
	s.enqueue(frame)
}

