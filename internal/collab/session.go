package collab

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	maxFrame   = 4096
	sendBuffer = 16
)

// Session is one websocket connection of an authenticated admin. A user may
// hold several sessions (tabs); locks belong to the session, not the user.
type Session struct {
	ID       string
	UserID   uint64
	Username string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	held   map[int64]struct{} // shop ids locked by this session
	closed bool               // set before send is closed; enqueue checks it
}

func newSession(hub *Hub, conn *websocket.Conn, userID uint64, username string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		held:     make(map[int64]struct{}),
	}
}

// enqueue hands a frame to the write pump without blocking the hub. A full
// buffer means a stalled reader; the frame is dropped and the stall logged,
// matching the fire-and-forget contract of the channel. A broadcaster may
// hold a sessions snapshot taken before a concurrent disconnect finished,
// so frames for a torn-down session are discarded here rather than sent.
func (s *Session) enqueue(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- frame:
	default:
		log.Printf("collab: session %s send buffer full, dropping frame", s.ID)
	}
}

// shutdown closes the send channel exactly once. The closed flag and the
// close happen under the same mutex enqueue takes, so no send can race the
// close.
func (s *Session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

func (s *Session) trackHeld(shopID int64) {
	s.mu.Lock()
	s.held[shopID] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) untrackHeld(shopID int64) {
	s.mu.Lock()
	delete(s.held, shopID)
	s.mu.Unlock()
}

func (s *Session) holds(shopID int64) bool {
	s.mu.Lock()
	_, ok := s.held[shopID]
	s.mu.Unlock()
	return ok
}

func (s *Session) heldShops() []int64 {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.held))
	for id := range s.held {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	return ids
}

// readPump consumes inbound frames until the connection drops, then tears
// the session down. Frames that fail to decode are dropped inside dispatch.
func (s *Session) readPump() {
	defer func() {
		s.hub.unregister(s)
		_ = s.conn.Close()
	}()
	s.conn.SetReadLimit(maxFrame)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.hub.dispatch(s, raw)
	}
}

// writePump owns all writes to the connection: queued frames, pings, and
// the periodic lock refresh that keeps this session's row locks alive.
func (s *Session) writePump() {
	ping := time.NewTicker(pingPeriod)
	refresh := time.NewTicker(s.hub.lockTTL / 3)
	defer func() {
		ping.Stop()
		refresh.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-refresh.C:
			s.hub.refreshHeld(s)
		}
	}
}
