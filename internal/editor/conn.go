package editor

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/choko510/jirotter-sub000/internal/protocol"
)

const (
	reconnectDelay   = 3 * time.Second
	dialTimeout      = 10 * time.Second
	connWriteTimeout = 5 * time.Second
)

// FrameHandler consumes inbound frames; the Editor's HandleFrame satisfies it.
type FrameHandler func(raw []byte)

// Conn maintains the websocket to the shop-editor hub. On any failure it
// drops the socket and redials on a fixed delay, forever, until the context
// is cancelled. Send silently drops frames while disconnected; the caller
// checks Connected first and falls back to REST.
type Conn struct {
	url     string
	handler FrameHandler
	notify  Notifier

	mu        sync.Mutex
	ws        *websocket.Conn
	connected bool
}

// WSURL derives the websocket endpoint from the HTTP base URL: the scheme
// flips to ws(s) and the hub path plus token query is appended.
func WSURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("base url must be http(s), got %q", u.Scheme)
	}
	u.Path = "/ws/shop-editor"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func NewConn(wsURL string, handler FrameHandler, notify Notifier) *Conn {
	if notify == nil {
		notify = LogNotifier{}
	}
	return &Conn{url: wsURL, handler: handler, notify: notify}
}

// Run dials and reads until ctx is done. onConnect fires after each
// successful (re)dial so the owner can resync state; it may be nil.
func (c *Conn) Run(ctx context.Context, onConnect func()) {
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		if !first {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
		first = false

		dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
		ws, _, err := dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Printf("editor: dial: %v", err)
			c.notify.Error("接続できません。再接続します...")
			continue
		}

		c.setConn(ws)
		if onConnect != nil {
			onConnect()
		}
		c.readLoop(ctx, ws)
		c.setConn(nil)
		c.notify.Error("接続が切れました。再接続します...")
	}
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) {
	defer ws.Close()
	go func() {
		<-ctx.Done()
		ws.Close()
	}()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("editor: read: %v", err)
			}
			return
		}
		if c.handler != nil {
			c.handler(raw)
		}
	}
}

func (c *Conn) setConn(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.connected = ws != nil
	c.mu.Unlock()
}

// Connected reports whether a live socket is up right now.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send encodes and writes one frame. While disconnected it is a no-op; a
// write error tears the socket down and lets Run redial.
func (c *Conn) Send(typ string, payload any) {
	raw, err := protocol.Encode(typ, payload)
	if err != nil {
		log.Printf("editor: encode %s: %v", typ, err)
		return
	}
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return
	}
	ws.SetWriteDeadline(time.Now().Add(connWriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		log.Printf("editor: write %s: %v", typ, err)
		ws.Close()
	}
}
