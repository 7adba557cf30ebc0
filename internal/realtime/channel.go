// Package realtime keeps one websocket subscription per concern. Events are
// wake-up signals only: handlers re-fetch truth over REST, they never apply a
// payload as state, because socket delivery order and completeness are not
// guaranteed.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mesaclient/internal/session"
)

const (
	defaultReconnectAttempts = 4
	defaultReconnectDelay    = time.Second
	dialTimeout              = 10 * time.Second
)

// Event is the wire frame, shared with the backend's push hub.
type Event struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Handler func(payload json.RawMessage)

type Config struct {
	URL        string
	Session    session.Session
	JoinEvent  string
	LeaveEvent string
	Room       string

	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// OnError reports connection faults to the UI layer. Never fatal to the
	// rest of the app.
	OnError func(error)
}

type Channel struct {
	cfg Config

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	gen       uint64
	handlers  map[string]Handler

	writeMu sync.Mutex
}

func NewChannel(cfg Config) *Channel {
	return &Channel{cfg: cfg, handlers: make(map[string]Handler)}
}

// On registers the handler for a named event. One slot per event name: a
// second registration replaces, it never stacks, so a repeated connect path
// cannot double-deliver.
func (c *Channel) On(event string, h Handler) {
	c.mu.Lock()
	c.handlers[event] = h
	c.mu.Unlock()
}

func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect dials, joins the room, and starts the read loop. A connect while
// already connected for the room is suppressed.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("realtime: channel closed")
	}
	if c.connected {
		c.mu.Unlock()
		log.Printf("[realtime] connect suppressed, already joined room %q", c.cfg.Room)
		return nil
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		if c.cfg.OnError != nil {
			c.cfg.OnError(err)
		}
		return err
	}

	c.mu.Lock()
	if c.closed || c.connected {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.connected = true
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if err := c.writeEvent(conn, Event{Event: c.cfg.JoinEvent, Payload: roomPayload(c.cfg.Room)}); err != nil {
		c.dropConn(gen)
		conn.Close()
		if c.cfg.OnError != nil {
			c.cfg.OnError(err)
		}
		return err
	}

	go c.readLoop(gen, conn)
	return nil
}

// Emit sends a named event over the live connection.
func (c *Channel) Emit(event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return errors.New("realtime: not connected")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.writeEvent(conn, Event{Event: event, Payload: raw})
}

// Close leaves the room, then disconnects, then forgets all handlers. The
// leave-before-disconnect order prevents ghost room membership on remount.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	conn := c.conn
	connected := c.connected
	c.conn = nil
	c.connected = false
	c.handlers = make(map[string]Handler)
	c.mu.Unlock()

	if conn != nil {
		if connected && c.cfg.LeaveEvent != "" {
			_ = c.writeEvent(conn, Event{Event: c.cfg.LeaveEvent, Payload: roomPayload(c.cfg.Room)})
		}
		conn.Close()
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	// Auth rides the websocket handshake; the token is read fresh per dial.
	if token := strings.TrimSpace(c.cfg.Session.Token()); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, header)
	return conn, err
}

func (c *Channel) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			conn.Close()
			if !c.stillCurrent(gen) {
				return
			}
			next := c.reconnect(gen)
			if next == nil {
				return
			}
			conn = next
			continue
		}
		if !c.stillCurrent(gen) {
			conn.Close()
			return
		}
		c.dispatch(ev)
	}
}

func (c *Channel) dispatch(ev Event) {
	c.mu.Lock()
	h := c.handlers[ev.Event]
	c.mu.Unlock()
	if h != nil {
		h(ev.Payload)
	}
}

// reconnect redials a bounded number of times at a fixed delay. Past the
// bound the channel stays dead until the owning screen remounts; the user
// falls back to pull-to-refresh instead of draining battery on retries.
func (c *Channel) reconnect(gen uint64) *websocket.Conn {
	attempts := c.cfg.ReconnectAttempts
	if attempts <= 0 {
		attempts = defaultReconnectAttempts
	}
	delay := c.cfg.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}

	c.dropConn(gen)

	for i := 1; i <= attempts; i++ {
		time.Sleep(delay)
		if !c.stillCurrent(gen) {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			log.Printf("[realtime] reconnect %d/%d for room %q: %v", i, attempts, c.cfg.Room, err)
			continue
		}

		c.mu.Lock()
		if c.closed || c.gen != gen {
			c.mu.Unlock()
			conn.Close()
			return nil
		}
		c.conn = conn
		c.connected = true
		c.mu.Unlock()

		if err := c.writeEvent(conn, Event{Event: c.cfg.JoinEvent, Payload: roomPayload(c.cfg.Room)}); err != nil {
			c.dropConn(gen)
			conn.Close()
			continue
		}
		return conn
	}

	if c.cfg.OnError != nil {
		c.cfg.OnError(fmt.Errorf("realtime: room %q dead after %d reconnect attempts", c.cfg.Room, attempts))
	}
	return nil
}

func (c *Channel) dropConn(gen uint64) {
	c.mu.Lock()
	if c.gen == gen {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()
}

func (c *Channel) stillCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.gen == gen
}

func (c *Channel) writeEvent(conn *websocket.Conn, ev Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(ev)
}

func roomPayload(room string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"room": room})
	return raw
}
