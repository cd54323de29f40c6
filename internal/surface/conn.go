package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrClosed    = errors.New("surface connection closed")
	ErrQueueFull = errors.New("surface send queue full")
)

// ConnOptions tunes a websocket surface connection.
type ConnOptions struct {
	ReadLimit  int64
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
	// SendQueue is the number of updates buffered for a slow peer before
	// Send starts dropping them.
	SendQueue int
	Logger    *slog.Logger
}

func (o *ConnOptions) defaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 4096
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = 30 * time.Second
		if o.PingPeriod >= o.PongWait {
			o.PingPeriod = o.PongWait * 9 / 10
		}
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 16
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// Conn is a Channel over a websocket. Updates are written by the connection's
// own writer goroutine; one goroutine runs Serve to read frames and keep the
// connection alive.
type Conn struct {
	ws    *websocket.Conn
	opts  ConnOptions
	queue chan Update

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewConn wraps an established websocket connection and starts its writer.
func NewConn(ws *websocket.Conn, opts ConnOptions) *Conn {
	opts.defaults()
	c := &Conn{
		ws:    ws,
		opts:  opts,
		queue: make(chan Update, opts.SendQueue),
		done:  make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// Upgrade upgrades an HTTP request to a surface connection.
func Upgrade(w http.ResponseWriter, r *http.Request, opts ConnOptions) (*Conn, error) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Surfaces are served by the same host; a srcdoc frame reports a null origin.
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade failed: %w", err)
	}
	return NewConn(ws, opts), nil
}

// Send queues one update for the writer without blocking. When the peer has
// fallen SendQueue updates behind the update is dropped with ErrQueueFull.
func (c *Conn) Send(u Update) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.queue <- u:
		return nil
	default:
		return fmt.Errorf("drop %s update: %w", u.Kind, ErrQueueFull)
	}
}

// writeLoop writes queued updates as JSON text frames until the connection
// closes. A failed write closes the connection.
func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case u := <-c.queue:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteJSON(u); err != nil {
				c.opts.Logger.Debug("surface write failed", "kind", u.Kind, "error", err)
				c.Close()
				return
			}
		}
	}
}

// closeWait bounds the close frame so Close returns even while the writer is
// stuck on a slow peer.
const closeWait = time.Second

// Close sends a close frame and releases the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	return c.ws.Close()
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Serve reads frames until the connection closes or ctx ends, passing every
// well-formed frame to handle in arrival order. Malformed frames are logged
// and dropped. Serve closes the connection before returning.
func (c *Conn) Serve(ctx context.Context, handle func(Inbound)) error {
	defer c.Close()

	c.ws.SetReadLimit(c.opts.ReadLimit)
	c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	go c.keepAlive(ctx)

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.done:
				return nil
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.opts.Logger.Warn("surface connection error", "error", err)
				return err
			}
			return nil
		}
		if messageType != websocket.TextMessage {
			continue
		}
		in, err := Decode(data)
		if err != nil {
			c.opts.Logger.Debug("surface frame dropped", "error", err)
			continue
		}
		handle(in)
	}
}

func (c *Conn) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-c.done:
			return
		case <-ticker.C:
			// WriteControl may run alongside the writer.
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				return
			}
		}
	}
}
