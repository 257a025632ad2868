package chatsphere

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"

	"github.com/chatsphere/sdk-go/chatsphere/internal"

	"github.com/coder/websocket"
)

// EventChannel is one room's duplex connection: an outbound send path
// and a lazy, unbounded inbound sequence that terminates when either
// side closes. There is no retry at this layer; recovery is a fresh
// room activation.
type EventChannel interface {
	// Send queues an outbound event. It is fire-and-forget: a send on a
	// closed channel is logged and dropped, never returned as an error.
	Send(ctx context.Context, ev Event)

	// Events yields inbound events until the channel closes, then the
	// returned channel is closed and no further events are produced.
	Events() <-chan Event

	Close() error
}

// ChannelOpener establishes an EventChannel for a room.
type ChannelOpener interface {
	Open(ctx context.Context, roomID string) (EventChannel, error)
}

// Dialer opens websocket-backed event channels. The bearer token rides
// as a connection query parameter since a long-lived duplex connection
// is opened by URL, not per-request headers.
type Dialer struct {
	cfg    Config
	logger Logger
}

func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg, logger: noopLogger{}}
}

// SetLogger overrides logger (optional).
func (d *Dialer) SetLogger(l Logger) {
	if l != nil {
		d.logger = l
	}
}

// Open dials /ws/chat/{roomID} and starts the channel loops. Fails with
// a connection_failed error on a malformed URL or refused connection.
func (d *Dialer) Open(ctx context.Context, roomID string) (EventChannel, error) {
	u, err := url.Parse(d.cfg.WSBaseURL)
	if err != nil {
		return nil, WrapError(ErrorConnectionFailed, "bad websocket base URL", err)
	}
	u = u.JoinPath("ws", "chat", roomID)
	q := u.Query()
	q.Set("token", d.cfg.Token)
	u.RawQuery = q.Encode()

	dialCtx := ctx
	if d.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, d.cfg.HandshakeTimeout)
		defer cancel()
	}
	ws, _, err := websocket.Dial(dialCtx, u.String(), nil)
	if err != nil {
		return nil, WrapError(ErrorConnectionFailed, "dial "+roomID, err)
	}

	ch := &channel{
		roomID: roomID,
		conn:   internal.NewConn(ws, d.cfg.ReadTimeout, d.cfg.WriteTimeout),
		logger: d.logger,
		events: make(chan Event, 32),
		sendCh: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	runCtx, cancel := context.WithCancel(context.Background())
	ch.cancel = cancel
	go ch.readLoop(runCtx)
	go ch.writeLoop(runCtx)
	return ch, nil
}

type channel struct {
	roomID    string
	conn      *internal.Conn
	logger    Logger
	events    chan Event
	sendCh    chan Event
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (c *channel) Send(ctx context.Context, ev Event) {
	select {
	case <-c.done:
		c.logger.Warn("send dropped, channel closed", map[string]any{"room": c.roomID, "type": string(ev.Type)})
		return
	default:
	}
	select {
	case c.sendCh <- ev:
	case <-c.done:
		c.logger.Warn("send dropped, channel closed", map[string]any{"room": c.roomID, "type": string(ev.Type)})
	case <-ctx.Done():
		c.logger.Warn("send dropped, context done", map[string]any{"room": c.roomID, "type": string(ev.Type)})
	}
}

func (c *channel) Events() <-chan Event { return c.events }

func (c *channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		err = c.conn.Close(websocket.StatusNormalClosure, "client close")
	})
	return err
}

func (c *channel) readLoop(ctx context.Context) {
	defer close(c.events)
	for {
		raw, err := c.conn.ReadRaw(ctx)
		if err != nil {
			if !isExpectedDisconnect(ctx, err) {
				c.logger.Warn("read loop exit", map[string]any{"room": c.roomID, "error": err.Error()})
			}
			c.markClosed()
			return
		}
		ev, err := DecodeEvent(raw)
		if err != nil {
			// Malformed frames are dropped; they never terminate the stream.
			c.logger.Warn("dropping malformed event", map[string]any{"room": c.roomID, "error": err.Error()})
			continue
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
			c.markClosed()
			return
		}
	}
}

// markClosed flags the channel dead after a remote close or a failed
// write so later sends fail fast instead of queueing.
func (c *channel) markClosed() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
}

func (c *channel) writeLoop(ctx context.Context) {
	for {
		select {
		case ev := <-c.sendCh:
			if err := c.conn.Write(ctx, ev); err != nil {
				c.logger.Warn("write loop exit", map[string]any{"room": c.roomID, "error": err.Error()})
				// Flag the channel dead so later sends drop instead of
				// queueing into a buffer nothing drains.
				c.markClosed()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
