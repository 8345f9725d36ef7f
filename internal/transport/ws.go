package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/DoyleJ11/improv-battle/internal/types"
)

const (
	DefaultQueueSize = 32
	writeTimeout     = 3 * time.Second
	flushTimeout     = time.Second
	readLimit        = 1 << 20
)

type Options struct {
	QueueSize  int
	Log        *zap.Logger
	OnState    func(ConnState)
	OnIdentity func(identity string)
}

// WSChannel is a Channel carried by a relay websocket.
type WSChannel struct {
	conn *websocket.Conn
	log  *zap.Logger
	opts Options
	out  chan types.Frame

	mu      sync.Mutex
	subs    map[string]map[int]func(Packet)
	nextSub int
	closed  bool

	flush      chan struct{} // closed by Close: write what is queued, then stop
	writerDone chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RoomURL builds the relay websocket URL for room.
func RoomURL(base, room string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("relay url %q: unsupported scheme %q", base, u.Scheme)
	}
	if room == "" {
		return "", errors.New("room is required")
	}
	escaped := path.Join("/", u.EscapedPath(), "rooms", url.PathEscape(room), "ws")
	if u.Path, err = url.PathUnescape(escaped); err != nil {
		return "", fmt.Errorf("relay path: %w", err)
	}
	u.RawPath = escaped
	return u.String(), nil
}

// Dial connects to the relay at rawURL and starts pumping frames. OnState and
// OnIdentity are called from the channel's goroutines.
func Dial(ctx context.Context, rawURL string, opts Options) (*WSChannel, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	notifyState(opts, StateConnecting)
	conn, _, err := websocket.Dial(ctx, rawURL, nil)
	if err != nil {
		notifyState(opts, StateDisconnected)
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	conn.SetReadLimit(readLimit)

	runCtx, cancel := context.WithCancel(context.Background())
	c := &WSChannel{
		conn:   conn,
		log:    opts.Log.With(zap.String("relay", rawURL)),
		opts:   opts,
		out:    make(chan types.Frame, opts.QueueSize),
		subs:   make(map[string]map[int]func(Packet)),
		ctx:    runCtx,
		cancel: cancel,

		flush:      make(chan struct{}),
		writerDone: make(chan struct{}),
	}

	notifyState(opts, StateConnected)

	c.wg.Add(2)
	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

func (c *WSChannel) Publish(ctx context.Context, data []byte, opts PublishOptions) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	f := types.Frame{
		Kind:     types.KindData,
		Topic:    opts.Topic,
		Reliable: opts.Reliable,
		Data:     data,
	}

	select {
	case c.out <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

func (c *WSChannel) Subscribe(topic string, fn func(Packet)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	if c.subs[topic] == nil {
		c.subs[topic] = make(map[int]func(Packet))
	}
	c.subs[topic][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[topic], id)
	}
}

// Close flushes frames that are already queued, waiting at most
// flushTimeout, then closes the websocket and stops both pumps. Frames that
// cannot be written in time are dropped.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.flush)
	select {
	case <-c.writerDone:
	case <-time.After(flushTimeout):
		c.log.Warn("relay flush timed out", zap.Int("queued", len(c.out)))
	}

	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	c.cancel()
	c.wg.Wait()

	if err == nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil
	}
	return fmt.Errorf("close relay connection: %w", err)
}

// Done is closed once the channel stops, on Close or when the relay goes away.
func (c *WSChannel) Done() <-chan struct{} { return c.ctx.Done() }

func (c *WSChannel) writeLoop() {
	defer c.wg.Done()
	defer close(c.writerDone)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.flush:
			c.drain()
			return
		case f := <-c.out:
			c.write(c.ctx, f)
		}
	}
}

// drain writes whatever is still queued under one shared deadline.
func (c *WSChannel) drain() {
	ctx, cancel := context.WithTimeout(c.ctx, flushTimeout)
	defer cancel()
	for {
		select {
		case f := <-c.out:
			c.write(ctx, f)
		default:
			return
		}
	}
}

func (c *WSChannel) write(parent context.Context, f types.Frame) {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, f); err != nil {
		c.log.Warn("relay write failed", zap.Error(err), zap.String("topic", f.Topic))
	}
}

func (c *WSChannel) readLoop() {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.cancel()
		notifyState(c.opts, StateDisconnected)
	}()

	for {
		var f types.Frame
		if err := wsjson.Read(c.ctx, c.conn, &f); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.log.Info("relay closed the connection")
			default:
				if c.ctx.Err() == nil {
					c.log.Warn("relay read failed", zap.Error(err))
				}
			}
			return
		}

		switch f.Kind {
		case types.KindWelcome:
			c.log.Info("joined room", zap.String("identity", f.Identity), zap.String("room", f.Room))
			if c.opts.OnIdentity != nil {
				c.opts.OnIdentity(f.Identity)
			}
		case types.KindData:
			c.dispatch(Packet{Topic: f.Topic, From: f.From, Data: f.Data})
		case types.KindError:
			c.log.Warn("relay reported an error", zap.String("error", f.Error))
		default:
			c.log.Debug("ignoring relay frame", zap.String("kind", f.Kind))
		}
	}
}

func (c *WSChannel) dispatch(p Packet) {
	c.mu.Lock()
	handlers := make([]func(Packet), 0, len(c.subs[p.Topic]))
	for _, fn := range c.subs[p.Topic] {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.log.Debug("no subscriber for topic", zap.String("topic", p.Topic))
		return
	}
	for _, fn := range handlers {
		fn(p)
	}
}

func notifyState(opts Options, s ConnState) {
	if opts.OnState != nil {
		opts.OnState(s)
	}
}
