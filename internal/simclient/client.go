// Package simclient maintains the websocket link to the traffic simulation.
//
// A Client dials once, feeds every decoded snapshot into the state store and
// forwards operator commands while the link is open. It never reconnects:
// once closed, a new Client is required.
package simclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"intersection/viewer/internal/logging"
	"intersection/viewer/internal/protocol"
	"intersection/viewer/internal/state"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultMaxPayloadBytes  = 1 << 20
	writeWait               = 5 * time.Second
)

// ErrAlreadyStarted is returned when Run is invoked more than once.
var ErrAlreadyStarted = errors.New("simulation client already started")

// Observer receives traffic notifications. Implementations must not block.
type Observer interface {
	ObserveSnapshot(raw []byte, snapshot *protocol.Snapshot)
	ObserveCommand(cmd protocol.Command, sent bool)
	ObserveStatus(status protocol.ConnectionStatus)
}

// Option customises a Client.
type Option func(*Client)

// WithLogger routes client diagnostics to logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithHandshakeTimeout bounds the initial dial.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.handshakeTimeout = timeout
		}
	}
}

// WithMaxPayloadBytes caps inbound frame size.
func WithMaxPayloadBytes(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxPayload = limit
		}
	}
}

// WithObserver registers a traffic observer.
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		if observer != nil {
			c.observers = append(c.observers, observer)
		}
	}
}

// Client owns one connection to the simulation.
type Client struct {
	endpoint         string
	id               string
	store            *state.Store
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	maxPayload       int64
	log              *logging.Logger
	observers        []Observer
	stats            *counters

	status  atomic.Int32
	started atomic.Bool

	writeMu sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

// New prepares a client for endpoint and marks the store as connecting.
func New(endpoint string, store *state.Store, opts ...Option) *Client {
	c := &Client{
		endpoint:         endpoint,
		id:               uuid.NewString(),
		store:            store,
		dialer:           websocket.DefaultDialer,
		handshakeTimeout: defaultHandshakeTimeout,
		maxPayload:       defaultMaxPayloadBytes,
		log:              logging.L(),
		stats:            newCounters(),
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(logging.String("component", "simclient"), logging.String("client_id", c.id), logging.String("endpoint", endpoint))
	c.publishStatus(protocol.Connecting)
	return c
}

// ID identifies this connection attempt in logs and recordings.
func (c *Client) ID() string { return c.id }

// Endpoint reports the dialed URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Status reports the lifecycle state of this connection.
func (c *Client) Status() protocol.ConnectionStatus {
	return protocol.ConnectionStatus(c.status.Load())
}

// Stats returns a copy of the traffic counters.
func (c *Client) Stats() Stats { return c.stats.snapshot() }

// Done is closed once the connection has been released.
func (c *Client) Done() <-chan struct{} { return c.done }

// Run dials the simulation and pumps inbound snapshots into the store until
// the link fails, the peer closes it, ctx is cancelled or Close is called.
func (c *Client) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer c.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.writeMu.Lock()
	c.cancel = cancel
	closedEarly := c.isDone()
	c.writeMu.Unlock()
	if closedEarly {
		return nil
	}

	//1.- Dial once; failure is terminal for this client.
	dialCtx, dialCancel := context.WithTimeout(runCtx, c.handshakeTimeout)
	conn, _, err := c.dialer.DialContext(dialCtx, c.endpoint, nil)
	dialCancel()
	if err != nil {
		c.setStatus(protocol.Closed)
		if ctx.Err() != nil || c.isDone() {
			return ctx.Err()
		}
		c.log.Warn("simulation dial failed", logging.Error(err))
		return fmt.Errorf("dial %s: %w", c.endpoint, err)
	}
	conn.SetReadLimit(c.maxPayload)

	//2.- Publish the socket and mark the link open.
	c.writeMu.Lock()
	if c.isDone() {
		c.writeMu.Unlock()
		_ = conn.Close()
		c.setStatus(protocol.Closed)
		return nil
	}
	c.conn = conn
	c.setStatus(protocol.Open)
	c.writeMu.Unlock()
	c.log.Info("simulation connected")

	go func() {
		select {
		case <-runCtx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	//3.- Read frames in arrival order until the transport fails.
	err = c.readLoop(conn)
	c.markClosed()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case c.isDone():
		return nil
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.log.Info("simulation closed the connection")
		return nil
	default:
		c.log.Warn("simulation connection lost", logging.Error(err))
		return fmt.Errorf("read %s: %w", c.endpoint, err)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			c.stats.observeFrame(len(payload), false)
			c.log.Warn("discarding non-text frame", logging.Int("frame_type", kind), logging.Int("bytes", len(payload)))
			continue
		}
		snapshot, err := protocol.DecodeSnapshot(payload)
		if err != nil {
			c.stats.observeFrame(len(payload), false)
			c.log.Warn("discarding malformed snapshot", logging.Error(err), logging.Int("bytes", len(payload)))
			continue
		}
		if !c.deliver(payload, snapshot) {
			return nil
		}
		c.stats.observeFrame(len(payload), true)
	}
}

// deliver hands a decoded snapshot to the store unless Close already ran.
// Holding writeMu keeps Close from marking the link done mid-apply.
func (c *Client) deliver(payload []byte, snapshot *protocol.Snapshot) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.isDone() {
		return false
	}
	c.store.ApplySnapshot(snapshot)
	for _, observer := range c.observers {
		observer.ObserveSnapshot(payload, snapshot)
	}
	return true
}

// SendCommand transmits one command while the link is open. Commands issued
// in any other state are dropped without queueing and false is returned.
// Values are forwarded as given.
func (c *Client) SendCommand(kind protocol.CommandKind, value *float64) bool {
	cmd := protocol.Command{Type: kind, Value: value}
	sent := c.write(cmd)
	c.stats.observeCommand(kind, sent)
	for _, observer := range c.observers {
		observer.ObserveCommand(cmd, sent)
	}
	return sent
}

func (c *Client) write(cmd protocol.Command) bool {
	if c.Status() != protocol.Open {
		return false
	}
	payload, err := protocol.EncodeCommand(cmd.Type, cmd.Value)
	if err != nil {
		c.log.Warn("command encode failed", logging.String("type", string(cmd.Type)), logging.Error(err))
		return false
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil || c.Status() != protocol.Open {
		return false
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("command write failed", logging.String("type", string(cmd.Type)), logging.Error(err))
		return false
	}
	return true
}

// Start resumes the simulation.
func (c *Client) Start() bool { return c.SendCommand(protocol.CommandStart, nil) }

// Stop pauses the simulation.
func (c *Client) Stop() bool { return c.SendCommand(protocol.CommandStop, nil) }

// Reset restarts the simulation from its initial state.
func (c *Client) Reset() bool { return c.SendCommand(protocol.CommandReset, nil) }

// SetDensity requests a new vehicle spawn density.
func (c *Client) SetDensity(value float64) bool {
	return c.SendCommand(protocol.CommandSetDensity, protocol.Float(value))
}

// Close releases the connection. It is safe to call from any goroutine and
// any number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		close(c.done)
		conn := c.conn
		cancel := c.cancel
		c.writeMu.Unlock()

		if cancel != nil {
			cancel()
		}
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		}
		c.markClosed()
	})
}

func (c *Client) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) setStatus(status protocol.ConnectionStatus) {
	if protocol.ConnectionStatus(c.status.Swap(int32(status))) == status {
		return
	}
	c.publishStatus(status)
}

// markClosed records the terminal status. The store write is unconditional so
// a snapshot applied just before Close can never leave it Open.
func (c *Client) markClosed() {
	c.setStatus(protocol.Closed)
	c.store.SetStatus(protocol.Closed)
}

func (c *Client) publishStatus(status protocol.ConnectionStatus) {
	c.store.SetStatus(status)
	for _, observer := range c.observers {
		observer.ObserveStatus(status)
	}
}
