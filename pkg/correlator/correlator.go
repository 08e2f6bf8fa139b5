// Package correlator is the viewer-side counterpart of the gateway's
// request protocol: it authenticates on open, pairs every pull request
// with its correlated response, and routes unsolicited frames
// (presence updates, auth outcomes) to a separate event channel.
package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

var (
	// ErrClosed is returned by SendRequest once the link is gone; sends
	// fail fast rather than queue.
	ErrClosed = errors.New("correlator: connection closed")

	// ErrTimeout rejects a pending request whose response never arrived.
	ErrTimeout = errors.New("correlator: request timed out")
)

// DefaultRequestTimeout bounds how long a pull request may stay pending.
const DefaultRequestTimeout = 15 * time.Second

// Result settles a pull request: exactly one of Data or Err.
type Result struct {
	Data json.RawMessage
	Err  error
}

// Event is an unsolicited server frame.
type Event struct {
	Type    string
	Payload json.RawMessage
	Message string
}

type connState int

const (
	stateConnecting connState = iota
	stateOpen
	stateClosed
)

type pendingRequest struct {
	ch    chan Result
	timer *time.Timer
}

type request struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Options struct {
	// RequestTimeout defaults to DefaultRequestTimeout when zero.
	RequestTimeout time.Duration
}

// Client is a single viewer connection. Safe for concurrent use.
type Client struct {
	logger  *slog.Logger
	url     string
	token   string
	timeout time.Duration

	mu      sync.Mutex
	state   connState
	conn    *websocket.Conn
	pending map[string]*pendingRequest
	queued  [][]byte

	writeMu sync.Mutex

	events chan Event
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial starts connecting and returns immediately. Requests issued while
// the link is still connecting are queued and flushed once the AUTH
// frame has been sent; requests issued after closure fail fast.
func Dial(ctx context.Context, url, token string, logger *slog.Logger, opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	clientCtx, cancel := context.WithCancel(ctx)
	c := &Client{
		logger:  logger.With(slog.String("component", "correlator")),
		url:     url,
		token:   token,
		timeout: opts.RequestTimeout,
		state:   stateConnecting,
		pending: make(map[string]*pendingRequest),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		ctx:     clientCtx,
		cancel:  cancel,
	}
	go c.run()
	return c
}

func (c *Client) run() {
	conn, _, err := websocket.Dial(c.ctx, c.url, nil)
	if err != nil {
		c.logger.Warn("Failed to dial gateway", slog.Any("error", err))
		c.shutdown(err)
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// AUTH must be the first frame on the wire; queued requests only
	// flush after it.
	authFrame, err := json.Marshal(request{Type: "AUTH", Token: c.token})
	if err != nil {
		c.shutdown(err)
		return
	}
	if err := c.write(authFrame); err != nil {
		c.shutdown(err)
		return
	}

	c.mu.Lock()
	c.state = stateOpen
	queued := c.queued
	c.queued = nil
	c.mu.Unlock()

	c.logger.Info("Connected to gateway", slog.String("url", c.url))
	for _, frame := range queued {
		if err := c.write(frame); err != nil {
			c.shutdown(err)
			return
		}
	}

	c.readLoop(conn)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(c.ctx)
		if err != nil {
			c.shutdown(err)
			return
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			continue
		}
		c.handleFrame(data)
	}
}

// handleFrame resolves correlated responses and routes everything else
// to the event channel. Frames whose token is no longer pending (for
// example, a response arriving after its timeout fired) are dropped.
func (c *Client) handleFrame(data []byte) {
	requestID := gjson.GetBytes(data, "requestId").String()
	if requestID != "" {
		p, ok := c.take(requestID)
		if !ok {
			c.logger.Debug("Response for unknown or expired token", slog.String("requestId", requestID))
			return
		}
		p.timer.Stop()
		if gjson.GetBytes(data, "status").String() == "success" {
			p.ch <- Result{Data: json.RawMessage(gjson.GetBytes(data, "data").Raw)}
		} else {
			message := gjson.GetBytes(data, "error").String()
			if message == "" {
				message = "request failed"
			}
			p.ch <- Result{Err: errors.New(message)}
		}
		return
	}

	event := Event{
		Type:    gjson.GetBytes(data, "type").String(),
		Payload: json.RawMessage(gjson.GetBytes(data, "payload").Raw),
		Message: gjson.GetBytes(data, "message").String(),
	}
	select {
	case c.events <- event:
	default:
		c.logger.Warn("Event channel full, dropping event", slog.String("type", event.Type))
	}
}

// SendRequest issues a pull request and returns a channel that settles
// exactly once: with the response, or with ErrTimeout.
func (c *Client) SendRequest(requestType string, payload any) (<-chan Result, error) {
	token := uuid.NewString()
	frame, err := json.Marshal(request{Type: requestType, Payload: payload, RequestID: token})
	if err != nil {
		return nil, err
	}

	p := &pendingRequest{ch: make(chan Result, 1)}
	p.timer = time.AfterFunc(c.timeout, func() { c.expire(token) })

	c.mu.Lock()
	switch c.state {
	case stateClosed:
		c.mu.Unlock()
		p.timer.Stop()
		return nil, ErrClosed
	case stateConnecting:
		c.pending[token] = p
		c.queued = append(c.queued, frame)
		c.mu.Unlock()
		return p.ch, nil
	default:
		c.pending[token] = p
		c.mu.Unlock()
	}

	if err := c.write(frame); err != nil {
		if p, ok := c.take(token); ok {
			p.timer.Stop()
		}
		return nil, err
	}
	return p.ch, nil
}

// Events exposes unsolicited frames. The channel closes when the
// connection terminates.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed when the connection has fully terminated.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears the connection down and rejects anything still pending.
func (c *Client) Close() {
	c.shutdown(nil)
}

// take atomically removes a pending entry, making response delivery and
// timeout expiry mutually exclusive.
func (c *Client) take(token string) (*pendingRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[token]
	if ok {
		delete(c.pending, token)
	}
	return p, ok
}

func (c *Client) expire(token string) {
	p, ok := c.take(token)
	if !ok {
		return
	}
	p.ch <- Result{Err: ErrTimeout}
}

func (c *Client) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}
	return conn.Write(c.ctx, websocket.MessageText, frame)
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return
	}
	c.state = stateClosed
	conn := c.conn
	c.conn = nil
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	if err != nil {
		c.logger.Info("Connection shutting down", slog.Any("reason", err))
	}
	c.cancel()
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "")
	}
	for _, p := range pending {
		p.timer.Stop()
		p.ch <- Result{Err: ErrClosed}
	}
	close(c.events)
	close(c.done)
}
