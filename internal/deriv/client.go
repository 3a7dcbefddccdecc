package deriv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Reconnect backoff: delay = min(baseDelay << attempt, maxDelay).
	baseDelay            = time.Second
	maxDelay             = 30 * time.Second
	maxReconnectAttempts = 5

	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// PingRequest keeps the session alive between market data frames.
type PingRequest struct {
	Ping int `json:"ping"`
}

// Handlers are the demux callbacks for inbound messages. Nil callbacks are
// skipped. All callbacks fire on the client's single read goroutine, so a
// handler that blocks stalls the stream.
type Handlers struct {
	OnOpen         func()
	OnClose        func()
	OnFatal        func() // reconnect budget exhausted, client is dead
	OnError        func(APIError)
	OnAuthorize    func(AuthorizeResult)
	OnAccountList  func([]AccountEntry)
	OnTick         func(TickResult)
	OnHistory      func(HistoryResult)
	OnProposal     func(ProposalResult)
	OnBuy          func(BuyResult)
	OnSubscription func(msgType, id string)
}

// Client manages one Deriv WebSocket session: dialing, app-level pings,
// inbound demux, and reconnection with exponential backoff. Outbound
// traffic sent while disconnected is queued FIFO and flushed, in order,
// before anything written after reconnect.
type Client struct {
	url      string
	dialer   *websocket.Dialer
	handlers Handlers

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	queue     [][]byte
	attempt   int

	balanceMu sync.RWMutex
	onBalance func(BalanceResult)

	// Optional metrics hooks.
	OnReconnect  func()
	OnQueueDepth func(n int)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient builds a client for the given endpoint. Handlers must be set
// before Connect; they are not safe to mutate afterwards.
func NewClient(url string, handlers Handlers) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:      url,
		dialer:   websocket.DefaultDialer,
		handlers: handlers,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetHandlers replaces the demux callbacks. Must be called before
// Connect; the read loop copies nothing.
func (c *Client) SetHandlers(h Handlers) {
	c.handlers = h
}

// Endpoint builds the production websocket URL for an app id.
func Endpoint(appID string) string {
	return fmt.Sprintf("wss://ws.derivws.com/websockets/v3?app_id=%s", appID)
}

// Connect dials the endpoint and starts the read and ping loops. The
// initial dial failure is returned to the caller; once connected, later
// drops are handled by the internal reconnect loop.
func (c *Client) Connect(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			log.Printf("[ws] dial failed, status: %s", resp.Status)
		}
		return fmt.Errorf("deriv: dial %s: %w", c.url, err)
	}
	c.adopt(conn)

	go c.readLoop(conn)
	go c.pingLoop()

	if c.handlers.OnOpen != nil {
		c.handlers.OnOpen()
	}
	return nil
}

// adopt installs a fresh connection, flushes the pending queue in FIFO
// order, and resets the retry counter. Queued frames go out under the
// mutex so no Send can interleave ahead of them. A flush failure keeps the
// unflushed remainder queued for the next reconnect.
func (c *Client) adopt(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
	c.attempt = 0

	flushed := 0
	for _, frame := range c.queue {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.queue = c.queue[flushed:]
			c.connected = false
			log.Printf("[ws] flush error, %d frames kept: %v", len(c.queue), err)
			c.reportQueueDepth(len(c.queue))
			return
		}
		flushed++
	}
	if flushed > 0 {
		log.Printf("[ws] flushed %d queued messages", flushed)
	}
	c.queue = nil
	c.connected = true
	c.reportQueueDepth(0)
}

// Send marshals v and writes it to the socket, or queues it when the
// socket is down. It never fails: a request made while disconnected is
// delivered after the next successful reconnect.
func (c *Client) Send(v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Printf("[ws] marshal error: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		c.queue = append(c.queue, frame)
		c.reportQueueDepth(len(c.queue))
		return
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.Printf("[ws] write error, queueing: %v", err)
		c.connected = false
		c.queue = append(c.queue, frame)
		c.reportQueueDepth(len(c.queue))
	}
}

// Connected reports whether the socket is currently usable.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// QueueDepth returns the number of frames waiting for reconnect.
func (c *Client) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// RegisterBalanceHandler routes balance pushes to fn until unregistered.
// Balance is split out from Handlers because the consumer changes when the
// active account switches.
func (c *Client) RegisterBalanceHandler(fn func(BalanceResult)) {
	c.balanceMu.Lock()
	c.onBalance = fn
	c.balanceMu.Unlock()
}

// UnregisterBalanceHandler drops the current balance consumer.
func (c *Client) UnregisterBalanceHandler() {
	c.balanceMu.Lock()
	c.onBalance = nil
	c.balanceMu.Unlock()
}

// Close shuts the client down permanently. No reconnect is attempted.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.connected = false
			c.mu.Unlock()

			if c.handlers.OnClose != nil {
				c.handlers.OnClose()
			}
			if closed {
				return
			}
			log.Printf("[ws] read error: %v", err)
			c.reconnect()
			return
		}
		c.dispatch(raw)
	}
}

// reconnect retries the dial with exponential backoff until it succeeds or
// the attempt budget runs out.
func (c *Client) reconnect() {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.attempt++
		attempt := c.attempt
		c.mu.Unlock()

		if attempt > maxReconnectAttempts {
			log.Printf("[ws] giving up after %d reconnect attempts", maxReconnectAttempts)
			if c.handlers.OnFatal != nil {
				c.handlers.OnFatal()
			}
			return
		}

		delay := baseDelay << uint(attempt)
		if delay > maxDelay {
			delay = maxDelay
		}
		log.Printf("[ws] reconnect attempt %d/%d in %s", attempt, maxReconnectAttempts, delay)

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(delay):
		}

		conn, _, err := c.dialer.DialContext(c.ctx, c.url, nil)
		if err != nil {
			log.Printf("[ws] reconnect dial error: %v", err)
			continue
		}

		if c.OnReconnect != nil {
			c.OnReconnect()
		}
		c.adopt(conn)
		go c.readLoop(conn)

		if c.handlers.OnOpen != nil {
			c.handlers.OnOpen()
		}
		return
	}
}

// dispatch demuxes one inbound frame. Deriv marks the payload by which
// field is populated, so the checks walk the envelope in a fixed order.
// An error response still carries echo_req but no payload; it terminates
// dispatch after the error callback.
func (c *Client) dispatch(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("[ws] bad frame: %v", err)
		return
	}

	if env.Subscription != nil && c.handlers.OnSubscription != nil {
		c.handlers.OnSubscription(env.MsgType, env.Subscription.ID)
	}

	switch {
	case env.Error != nil:
		log.Printf("[ws] api error: %s: %s", env.Error.Code, env.Error.Message)
		if c.handlers.OnError != nil {
			c.handlers.OnError(*env.Error)
		}
	case env.Authorize != nil:
		if c.handlers.OnAuthorize != nil {
			c.handlers.OnAuthorize(*env.Authorize)
		}
	case env.AccountList != nil:
		if c.handlers.OnAccountList != nil {
			c.handlers.OnAccountList(env.AccountList)
		}
	case env.Balance != nil:
		c.balanceMu.RLock()
		fn := c.onBalance
		c.balanceMu.RUnlock()
		if fn != nil {
			fn(*env.Balance)
		}
	case env.Tick != nil:
		if c.handlers.OnTick != nil {
			c.handlers.OnTick(*env.Tick)
		}
	case env.History != nil:
		if c.handlers.OnHistory != nil {
			c.handlers.OnHistory(*env.History)
		}
	case env.Proposal != nil:
		if c.handlers.OnProposal != nil {
			c.handlers.OnProposal(*env.Proposal)
		}
	case env.Buy != nil:
		if c.handlers.OnBuy != nil {
			c.handlers.OnBuy(*env.Buy)
		}
	}
}

// pingLoop sends application-level pings to keep the session alive.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.Connected() {
				c.Send(PingRequest{Ping: 1})
			}
		}
	}
}

// reportQueueDepth must be called with c.mu held.
func (c *Client) reportQueueDepth(n int) {
	if c.OnQueueDepth != nil {
		c.OnQueueDepth(n)
	}
}
