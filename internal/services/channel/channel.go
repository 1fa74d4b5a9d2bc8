// Package channel implements the realtime connection manager: a persistent
// duplex JSON channel with topic subscriptions that survive reconnects,
// heartbeats and linear-backoff reconnection.
package channel

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gridwire/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultHeartbeatInterval    = 30 * time.Second
	defaultReconnectInterval    = 3 * time.Second
	defaultMaxReconnectAttempts = 5
)

// ErrNotConnected is returned by Send when the channel has no live transport.
// Messages are never queued; the caller re-sends after reconnect if delivery
// matters.
var ErrNotConnected = errors.New("channel is not connected")

// MessageHandler receives inbound application messages.
type MessageHandler func(msg domain.Message)

// StateHandler receives connection state transitions.
type StateHandler func(state domain.ConnectionState)

// SubscriptionHandler receives the outcome of a subscribe request: err is nil
// when the server confirmed the topic.
type SubscriptionHandler func(topic string, err error)

// Config parameterizes a Channel. Zero values fall back to defaults.
type Config struct {
	// BaseURL is the endpoint without the user segment.
	BaseURL string
	// UserID is appended to BaseURL as a path segment.
	UserID               string
	HeartbeatInterval    time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = defaultReconnectInterval
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
}

func (c *Config) url() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + c.UserID
}

// Channel owns the connection state and the retained subscription set.
// Consumers read snapshots through accessors but never mutate internals.
//
// All mutation is serialized by one mutex, which emulates single-threaded
// dispatch: the reader goroutine, timer callbacks and the public API never
// interleave inside the state machine. A generation counter stamps each
// transport so goroutines and timers belonging to a previous connection
// become no-ops instead of corrupting the current one.
type Channel struct {
	cfg    Config
	dialer Dialer
	logger *zap.Logger

	mu        sync.Mutex
	state     domain.ConnectionState
	conn      Conn
	gen       uint64
	attempts  int
	manual    bool
	subs      map[string]struct{}
	reconnect *time.Timer
	stopBeat  chan struct{}

	typeHandlers  map[string][]MessageHandler
	topicHandlers map[string][]MessageHandler
	stateHandlers []StateHandler
	subHandlers   []SubscriptionHandler
}

// New builds a disconnected channel. Call Connect to open it.
func New(cfg Config, dialer Dialer, logger *zap.Logger) *Channel {
	cfg.applyDefaults()
	return &Channel{
		cfg:           cfg,
		dialer:        dialer,
		logger:        logger,
		state:         domain.StateDisconnected,
		subs:          make(map[string]struct{}),
		typeHandlers:  make(map[string][]MessageHandler),
		topicHandlers: make(map[string][]MessageHandler),
	}
}

// Connect opens the transport. It is a no-op while already connected or
// connecting. A manual Connect always clears the manual-disconnect flag and
// resets the reconnect attempt counter, so it resumes a channel that
// exhausted its automatic retries.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.manual = false
	c.attempts = 0
	if c.state == domain.StateConnected || c.state == domain.StateConnecting {
		c.mu.Unlock()
		return nil
	}
	// take over from any pending backoff timer: stop it and invalidate its
	// generation so a callback that already fired becomes a no-op
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.gen++
	c.mu.Unlock()

	return c.open(ctx)
}

// open performs one connection attempt and, on failure, schedules the next
// one unless the attempt budget is spent or the user disconnected meanwhile.
func (c *Channel) open(ctx context.Context) error {
	c.setState(domain.StateConnecting)

	conn, err := c.dialer.Dial(ctx, c.cfg.url())
	if err != nil {
		c.mu.Lock()
		c.attempts++
		attempts := c.attempts
		exhausted := attempts >= c.cfg.MaxReconnectAttempts
		manual := c.manual
		if !manual && !exhausted {
			c.scheduleReconnectLocked(ctx)
		}
		c.mu.Unlock()

		c.setState(domain.StateError)
		if exhausted {
			c.logger.Error("reconnect attempts exhausted",
				zap.Int("attempts", attempts), zap.Error(err))
			return errors.Wrapf(err, "connect failed after %d attempts", attempts)
		}
		c.logger.Warn("connect failed, reconnect scheduled",
			zap.Int("attempt", attempts), zap.Error(err))
		return errors.Wrap(err, "connect")
	}

	c.mu.Lock()
	if c.manual || c.conn != nil {
		// Disconnect or a competing dial won the race while we were dialing;
		// the channel owns at most one transport
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.gen++
	gen := c.gen
	c.conn = conn
	c.attempts = 0
	c.stopBeat = make(chan struct{})
	stop := c.stopBeat
	topics := make([]string, 0, len(c.subs))
	for t := range c.subs {
		topics = append(topics, t)
	}
	c.mu.Unlock()

	c.setState(domain.StateConnected)

	for _, topic := range topics {
		if err := c.Send(domain.Message{Type: domain.MessageTypeSubscribe, Topic: topic}); err != nil {
			c.logger.Warn("resubscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	}

	go c.heartbeatLoop(stop)
	go c.readLoop(ctx, conn, gen)

	return nil
}

// Disconnect closes the channel and suppresses automatic reconnection. Any
// pending heartbeat or reconnect timer is cancelled before it returns, so
// nothing fires afterwards.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.manual = true
	c.gen++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.stopBeat != nil {
		close(c.stopBeat)
		c.stopBeat = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.setState(domain.StateDisconnected)
}

// Subscribe adds the topic to the retained set and, while connected, asks the
// server for it. The retained set is the source of truth: every topic in it
// is resubscribed after each successful (re)connect.
func (c *Channel) Subscribe(topic string) error {
	c.mu.Lock()
	c.subs[topic] = struct{}{}
	connected := c.state == domain.StateConnected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.Send(domain.Message{Type: domain.MessageTypeSubscribe, Topic: topic})
}

// Unsubscribe removes the topic from the retained set and, while connected,
// tells the server.
func (c *Channel) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.subs, topic)
	connected := c.state == domain.StateConnected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.Send(domain.Message{Type: domain.MessageTypeUnsubscribe, Topic: topic})
}

// Send writes one message to the transport. It fails with ErrNotConnected
// unless the channel is connected.
func (c *Channel) Send(msg domain.Message) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == domain.StateConnected && conn != nil
	c.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}
	if err := conn.WriteMessage(data); err != nil {
		return errors.Wrap(err, "send message")
	}
	return nil
}

// State returns the current connection state.
func (c *Channel) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ReconnectAttempts returns the consecutive failed attempt count.
func (c *Channel) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Subscriptions returns a snapshot of the retained topic set.
func (c *Channel) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for t := range c.subs {
		out = append(out, t)
	}
	return out
}

// OnMessage registers a handler for a message type. Register before Connect;
// handlers run on the reader goroutine in arrival order.
func (c *Channel) OnMessage(msgType string, h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typeHandlers[msgType] = append(c.typeHandlers[msgType], h)
}

// OnTopic registers a handler for every message carrying the topic,
// regardless of type.
func (c *Channel) OnTopic(topic string, h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topicHandlers[topic] = append(c.topicHandlers[topic], h)
}

// OnStateChange registers a handler for connection state transitions.
func (c *Channel) OnStateChange(h StateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, h)
}

// OnSubscriptionResult registers a handler for subscription confirmations.
func (c *Channel) OnSubscriptionResult(h SubscriptionHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subHandlers = append(c.subHandlers, h)
}

func (c *Channel) setState(state domain.ConnectionState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	handlers := make([]StateHandler, len(c.stateHandlers))
	copy(handlers, c.stateHandlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h(state)
	}
}

// scheduleReconnectLocked arms the backoff timer. Delay grows linearly with
// the attempt counter, which the caller increments first. Caller holds c.mu.
func (c *Channel) scheduleReconnectLocked(ctx context.Context) {
	delay := c.cfg.ReconnectInterval * time.Duration(c.attempts)
	gen := c.gen
	c.reconnect = time.AfterFunc(delay, func() {
		c.mu.Lock()
		stale := c.manual || c.gen != gen
		c.reconnect = nil
		c.mu.Unlock()
		if stale {
			return
		}
		c.open(ctx)
	})
}

// heartbeatLoop sends a ping every heartbeat interval until stop is closed.
func (c *Channel) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.Send(domain.Message{Type: domain.MessageTypePing}); err != nil {
				c.logger.Debug("heartbeat send failed", zap.Error(err))
			}
		}
	}
}

// readLoop is the single reader: it dispatches inbound messages in arrival
// order and converts a transport failure into the reconnect path.
func (c *Channel) readLoop(ctx context.Context, conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleTransportClose(ctx, gen, err)
			return
		}
		c.dispatch(data)
	}
}

// handleTransportClose runs when the transport dies underneath a live
// connection. Stale generations are ignored so a close observed by an old
// reader cannot disturb a newer connection.
func (c *Channel) handleTransportClose(ctx context.Context, gen uint64, cause error) {
	c.mu.Lock()
	if c.gen != gen || c.manual {
		c.mu.Unlock()
		return
	}
	if c.stopBeat != nil {
		close(c.stopBeat)
		c.stopBeat = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.gen++
	c.attempts++
	attempts := c.attempts
	exhausted := attempts >= c.cfg.MaxReconnectAttempts
	if !exhausted {
		c.scheduleReconnectLocked(ctx)
	}
	c.mu.Unlock()

	if exhausted {
		c.logger.Error("transport closed, reconnect attempts exhausted",
			zap.Int("attempts", attempts), zap.Error(cause))
		c.setState(domain.StateError)
		return
	}
	c.logger.Warn("transport closed, reconnect scheduled",
		zap.Int("attempt", attempts), zap.Error(cause))
	c.setState(domain.StateDisconnected)
}

// dispatch routes one inbound frame. Malformed JSON is logged and dropped;
// it never tears the connection down.
func (c *Channel) dispatch(data []byte) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("malformed inbound message dropped", zap.Error(err))
		return
	}

	switch msg.Type {
	case domain.MessageTypePong:
		return
	case domain.MessageTypeSubscriptionResponse:
		c.dispatchSubscriptionResponse(msg)
		return
	}

	c.mu.Lock()
	handlers := make([]MessageHandler, 0, 4)
	handlers = append(handlers, c.typeHandlers[msg.Type]...)
	if msg.Topic != "" {
		handlers = append(handlers, c.topicHandlers[msg.Topic]...)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

func (c *Channel) dispatchSubscriptionResponse(msg domain.Message) {
	var payload struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.logger.Warn("malformed subscription response dropped",
			zap.String("topic", msg.Topic), zap.Error(err))
		return
	}

	var result error
	if !payload.Success {
		result = errors.Errorf("subscription to %q rejected: %s", msg.Topic, payload.Error)
	}

	c.mu.Lock()
	handlers := make([]SubscriptionHandler, len(c.subHandlers))
	copy(handlers, c.subHandlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h(msg.Topic, result)
	}
}
