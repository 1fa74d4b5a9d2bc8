package channel

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gridwire/internal/domain"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu      sync.Mutex
	written []domain.Message
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// push delivers an inbound frame to the reader goroutine.
func (c *fakeConn) push(t *testing.T, msg domain.Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	c.inbound <- data
}

func (c *fakeConn) sent() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.written))
	copy(out, c.written)
	return out
}

func (c *fakeConn) sentOfType(msgType string) []domain.Message {
	var out []domain.Message
	for _, m := range c.sent() {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

type fakeDialer struct {
	mu       sync.Mutex
	failures int // dials that fail before succeeding
	dials    int
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures {
		return nil, errors.New("dial refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// gatedDialer fails its first dial, then blocks every later dial until
// release is closed.
type gatedDialer struct {
	mu      sync.Mutex
	dials   int
	conns   []*fakeConn
	release chan struct{}
}

func (d *gatedDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.mu.Unlock()
	if n == 1 {
		return nil, errors.New("dial refused")
	}
	<-d.release
	conn := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *gatedDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *gatedDialer) openConns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	open := 0
	for _, c := range d.conns {
		if !c.isClosed() {
			open++
		}
	}
	return open
}

func testChannel(dialer Dialer) *Channel {
	return New(Config{
		BaseURL:              "wss://example.test/realtime",
		UserID:               "user-1",
		HeartbeatInterval:    time.Hour, // keep heartbeats out of assertions
		ReconnectInterval:    time.Millisecond,
		MaxReconnectAttempts: 5,
	}, dialer, zap.NewNop())
}

func TestChannel_ConnectResubscribesRetainedTopics(t *testing.T) {
	dialer := &fakeDialer{}
	ch := testChannel(dialer)

	require.NoError(t, ch.Subscribe("prices:BTC_USDT"))
	require.NoError(t, ch.Subscribe("orders:BTC_USDT"))
	assert.ElementsMatch(t, []string{"prices:BTC_USDT", "orders:BTC_USDT"}, ch.Subscriptions())

	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Disconnect()

	assert.Equal(t, domain.StateConnected, ch.State())

	subs := dialer.lastConn().sentOfType(domain.MessageTypeSubscribe)
	require.Len(t, subs, 2, "one subscribe message per retained topic")
}

func TestChannel_SubscribeWhileConnectedSendsImmediately(t *testing.T) {
	dialer := &fakeDialer{}
	ch := testChannel(dialer)
	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Disconnect()

	require.NoError(t, ch.Subscribe("prices:ETH_USDT"))

	subs := dialer.lastConn().sentOfType(domain.MessageTypeSubscribe)
	require.Len(t, subs, 1)
	assert.Equal(t, "prices:ETH_USDT", subs[0].Topic)

	require.NoError(t, ch.Unsubscribe("prices:ETH_USDT"))
	unsubs := dialer.lastConn().sentOfType(domain.MessageTypeUnsubscribe)
	require.Len(t, unsubs, 1)
	assert.Empty(t, ch.Subscriptions())
}

func TestChannel_SendFailsWhileDisconnected(t *testing.T) {
	ch := testChannel(&fakeDialer{})

	err := ch.Send(domain.Message{Type: "order"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestChannel_ReconnectStopsAfterMaxAttempts(t *testing.T) {
	dialer := &fakeDialer{failures: 1000}
	ch := testChannel(dialer)

	err := ch.Connect(context.Background())
	require.Error(t, err)

	// backoff is linear on a 1ms interval, so five attempts complete quickly
	require.Eventually(t, func() bool {
		return ch.ReconnectAttempts() == 5
	}, time.Second, time.Millisecond)

	// no sixth attempt is ever scheduled
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 5, dialer.dialCount())
	assert.Equal(t, domain.StateError, ch.State())
}

func TestChannel_ManualConnectResetsAttemptCounter(t *testing.T) {
	dialer := &fakeDialer{failures: 1000}
	ch := testChannel(dialer)

	require.Error(t, ch.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return ch.ReconnectAttempts() == 5
	}, time.Second, time.Millisecond)

	// a manual connect resumes dialing from a fresh counter
	require.Error(t, ch.Connect(context.Background()))
	assert.Greater(t, dialer.dialCount(), 5)
	require.Eventually(t, func() bool {
		return ch.ReconnectAttempts() == 5
	}, time.Second, time.Millisecond)
}

func TestChannel_ConnectDuringBackoffTakesOverPendingReconnect(t *testing.T) {
	dialer := &gatedDialer{release: make(chan struct{})}
	ch := New(Config{
		BaseURL:              "wss://example.test/realtime",
		UserID:               "user-1",
		HeartbeatInterval:    time.Hour,
		ReconnectInterval:    20 * time.Millisecond,
		MaxReconnectAttempts: 5,
	}, dialer, zap.NewNop())

	// the failed first dial arms the backoff timer
	require.Error(t, ch.Connect(context.Background()))

	// manual reconnect while the timer is pending; its dial stays blocked
	// until well past the moment the timer would have fired
	done := make(chan error, 1)
	go func() { done <- ch.Connect(context.Background()) }()

	time.Sleep(80 * time.Millisecond)
	close(dialer.release)
	require.NoError(t, <-done)
	defer ch.Disconnect()

	require.Eventually(t, func() bool {
		return ch.State() == domain.StateConnected
	}, time.Second, time.Millisecond)

	assert.Equal(t, 2, dialer.dialCount(), "the superseded backoff timer must not dial")
	assert.Equal(t, 1, dialer.openConns(), "exactly one live transport after the race")
}

func TestChannel_DisconnectSuppressesReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	ch := testChannel(dialer)

	require.NoError(t, ch.Connect(context.Background()))
	require.Equal(t, 1, dialer.dialCount())

	ch.Disconnect()
	assert.Equal(t, domain.StateDisconnected, ch.State())

	// the transport close observed by the reader must not trigger a redial
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, dialer.dialCount())
}

func TestChannel_TransportCloseTriggersReconnectAndResubscribe(t *testing.T) {
	dialer := &fakeDialer{}
	ch := testChannel(dialer)

	require.NoError(t, ch.Subscribe("prices:BTC_USDT"))
	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Disconnect()

	first := dialer.lastConn()
	first.Close()

	require.Eventually(t, func() bool {
		return dialer.dialCount() == 2 && ch.State() == domain.StateConnected
	}, time.Second, time.Millisecond)

	second := dialer.lastConn()
	require.NotSame(t, first, second)
	subs := second.sentOfType(domain.MessageTypeSubscribe)
	require.Len(t, subs, 1, "retained topic resubscribed on the new transport")
	assert.Equal(t, "prices:BTC_USDT", subs[0].Topic)
}

func TestChannel_DispatchByTypeAndTopic(t *testing.T) {
	dialer := &fakeDialer{}
	ch := testChannel(dialer)

	var mu sync.Mutex
	var byType, byTopic []domain.Message
	ch.OnMessage("price", func(msg domain.Message) {
		mu.Lock()
		defer mu.Unlock()
		byType = append(byType, msg)
	})
	ch.OnTopic("prices:BTC_USDT", func(msg domain.Message) {
		mu.Lock()
		defer mu.Unlock()
		byTopic = append(byTopic, msg)
	})

	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Disconnect()

	conn := dialer.lastConn()
	conn.push(t, domain.Message{Type: "price", Topic: "prices:BTC_USDT", Data: json.RawMessage(`{"price":"100"}`)})
	conn.push(t, domain.Message{Type: "price", Topic: "prices:ETH_USDT", Data: json.RawMessage(`{"price":"5"}`)})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(byType) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, byTopic, 1, "topic listener sees only its topic")
	assert.Equal(t, "prices:BTC_USDT", byTopic[0].Topic)
}

func TestChannel_SubscriptionResponseResolvesPerTopic(t *testing.T) {
	dialer := &fakeDialer{}
	ch := testChannel(dialer)

	type result struct {
		topic string
		err   error
	}
	results := make(chan result, 2)
	ch.OnSubscriptionResult(func(topic string, err error) {
		results <- result{topic: topic, err: err}
	})

	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Disconnect()

	conn := dialer.lastConn()
	conn.push(t, domain.Message{
		Type:  domain.MessageTypeSubscriptionResponse,
		Topic: "prices:BTC_USDT",
		Data:  json.RawMessage(`{"success":true}`),
	})
	conn.push(t, domain.Message{
		Type:  domain.MessageTypeSubscriptionResponse,
		Topic: "orders:BTC_USDT",
		Data:  json.RawMessage(`{"success":false,"error":"no permission"}`),
	})

	ok := <-results
	assert.Equal(t, "prices:BTC_USDT", ok.topic)
	assert.NoError(t, ok.err)

	rejected := <-results
	assert.Equal(t, "orders:BTC_USDT", rejected.topic)
	assert.ErrorContains(t, rejected.err, "no permission")
}

func TestChannel_MalformedMessageIsDroppedNotFatal(t *testing.T) {
	dialer := &fakeDialer{}
	ch := testChannel(dialer)

	var mu sync.Mutex
	var got []domain.Message
	ch.OnMessage("price", func(msg domain.Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
	})

	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Disconnect()

	conn := dialer.lastConn()
	conn.inbound <- []byte(`{not json`)
	conn.push(t, domain.Message{Type: "price", Data: json.RawMessage(`{"price":"1"}`)})

	// the valid message behind the malformed one still arrives
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, domain.StateConnected, ch.State())
}

func TestChannel_HeartbeatSendsPing(t *testing.T) {
	dialer := &fakeDialer{}
	ch := New(Config{
		BaseURL:              "wss://example.test/realtime",
		UserID:               "user-1",
		HeartbeatInterval:    5 * time.Millisecond,
		ReconnectInterval:    time.Millisecond,
		MaxReconnectAttempts: 5,
	}, dialer, zap.NewNop())

	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Disconnect()

	conn := dialer.lastConn()
	require.Eventually(t, func() bool {
		return len(conn.sentOfType(domain.MessageTypePing)) >= 2
	}, time.Second, time.Millisecond)

	// pong is consumed silently
	conn.push(t, domain.Message{Type: domain.MessageTypePong})
	assert.Equal(t, domain.StateConnected, ch.State())
}

func TestChannel_StateChangeNotifications(t *testing.T) {
	dialer := &fakeDialer{}
	ch := testChannel(dialer)

	var mu sync.Mutex
	var states []domain.ConnectionState
	ch.OnStateChange(func(state domain.ConnectionState) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, state)
	})

	require.NoError(t, ch.Connect(context.Background()))
	ch.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.ConnectionState{
		domain.StateConnecting,
		domain.StateConnected,
		domain.StateDisconnected,
	}, states)
}
