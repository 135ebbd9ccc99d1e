package amqp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu        sync.Mutex
	notify    chan *amqp.Error
	declared  []string
	prefetch  int
	published []amqp.Publishing
	closed    bool
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared = append(c.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetchCount
	return nil
}

func (c *fakeChannel) ConsumeWithContext(context.Context, string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	d := make(chan amqp.Delivery)
	close(d)
	return d, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = receiver
	return receiver
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) watched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notify != nil
}

func (c *fakeChannel) drop(err *amqp.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify <- err
}

type fakeConn struct {
	mu              sync.Mutex
	notify          chan *amqp.Error
	channels        []*fakeChannel
	channelFailures int
	channelCalls    int
	closed          bool
}

func (c *fakeConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = receiver
	return receiver
}

func (c *fakeConn) Channel() (brokerChannel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channelCalls++
	if c.channelFailures > 0 {
		c.channelFailures--
		return nil, errors.New("channel not available")
	}
	ch := &fakeChannel{}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) watched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notify != nil
}

func (c *fakeConn) drop(err *amqp.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify <- err
}

func (c *fakeConn) opened() []*fakeChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeChannel(nil), c.channels...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer fails the next failures dials and hands out a new fakeConn
// otherwise.
type fakeDialer struct {
	mu       sync.Mutex
	uris     []string
	conns    []*fakeConn
	failures int
}

func (d *fakeDialer) dial(uri string, _ amqp.Config) (brokerConnection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uris = append(d.uris, uri)
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) failNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = n
}

func (d *fakeDialer) calls() (int, []*fakeConn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.uris), append([]*fakeConn(nil), d.conns...)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.URI = "amqp://broker:5672/"
	cfg.ReconnectTimeout = time.Millisecond
	return cfg
}

func TestDialFailure(t *testing.T) {
	d := &fakeDialer{failures: 1}
	_, err := dial(context.Background(), testConfig(), zerolog.Nop(), d.dial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestConnectionRedialsAfterClose(t *testing.T) {
	d := &fakeDialer{}
	conn, err := dial(context.Background(), testConfig(), zerolog.Nop(), d.dial)
	require.NoError(t, err)
	_, conns := d.calls()
	first := conns[0]
	require.Eventually(t, first.watched, time.Second, time.Millisecond)

	d.failNext(2)
	first.drop(amqp.ErrClosed)

	require.Eventually(t, func() bool {
		n, _ := d.calls()
		return n == 4
	}, time.Second, time.Millisecond)
	_, conns = d.calls()
	require.Len(t, conns, 2)
	require.Eventually(t, func() bool { return conn.current() == brokerConnection(conns[1]) }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"amqp://broker:5672/"}, d.uris[:1])

	require.NoError(t, conn.Close())
	assert.True(t, conns[1].isClosed())
	assert.False(t, first.isClosed())
	assert.ErrorIs(t, conn.Close(), ErrConnAlreadyClosed)
}

func TestConnectionStopsRedialOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &fakeDialer{}
	cfg := testConfig()
	cfg.ReconnectTimeout = time.Hour
	conn, err := dial(ctx, cfg, zerolog.Nop(), d.dial)
	require.NoError(t, err)
	_, conns := d.calls()
	require.Eventually(t, conns[0].watched, time.Second, time.Millisecond)

	d.failNext(1)
	conns[0].drop(amqp.ErrClosed)
	require.Eventually(t, func() bool {
		n, _ := d.calls()
		return n == 2
	}, time.Second, time.Millisecond)
	cancel()

	time.Sleep(10 * time.Millisecond)
	n, _ := d.calls()
	assert.Equal(t, 2, n)
	assert.True(t, conn.current() == brokerConnection(conns[0]))
}

func TestChannelReopensOnCurrentConnection(t *testing.T) {
	ctx := context.Background()
	d := &fakeDialer{}
	conn, err := dial(ctx, testConfig(), zerolog.Nop(), d.dial)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_, conns := d.calls()
	broker := conns[0]

	ch, err := conn.Channel(ctx)
	require.NoError(t, err)
	first := broker.opened()[0]
	require.Eventually(t, first.watched, time.Second, time.Millisecond)

	broker.mu.Lock()
	broker.channelFailures = 1
	broker.mu.Unlock()
	first.drop(&amqp.Error{Code: amqp.PreconditionFailed, Reason: "inequivalent arg"})

	require.Eventually(t, func() bool { return len(broker.opened()) == 2 }, time.Second, time.Millisecond)
	second := broker.opened()[1]
	require.Eventually(t, func() bool { return ch.current() == brokerChannel(second) }, time.Second, time.Millisecond)

	require.NoError(t, ch.Declare(3, "requests", "responses"))
	assert.Equal(t, []string{"requests", "responses"}, second.declared)
	assert.Equal(t, 3, second.prefetch)
	require.NoError(t, ch.Publish(ctx, "", "requests", amqp.Publishing{Body: []byte("x")}))
	assert.Len(t, second.published, 1)
	assert.Empty(t, first.published)

	require.NoError(t, ch.Close())
	assert.True(t, ch.IsClosed())
	assert.True(t, second.closed)
	assert.ErrorIs(t, ch.Close(), ErrChannelAlreadyClosed)
}

func TestChannelOpenFailure(t *testing.T) {
	d := &fakeDialer{}
	conn, err := dial(context.Background(), testConfig(), zerolog.Nop(), d.dial)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_, conns := d.calls()
	conns[0].channelFailures = 1

	_, err = conn.Channel(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open amqp channel")
}
