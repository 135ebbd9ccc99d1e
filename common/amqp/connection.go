package amqp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var (
	ErrConnAlreadyClosed    = errors.New("connection is already closed")
	ErrChannelAlreadyClosed = errors.New("channel is already closed")
)

// brokerConnection is the part of *amqp.Connection the wrapper drives.
type brokerConnection interface {
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Channel() (brokerChannel, error)
	Close() error
}

// brokerChannel is satisfied by *amqp.Channel.
type brokerChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

type dialFunc func(uri string, cfg amqp.Config) (brokerConnection, error)

type liveConnection struct {
	*amqp.Connection
}

func (c liveConnection) Channel() (brokerChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialBroker(uri string, cfg amqp.Config) (brokerConnection, error) {
	c, err := amqp.DialConfig(uri, cfg)
	if err != nil {
		return nil, err
	}
	return liveConnection{c}, nil
}

// Connection redials the broker after an unexpected close until Close is
// called.
type Connection struct {
	l    zerolog.Logger
	uri  string
	opts amqp.Config
	conn brokerConnection
	dial dialFunc

	reconnectTimeout time.Duration

	reconnectLock sync.RWMutex
	closed        atomic.Bool

	cancel context.CancelFunc
}

func Dial(ctx context.Context, cfg *Config, l zerolog.Logger) (*Connection, error) {
	return dial(ctx, cfg, l, dialBroker)
}

func dial(ctx context.Context, cfg *Config, l zerolog.Logger, dialer dialFunc) (*Connection, error) {
	opts := cfg.dialConfig()
	c, err := dialer(cfg.URI, opts)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp connection")
	}
	ctx, cancel := context.WithCancel(ctx)
	conn := &Connection{
		uri:              cfg.URI,
		opts:             opts,
		conn:             c,
		dial:             dialer,
		cancel:           cancel,
		reconnectTimeout: cfg.ReconnectTimeout,
		l:                l.With().Str("component", "amqp-connection").Logger(),
	}
	go conn.runNotifyWatcher(ctx)
	return conn, nil
}

func (c *Connection) current() brokerConnection {
	c.reconnectLock.RLock()
	defer c.reconnectLock.RUnlock()
	return c.conn
}

func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return ErrConnAlreadyClosed
	}
	c.cancel()
	if err := c.current().Close(); err != nil {
		return errors.Wrap(err, "close amqp connection")
	}
	return nil
}

func (c *Connection) runNotifyWatcher(ctx context.Context) {
	for {
		notify := c.current().NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-ctx.Done():
			c.l.Debug().Msg("watcher stopped")
			return
		case err, ok := <-notify:
			if !ok || c.closed.Load() {
				c.l.Debug().Msg("watcher stopped")
				return
			}
			c.l.Warn().Err(err).Msg("connection closed, try to reconnect")
			if !c.redial(ctx) {
				return
			}
			c.l.Info().Msg("amqp connection reconnected")
		}
	}
}

func (c *Connection) redial(ctx context.Context) bool {
	for {
		if c.closed.Load() {
			return false
		}
		cc, err := c.dial(c.uri, c.opts)
		if err == nil {
			c.reconnectLock.Lock()
			c.conn = cc
			c.reconnectLock.Unlock()
			return true
		}
		c.l.Warn().Err(err).Msg("amqp connection error")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.reconnectTimeout):
		}
	}
}

// Channel wraps an amqp channel that is reopened on the current connection
// after a channel level error.
type Channel struct {
	l    zerolog.Logger
	ch   brokerChannel
	conn *Connection

	reconnectTimeout time.Duration

	reconnectLock sync.RWMutex
	closed        atomic.Bool

	cancel context.CancelFunc
}

func (c *Connection) Channel(ctx context.Context) (*Channel, error) {
	amqpCh, err := c.current().Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open amqp channel")
	}
	ctx, cancel := context.WithCancel(ctx)
	ch := &Channel{
		ch:               amqpCh,
		conn:             c,
		reconnectTimeout: c.reconnectTimeout,
		cancel:           cancel,
		l:                c.l.With().Str("component", "amqp-channel").Logger(),
	}
	go ch.runNotifyWatcher(ctx)
	return ch, nil
}

func (ch *Channel) current() brokerChannel {
	ch.reconnectLock.RLock()
	defer ch.reconnectLock.RUnlock()
	return ch.ch
}

func (ch *Channel) Close() error {
	if ch.closed.Swap(true) {
		return ErrChannelAlreadyClosed
	}
	ch.cancel()
	if err := ch.current().Close(); err != nil {
		return errors.Wrap(err, "close amqp channel")
	}
	return nil
}

func (ch *Channel) IsClosed() bool {
	return ch.closed.Load()
}

// Declare declares durable queues and sets the prefetch window.
func (ch *Channel) Declare(prefetch int, queues ...string) error {
	c := ch.current()
	for _, queue := range queues {
		if _, err := c.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return errors.Wrapf(err, "declare queue %s", queue)
		}
	}
	if prefetch > 0 {
		if err := c.Qos(prefetch, 0, false); err != nil {
			return errors.Wrap(err, "set qos")
		}
	}
	return nil
}

func (ch *Channel) Consume(ctx context.Context, queue, consumer string) <-chan amqp.Delivery {
	deliveries := make(chan amqp.Delivery)
	go ch.runConsumer(ctx, deliveries, queue, consumer)
	return deliveries
}

func (ch *Channel) runConsumer(ctx context.Context, deliveries chan<- amqp.Delivery, queue, consumer string) {
	defer close(deliveries)
	for {
		d, err := ch.current().ConsumeWithContext(ctx, queue, consumer, false, false, false, false, nil)
		if err != nil {
			ch.l.Error().Err(err).Msg("failed to consume")
			select {
			case <-ctx.Done():
				return
			case <-time.After(ch.reconnectTimeout):
				continue
			}
		}
		for msg := range d {
			select {
			case deliveries <- msg:
			case <-ctx.Done():
				return
			}
		}
		if ch.IsClosed() || ctx.Err() != nil {
			return
		}
	}
}

func (ch *Channel) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	if err := ch.current().PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
		return errors.Wrap(err, "publish")
	}
	return nil
}

func (ch *Channel) runNotifyWatcher(ctx context.Context) {
	for {
		notify := ch.current().NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-ctx.Done():
			ch.l.Debug().Msg("watcher stopped")
			return
		case amqpErr, ok := <-notify:
			if ch.closed.Load() {
				return
			}
			event := ch.l.Warn()
			if ok {
				event = event.Err(amqpErr)
			}
			event.Msg("channel closed, try to reopen")
			if !ch.reopen(ctx) {
				return
			}
			ch.l.Info().Msg("amqp channel reopened")
		}
	}
}

func (ch *Channel) reopen(ctx context.Context) bool {
	for {
		if ch.closed.Load() {
			return false
		}
		cch, err := ch.conn.current().Channel()
		if err == nil {
			ch.reconnectLock.Lock()
			ch.ch = cch
			ch.reconnectLock.Unlock()
			return true
		}
		ch.l.Warn().Err(err).Msg("amqp channel error")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(ch.reconnectTimeout):
		}
	}
}
