package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"say-hi/errors"
)

const (
	maxReconnectBackoff = 30 * time.Second
	initialBackoff      = 500 * time.Millisecond
)

// Channel owns one AMQP connection and one channel on top of it.
// The amqp client forbids concurrent use of a channel, so every operation
// goes through the mutex. Constructors take a Channel explicitly instead of
// reading a package-level singleton, which keeps test instances independent
// and gives each process a clean init/teardown.
type Channel struct {
	mu   sync.Mutex
	log  *slog.Logger
	url  string
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewChannel(log *slog.Logger, url string) *Channel {
	return &Channel{log: log, url: url}
}

// Connect dials the broker, retrying with exponential backoff until the
// context is cancelled. In-flight calls on a lost channel fail with
// ErrTransport; reconnection only helps subsequent calls.
func (c *Channel) Connect(ctx context.Context) error {
	backoff := initialBackoff
	for {
		conn, err := amqp.Dial(c.url)
		if err == nil {
			ch, chErr := conn.Channel()
			if chErr == nil {
				c.mu.Lock()
				c.conn = conn
				c.ch = ch
				c.mu.Unlock()
				c.log.Info("Connected to RabbitMQ")
				return nil
			}
			_ = conn.Close()
			err = chErr
		}

		c.log.Warn("Broker connection failed, retrying", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errors.ErrChannelUnavailable, ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < maxReconnectBackoff {
			backoff *= 2
		}
	}
}

// Ready reports whether a channel has been established.
func (c *Channel) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch != nil
}

// DeclareQueue asserts a named queue. Safe to call when the queue already
// exists with the same durability.
func (c *Channel) DeclareQueue(name string, durable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return errors.ErrChannelUnavailable
	}
	_, err := c.ch.QueueDeclare(name, durable, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%w: declare %s: %v", errors.ErrTransport, name, err)
	}
	return nil
}

// DeclareReplyQueue asserts a server-named, exclusive, auto-deleted queue
// used to receive exactly one call's replies. The broker reclaims it when
// its consumer goes away.
func (c *Channel) DeclareReplyQueue() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return "", errors.ErrChannelUnavailable
	}
	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", fmt.Errorf("%w: declare reply queue: %v", errors.ErrTransport, err)
	}
	return q.Name, nil
}

// Publish sends a message directly to a queue through the default exchange.
func (c *Channel) Publish(ctx context.Context, queue string, body []byte, correlationID, replyTo string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return errors.ErrChannelUnavailable
	}
	err := c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		CorrelationId: correlationID,
		ReplyTo:       replyTo,
	})
	if err != nil {
		return fmt.Errorf("%w: publish to %s: %v", errors.ErrTransport, queue, err)
	}
	return nil
}

// Consume starts delivering messages from a queue. The returned channel is
// closed by the client when the consumer is cancelled or the channel dies.
func (c *Channel) Consume(queue, consumerTag string, autoAck bool) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return nil, errors.ErrChannelUnavailable
	}
	deliveries, err := c.ch.Consume(queue, consumerTag, autoAck, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: consume %s: %v", errors.ErrTransport, queue, err)
	}
	return deliveries, nil
}

// CancelConsumer stops a consumer subscription by tag.
func (c *Channel) CancelConsumer(tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return errors.ErrChannelUnavailable
	}
	return c.ch.Cancel(tag, false)
}

// Qos bounds the number of unacknowledged deliveries per consumer.
func (c *Channel) Qos(prefetch int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return errors.ErrChannelUnavailable
	}
	return c.ch.Qos(prefetch, 0, false)
}

func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
