package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	amqp "github.com/rabbitmq/amqp091-go"

	"say-hi/errors"
)

// HandlerFunc processes one action's payload. A returned error is a modeled
// failure: it becomes an error-shaped reply and the message is still
// acknowledged. Only a panic counts as an unexpected fault.
type HandlerFunc func(ctx context.Context, data json.RawMessage) (Reply, error)

// ActionTable maps action names to handlers. It is registered once at bind
// time and read concurrently afterwards; never mutate it while bound.
type ActionTable map[string]HandlerFunc

// replyPublisher is the slice of Channel the dispatcher needs, split out so
// tests can capture outbound replies without a broker.
type replyPublisher interface {
	Publish(ctx context.Context, queue string, body []byte, correlationID, replyTo string) error
}

// Consumer binds one queue to an action table and dispatches inbound
// requests. Handlers run concurrently up to the prefetch limit and must not
// assume serialized access to shared state beyond what storage guarantees.
type Consumer struct {
	ch       *Channel
	out      replyPublisher
	log      *slog.Logger
	prefetch int
}

func NewConsumer(ch *Channel, log *slog.Logger, prefetch int) *Consumer {
	return &Consumer{ch: ch, out: ch, log: log, prefetch: prefetch}
}

// Bind declares the queue and consumes it until the context ends or the
// delivery stream closes. It is shaped as a worker Run function so a
// supervisor can restart it after the channel reconnects.
func (c *Consumer) Bind(ctx context.Context, queue string, actions ActionTable, durable bool) error {
	if err := c.ch.DeclareQueue(queue, durable); err != nil {
		return err
	}
	if err := c.ch.Qos(c.prefetch); err != nil {
		return err
	}
	deliveries, err := c.ch.Consume(queue, "", false)
	if err != nil {
		return err
	}
	c.log.Info("Listening on queue", "queue", queue)

	sem := make(chan struct{}, c.prefetch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%w: delivery stream for %s closed", errors.ErrTransport, queue)
			}
			sem <- struct{}{}
			go func() {
				defer func() { <-sem }()
				c.dispatch(ctx, d, actions)
			}()
		}
	}
}

// dispatch handles a single delivery end to end: decode, invoke, reply,
// settle. The inbound message is acknowledged only after the handler
// finished, successfully or with a modeled failure. A panic is settled with
// a nack without requeue: poison messages must not loop forever, a loss we
// accept over a retry storm (a dead-letter queue would be the kinder home
// for them, see DESIGN.md).
func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, actions ActionTable) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Handler fault, dropping message",
				"queue", d.RoutingKey, "correlationId", d.CorrelationId, "panic", r)
			_ = d.Nack(false, false)
		}
	}()

	var req Request
	if err := json.Unmarshal(d.Body, &req); err != nil {
		c.log.Error("Undecodable message body, dropping", "error", err)
		_ = d.Nack(false, false)
		return
	}

	var reply Reply
	handler, known := actions[req.Action]
	switch {
	case !known:
		// A client logic error, not a transient fault: reply, ack, move on.
		// Redelivery would produce the same mismatch forever.
		c.log.Warn("Unknown action", "action", req.Action)
		reply = Fail(http.StatusBadRequest, fmt.Sprintf("%s: %s", errors.ErrUnknownAction, req.Action))
	default:
		res, err := handler(ctx, req.Data)
		if err != nil {
			c.log.Error("Handler returned error", "action", req.Action, "error", err)
			reply = Fail(http.StatusInternalServerError, err.Error())
		} else {
			reply = res
		}
	}

	// replyTo present means the caller is waiting; absent means
	// fire-and-forget and no reply is attempted. Same dispatch path either way.
	if d.ReplyTo != "" {
		body, err := json.Marshal(reply)
		if err == nil {
			err = c.out.Publish(ctx, d.ReplyTo, body, d.CorrelationId, "")
		}
		if err != nil {
			c.log.Error("Reply publish failed", "action", req.Action, "error", err)
		}
	}

	_ = d.Ack(false)
}
