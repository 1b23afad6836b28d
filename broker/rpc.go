package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"say-hi/errors"
)

// RPCClient issues blocking calls over the broker. Each call gets its own
// exclusive reply queue and a random correlation id; the reply consumer
// resolves the matching pending entry and everything else is dropped.
// "Blocking" is per call only: concurrent calls to the same queue complete
// in whatever order their replies arrive.
type RPCClient struct {
	ch      *Channel
	log     *slog.Logger
	pending *pendingCalls
}

func NewRPCClient(ch *Channel, log *slog.Logger) *RPCClient {
	return &RPCClient{ch: ch, log: log, pending: newPendingCalls()}
}

// Call publishes {action, data} to queue and waits for the correlated reply.
//
// Failure modes: ErrChannelUnavailable when no connection was established,
// ErrTransport when the broker rejects the publish, ErrCallTimeout when no
// reply arrives in time. A timeout means unknown outcome: the handler on
// the other side may still run to completion, only its reply is discarded.
func (c *RPCClient) Call(ctx context.Context, queue, action string, data any, timeout time.Duration) (Reply, error) {
	if !c.ch.Ready() {
		return Reply{}, errors.ErrChannelUnavailable
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return Reply{}, fmt.Errorf("encoding request data: %w", err)
	}
	body, err := json.Marshal(Request{Action: action, Data: payload})
	if err != nil {
		return Reply{}, fmt.Errorf("encoding request: %w", err)
	}

	replyQueue, err := c.ch.DeclareReplyQueue()
	if err != nil {
		return Reply{}, err
	}

	// Random 128-bit token. Uniqueness among outstanding calls is what the
	// matching relies on; collisions are treated as negligible, not impossible.
	correlationID := uuid.NewString()
	result := c.pending.add(correlationID)
	defer c.pending.drop(correlationID)

	// The correlation id doubles as the consumer tag so the one-shot
	// subscription can be cancelled by name once the call settles.
	deliveries, err := c.ch.Consume(replyQueue, correlationID, true)
	if err != nil {
		return Reply{}, err
	}
	go c.dispatchReplies(deliveries)
	defer func() {
		// Cancelling the consumer lets the broker reclaim the auto-deleted
		// reply queue. Runs on every exit path, success and timeout alike.
		if cancelErr := c.ch.CancelConsumer(correlationID); cancelErr != nil {
			c.log.Debug("Reply consumer cancel failed", "error", cancelErr)
		}
	}()

	if err := c.ch.Publish(ctx, queue, body, correlationID, replyQueue); err != nil {
		return Reply{}, err
	}

	select {
	case reply := <-result:
		return reply, nil
	case <-time.After(timeout):
		return Reply{}, fmt.Errorf("%w: no reply from %s.%s after %s", errors.ErrCallTimeout, queue, action, timeout)
	case <-ctx.Done():
		return Reply{}, fmt.Errorf("%w: %v", errors.ErrCallTimeout, ctx.Err())
	}
}

// Notify publishes {action, data} to queue without a replyTo header.
// Fire-and-forget: the consumer sees the same wire shape as a Call but
// sends no reply.
func (c *RPCClient) Notify(ctx context.Context, queue, action string, data any) error {
	if !c.ch.Ready() {
		return errors.ErrChannelUnavailable
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding request data: %w", err)
	}
	body, err := json.Marshal(Request{Action: action, Data: payload})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return c.ch.Publish(ctx, queue, body, "", "")
}

// dispatchReplies routes every delivery on a reply queue through the
// pending table. Mismatched correlation ids are dropped without touching
// any other call; they defend against consumers retained from earlier
// timed-out calls. The loop ends when the consumer is cancelled.
func (c *RPCClient) dispatchReplies(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		var reply Reply
		if err := json.Unmarshal(d.Body, &reply); err != nil {
			c.log.Warn("Discarding undecodable reply", "correlationId", d.CorrelationId, "error", err)
			continue
		}
		if !c.pending.resolve(d.CorrelationId, reply) {
			c.log.Debug("Dropping stale or unmatched reply", "correlationId", d.CorrelationId)
		}
	}
}
