package workers

import (
	"context"

	"say-hi/broker"
)

// QueueWorker keeps one queue bound to its action table. The supervisor
// restarts it when the delivery stream drops, which combined with the
// channel's reconnect backoff gives the consumer its resume-after-outage
// behavior.
type QueueWorker struct {
	consumer *broker.Consumer
	queue    string
	actions  broker.ActionTable
	durable  bool
}

func NewQueueWorker(consumer *broker.Consumer, queue string, actions broker.ActionTable, durable bool) *QueueWorker {
	return &QueueWorker{consumer: consumer, queue: queue, actions: actions, durable: durable}
}

func (w *QueueWorker) Run(ctx context.Context) error {
	return w.consumer.Bind(ctx, w.queue, w.actions, w.durable)
}
