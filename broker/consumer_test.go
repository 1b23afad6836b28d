package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

type fakeAck struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAck) Ack(_ uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = true
	return nil
}

func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAck) Reject(_ uint64, requeue bool) error {
	return f.Nack(0, false, requeue)
}

type sentReply struct {
	queue         string
	correlationID string
	reply         Reply
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []sentReply
}

func (f *fakePublisher) Publish(_ context.Context, queue string, body []byte, correlationID, _ string) error {
	var r Reply
	if err := json.Unmarshal(body, &r); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentReply{queue: queue, correlationID: correlationID, reply: r})
	return nil
}

func newTestConsumer(out replyPublisher) *Consumer {
	return &Consumer{out: out, log: slog.Default(), prefetch: 1}
}

func delivery(ack amqp.Acknowledger, action string, data, replyTo, correlationID string) amqp.Delivery {
	body, _ := json.Marshal(Request{Action: action, Data: json.RawMessage(data)})
	return amqp.Delivery{
		Acknowledger:  ack,
		Body:          body,
		ReplyTo:       replyTo,
		CorrelationId: correlationID,
	}
}

func TestDispatch_HandlerReplyEchoesCorrelationID(t *testing.T) {
	req := require.New(t)
	out := &fakePublisher{}
	c := newTestConsumer(out)
	ack := &fakeAck{}

	actions := ActionTable{
		"login": func(_ context.Context, data json.RawMessage) (Reply, error) {
			var body struct {
				Email string `json:"email"`
			}
			req.NoError(json.Unmarshal(data, &body))
			return OK(http.StatusOK, "Logged in successfully", body), nil
		},
	}

	c.dispatch(context.Background(), delivery(ack, "login", `{"email":"a@b.c"}`, "amq.reply-1", "corr-42"), actions)

	req.True(ack.acked)
	req.False(ack.nacked)
	req.Len(out.sent, 1)
	req.Equal("amq.reply-1", out.sent[0].queue)
	req.Equal("corr-42", out.sent[0].correlationID)
	req.True(out.sent[0].reply.Success)
}

func TestDispatch_UnknownActionRepliesErrorAndAcks(t *testing.T) {
	req := require.New(t)
	out := &fakePublisher{}
	c := newTestConsumer(out)
	ack := &fakeAck{}

	c.dispatch(context.Background(), delivery(ack, "foo", `{}`, "amq.reply-2", "corr-7"), ActionTable{})

	// Never silently dropped: the caller gets an error-shaped reply and the
	// message is acknowledged so it cannot be redelivered.
	req.True(ack.acked)
	req.False(ack.nacked)
	req.Len(out.sent, 1)
	req.False(out.sent[0].reply.Success)
	req.Equal(http.StatusBadRequest, out.sent[0].reply.Status)
	req.Contains(out.sent[0].reply.Message, "foo")
}

func TestDispatch_FireAndForgetSendsNoReply(t *testing.T) {
	req := require.New(t)
	out := &fakePublisher{}
	c := newTestConsumer(out)
	ack := &fakeAck{}

	called := false
	actions := ActionTable{
		"send_mail": func(_ context.Context, _ json.RawMessage) (Reply, error) {
			called = true
			return OK(http.StatusOK, "Email sent successfully", nil), nil
		},
	}

	c.dispatch(context.Background(), delivery(ack, "send_mail", `{}`, "", ""), actions)

	req.True(called)
	req.True(ack.acked)
	req.Empty(out.sent)
}

func TestDispatch_ModeledHandlerErrorRepliesAndAcks(t *testing.T) {
	req := require.New(t)
	out := &fakePublisher{}
	c := newTestConsumer(out)
	ack := &fakeAck{}

	actions := ActionTable{
		"register": func(_ context.Context, _ json.RawMessage) (Reply, error) {
			return Reply{}, context.DeadlineExceeded
		},
	}

	c.dispatch(context.Background(), delivery(ack, "register", `{}`, "amq.reply-3", "corr-9"), actions)

	req.True(ack.acked)
	req.Len(out.sent, 1)
	req.False(out.sent[0].reply.Success)
	req.Equal(http.StatusInternalServerError, out.sent[0].reply.Status)
}

func TestDispatch_PanicNacksWithoutRequeue(t *testing.T) {
	req := require.New(t)
	out := &fakePublisher{}
	c := newTestConsumer(out)
	ack := &fakeAck{}

	actions := ActionTable{
		"boom": func(_ context.Context, _ json.RawMessage) (Reply, error) {
			panic("unexpected storage corruption")
		},
	}

	c.dispatch(context.Background(), delivery(ack, "boom", `{}`, "amq.reply-4", "corr-11"), actions)

	req.True(ack.nacked)
	req.False(ack.requeue, "poison messages must not be requeued")
	req.False(ack.acked)
	req.Empty(out.sent)
}

func TestDispatch_MalformedBodyNacksWithoutRequeue(t *testing.T) {
	req := require.New(t)
	out := &fakePublisher{}
	c := newTestConsumer(out)
	ack := &fakeAck{}

	c.dispatch(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("not json")}, ActionTable{})

	req.True(ack.nacked)
	req.False(ack.requeue)
	req.Empty(out.sent)
}
