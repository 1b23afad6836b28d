//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"

	"say-hi/broker"
	"say-hi/domain/event"
)

// Emitter pushes an event to a set of realtime connections. Implementations
// deliver best effort: a dead connection is dropped, never retried.
type Emitter interface {
	Emit(ctx context.Context, connectionIDs []string, e event.Event)
}

// IPresence is the delivery engine's view of the presence registry.
type IPresence interface {
	SetOnline(userID, connectionID string)
	SetOffline(connectionID string)
	Lookup(userID string) (string, bool)
	Subscribe(userID string, chatID uuid.UUID)
	Unsubscribe(userID string, chatID uuid.UUID)
	IsViewing(userID string, chatID uuid.UUID) bool
	ViewerConnections(chatID uuid.UUID) []string
}

// ICaller is the outbound half of the broker RPC protocol, abstracted so
// services that issue calls (auth -> mail) can be tested without a broker.
type ICaller interface {
	Call(ctx context.Context, queue, action string, data any, timeout time.Duration) (broker.Reply, error)
}

// INotifier is the fire-and-forget half: same wire shape as a call, no
// replyTo, so the consumer never answers.
type INotifier interface {
	Notify(ctx context.Context, queue, action string, data any) error
}

// IMailer sends one outbound mail.
type IMailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself; supervision handles panics and restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker, so
// supervision logs never depend on manual naming.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
