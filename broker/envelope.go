// Package broker implements the request/reply convention used between
// services over RabbitMQ: JSON {action, data} bodies, correlationId and
// replyTo carried as message properties, and well-known queue names shared
// by convention.
package broker

import (
	"encoding/json"
	"net/http"
)

// Well-known queues. Each service owns exactly one of them.
const (
	AuthQueue = "AUTH_QUEUE"
	UserQueue = "USER_QUEUE"
	MailQueue = "MAIL_QUEUE"
	ChatQueue = "CHAT_QUEUE"
)

// Request is the wire shape of every inbound broker message, whether a
// reply is expected or not. Fire-and-forget messages simply omit replyTo
// on the AMQP envelope; the body is identical.
type Request struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Reply mirrors the historical result contract: an HTTP-ish status that the
// gateway maps straight onto its response, plus an optional payload.
type Reply struct {
	Success bool            `json:"success"`
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Token   string          `json:"token,omitempty"`
}

// OK builds a success reply. A nil payload yields no data field at all.
func OK(status int, message string, payload any) Reply {
	r := Reply{Success: true, Status: status, Message: message}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Fail(http.StatusInternalServerError, "encoding reply payload failed")
		}
		r.Data = data
	}
	return r
}

func Fail(status int, message string) Reply {
	return Reply{Success: false, Status: status, Message: message}
}

// Decode unmarshals an action payload into a concrete request type.
func Decode[T any](data json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
