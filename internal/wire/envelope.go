// Package wire defines the JSON envelope exchanged over a websocket
// connection. Every frame carries one named event and an opaque payload;
// request/response events additionally carry an ack id.
package wire

import (
	"encoding/json"
	"errors"
)

// EventAck names the direct acknowledgment frame answering a request.
const EventAck = "ack"

// ErrMissingEvent is returned by Decode for frames without an event name.
var ErrMissingEvent = errors.New("frame has no event name")

// Envelope is a single framed event.
type Envelope struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NeedsAck reports whether the sender expects an acknowledgment frame.
func (e Envelope) NeedsAck() bool {
	return e.ID != nil
}

// Encode marshals an outbound event with its payload.
func Encode(event string, payload any) ([]byte, error) {
	return encode(event, nil, payload)
}

// EncodeAck marshals the acknowledgment for request id.
func EncodeAck(id int64, payload any) ([]byte, error) {
	return encode(EventAck, &id, payload)
}

func encode(event string, id *int64, payload any) ([]byte, error) {
	env := Envelope{Event: event, ID: id}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses one inbound frame.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return env, nil
}
