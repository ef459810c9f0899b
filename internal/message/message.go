// Package message provides the received MQTT message model, its text decoding and the JSON envelope stored by the recorder.
package message

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/ibs-source/mqtt-subscriber/pkg/jsonfast"
)

// Payload is the canonical alias for raw message body
type Payload = []byte

// ErrInvalidUTF8 is returned by Decode when a payload is not valid UTF-8 text.
var ErrInvalidUTF8 = errors.New("payload is not valid UTF-8")

// Received is a message delivered by the broker on a subscribed topic
type Received struct {
	Topic      string
	Payload    Payload
	QoS        byte
	Retained   bool
	MessageID  uint16
	ReceivedAt time.Time
}

// Decode returns the payload as text. Invalid UTF-8 is rejected, not replaced.
func Decode(payload Payload) (string, error) {
	if !utf8.Valid(payload) {
		return "", ErrInvalidUTF8
	}
	return string(payload), nil
}

// Text decodes the message payload.
func (r Received) Text() (string, error) {
	return Decode(r.Payload)
}

// Encode renders the recorder envelope:
// {"topic","payload","qos","retained","message_id","received_at"}.
func (r Received) Encode() ([]byte, error) {
	text, err := r.Text()
	if err != nil {
		return nil, err
	}
	b := jsonfast.New(len(r.Topic) + len(text) + 128)
	b.BeginObject()
	b.AddStringField("topic", r.Topic)
	b.AddStringField("payload", text)
	b.AddIntField("qos", int(r.QoS))
	b.AddBoolField("retained", r.Retained)
	b.AddIntField("message_id", int(r.MessageID))
	b.AddTimeRFC3339MilliField("received_at", r.ReceivedAt)
	b.EndObject()
	return b.Bytes(), nil
}
