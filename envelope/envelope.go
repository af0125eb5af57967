// Package envelope defines the {event, data} message unit exchanged with the bot's WebSocket
// endpoint, plus the event-tag vocabulary used in both directions.
//
// Every frame on the wire is a JSON text frame shaped like
//
//	{"event": "playlist", "data": {"playlist": [...]}}
//
// The event tag is an open string enum and the data shape depends on the tag (and, for a few
// tags such as "play" or "initialize", on which page the socket serves).
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoEvent is returned by Decode when the frame is valid JSON but carries no event tag.
var ErrNoEvent = errors.New("envelope: missing event")

// Envelope is the only wire contract.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// New builds an envelope, marshalling data when it is non-nil.
func New(event string, data any) (Envelope, error) {
	env := Envelope{Event: event}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s data: %w", event, err)
	}
	env.Data = raw
	return env, nil
}

// Decode parses one text frame. A frame whose event is absent or empty yields ErrNoEvent so the
// caller can drop it without treating it as malformed.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, ErrNoEvent
	}
	return env, nil
}

// Encode serializes the envelope into a text frame.
func (e Envelope) Encode() ([]byte, error) {
	if e.Event == "" {
		return nil, ErrNoEvent
	}
	return json.Marshal(e)
}

// HasData reports whether the envelope carries a non-null data object.
func (e Envelope) HasData() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// DecodeData unmarshals the data member into v. An absent or null data member leaves v untouched.
func (e Envelope) DecodeData(v any) error {
	if !e.HasData() {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", e.Event, err)
	}
	return nil
}
