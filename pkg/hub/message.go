// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import "encoding/json"

// Message kinds sent to dashboard clients.
const (
	KindSample = "sample"
	KindTrack  = "track"
	KindState  = "state"
)

// Envelope is the JSON frame every client receives.
type Envelope struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

// Message is a pre-encoded text frame.
type Message struct {
	Kind string
	Data []byte
}

// NewMessage encodes an envelope of the given kind.
func NewMessage(kind string, v any) (Message, error) {
	data, err := json.Marshal(Envelope{Kind: kind, Data: v})
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: kind, Data: data}, nil
}

// coalesce drops every track update in batch but the last. Track updates
// only carry the latest ROI, so a client that fell behind needs just the
// newest one; samples and state changes are all kept, in order.
func coalesce(batch []Message) []Message {
	last := -1
	for i, m := range batch {
		if m.Kind == KindTrack {
			last = i
		}
	}
	out := batch[:0]
	for i, m := range batch {
		if m.Kind == KindTrack && i != last {
			continue
		}
		out = append(out, m)
	}
	return out
}
