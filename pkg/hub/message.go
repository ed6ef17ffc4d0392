// Package hub fans pipeline events out to websocket subscribers
// using the channel-based broadcast pattern.
package hub

// Message is a single broadcast payload, delivered as a text frame.
type Message struct {
	Data []byte
}

// NewJSONMessage creates a message from pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}
