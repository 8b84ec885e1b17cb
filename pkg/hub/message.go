// Package hub fans watcher telemetry out to websocket subscribers over a
// channel-based broadcast loop. One goroutine owns the client set; slow
// subscribers are dropped rather than allowed to stall the pipeline.
package hub

// MessageType indicates the websocket message format.
type MessageType int

const (
	// JSONMessage is a JSON-encoded telemetry payload.
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data such as an encoded frame.
	BinaryMessage
)

// Message is one payload to fan out to all subscribers.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON bytes.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps binary data.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
