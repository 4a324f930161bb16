package linesock

// Message is the interface for messages transmitted over the connection.
// Implementations should provide the message length and body.
type Message interface {
	// Length returns the length of the message body.
	Length() int
	// Body returns the raw message data.
	Body() []byte
}

// Decoder extracts messages from the bytes a connection has buffered so far.
//
// The connection owns the buffer: it appends every read to it and removes
// the bytes a successful Decode reports as consumed. A Decoder may keep state
// between calls (for example, how far it has already scanned), so each
// connection gets its own Decoder and never shares it.
type Decoder interface {
	// Decode examines buf and returns the next complete message along with
	// the number of leading bytes of buf it consumed.
	// A nil message with a nil error means buf does not yet hold a complete
	// message; the caller should append more data and call again.
	// A non-nil error is a decode fault and ends the connection.
	Decode(buf []byte) (msg Message, n int, err error)
}

// Codec is the interface for message encoding and decoding.
// Applications should implement this interface to define their own
// message framing (newline-delimited text, length prefixes, etc.).
type Codec interface {
	// NewDecoder returns a fresh Decoder for one connection.
	NewDecoder() Decoder
	// Encode encodes a Message into raw bytes for transmission.
	Encode(Message) ([]byte, error)
}
