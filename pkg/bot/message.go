package bot

import "github.com/wabot-dev/wabot/pkg/transport"

// Message is a single chat message as observed by the dispatch loop.
// It is immutable once constructed; Handle is an opaque reference into
// the transport that produced it, usable only for follow-up queries.
type Message struct {
	// FromMe is true when this client sent the message.
	FromMe bool

	// Text is the message body. Empty for media without a caption.
	Text string

	// Handle points back into transport state for this message.
	Handle transport.Handle
}
