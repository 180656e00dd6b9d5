package session

import "context"

// Transport is a bidirectional message pipe carrying complete protocol
// envelopes as raw JSON. Implementations own framing; callers only see
// whole messages.
type Transport interface {
	// Connect establishes the underlying connection. It must be called
	// before Send or Messages.
	Connect(ctx context.Context) error

	// Send writes one complete message to the peer.
	Send(data []byte) error

	// Messages returns the channel of inbound messages. The channel is
	// closed when the transport shuts down.
	Messages() <-chan []byte

	// Close tears down the connection and closes the message channel.
	// It is safe to call more than once.
	Close() error
}
