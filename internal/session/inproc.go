package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// InprocTransport is one end of an in-process transport pair. It carries
// messages over channels and is used for embedded providers and tests.
type InprocTransport struct {
	recv chan []byte
	peer *InprocTransport

	mu        sync.RWMutex
	closed    bool
	connected int32
}

// NewInprocPair returns two connected transports. Messages sent on one end
// are received on the other.
func NewInprocPair() (*InprocTransport, *InprocTransport) {
	a := &InprocTransport{recv: make(chan []byte, 100)}
	b := &InprocTransport{recv: make(chan []byte, 100)}
	a.peer, b.peer = b, a
	return a, b
}

// Connect marks the transport as ready.
func (t *InprocTransport) Connect(ctx context.Context) error {
	atomic.StoreInt32(&t.connected, 1)
	return nil
}

// Send delivers one message to the peer.
func (t *InprocTransport) Send(data []byte) error {
	if atomic.LoadInt32(&t.connected) == 0 {
		return fmt.Errorf("inproc transport: not connected")
	}
	t.peer.mu.RLock()
	defer t.peer.mu.RUnlock()
	if t.peer.closed {
		return fmt.Errorf("inproc transport: peer closed")
	}
	select {
	case t.peer.recv <- data:
	default:
		log.Printf("[session] inproc transport: dropping message, channel full")
	}
	return nil
}

// Messages returns the inbound message channel.
func (t *InprocTransport) Messages() <-chan []byte {
	return t.recv
}

// Close closes this end's receive channel. Safe to call more than once.
func (t *InprocTransport) Close() error {
	atomic.StoreInt32(&t.connected, 0)
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.recv)
	}
	return nil
}
