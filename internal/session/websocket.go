package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConfig describes the endpoint a WebSocketTransport dials.
type WebSocketConfig struct {
	URL     string
	Headers map[string]string
}

// WebSocketTransport speaks the protocol over a websocket connection, one
// envelope per text frame.
type WebSocketTransport struct {
	config WebSocketConfig

	conn     *websocket.Conn
	messages chan []byte

	writeMu   sync.Mutex
	connected int32
	closeOnce sync.Once
}

// NewWebSocketTransport creates a transport for the given endpoint. The
// connection is not dialed until Connect.
func NewWebSocketTransport(config WebSocketConfig) *WebSocketTransport {
	return &WebSocketTransport{
		config:   config,
		messages: make(chan []byte, 100),
	}
}

// Connect dials the configured endpoint and begins reading frames.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&t.connected, 0, 1) {
		return nil
	}
	if t.config.URL == "" {
		atomic.StoreInt32(&t.connected, 0)
		return fmt.Errorf("websocket transport: no URL configured")
	}

	header := make(map[string][]string, len(t.config.Headers))
	for k, v := range t.config.Headers {
		header[k] = []string{v}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.config.URL, header)
	if err != nil {
		atomic.StoreInt32(&t.connected, 0)
		return fmt.Errorf("websocket transport: dial %s: %w", t.config.URL, err)
	}
	t.conn = conn

	go t.readLoop()
	return nil
}

// Send writes one message as a text frame.
func (t *WebSocketTransport) Send(data []byte) error {
	if atomic.LoadInt32(&t.connected) == 0 {
		return fmt.Errorf("websocket transport: not connected")
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket transport: write: %w", err)
	}
	return nil
}

// Messages returns the inbound message channel.
func (t *WebSocketTransport) Messages() <-chan []byte {
	return t.messages
}

// Close closes the connection and the message channel.
func (t *WebSocketTransport) Close() error {
	t.closeOnce.Do(func() {
		atomic.StoreInt32(&t.connected, 0)
		if t.conn != nil {
			t.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), closeDeadline())
			t.conn.Close()
		}
	})
	return nil
}

func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}

func (t *WebSocketTransport) readLoop() {
	defer close(t.messages)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if atomic.LoadInt32(&t.connected) == 1 {
				log.Printf("[session] websocket transport: read: %v", err)
			}
			return
		}
		select {
		case t.messages <- data:
		default:
			log.Printf("[session] websocket transport: dropping message, channel full")
		}
	}
}
