package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// HandlerFunc answers one protocol request. The returned value is marshaled
// into the result envelope; a returned error becomes the error envelope.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Server answers protocol requests arriving on a transport. Handlers are
// registered per method name; unknown methods get a method-not-found error
// envelope rather than a dropped request.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewServer creates a server with a built-in ping handler.
func NewServer() *Server {
	s := &Server{handlers: make(map[string]HandlerFunc)}
	s.Handle(MethodPing, func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]any{}, nil
	})
	return s
}

// Handle registers the handler for a method, replacing any previous one.
func (s *Server) Handle(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// Serve reads requests from the transport until it closes or ctx is
// cancelled. Each request is answered on the same transport.
func (s *Server) Serve(ctx context.Context, transport Transport) error {
	if err := transport.Connect(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-transport.Messages():
			if !ok {
				return nil
			}
			s.dispatch(ctx, transport, data)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, transport Transport, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.reply(transport, Response{
			JSONRPC: jsonRPCVersion,
			Error:   &RPCError{Code: CodeParseError, Message: fmt.Sprintf("parse error: %v", err)},
		})
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		s.reply(transport, Response{
			JSONRPC: jsonRPCVersion,
			ID:      req.ID,
			Error:   &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)},
		})
		return
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		s.reply(transport, Response{
			JSONRPC: jsonRPCVersion,
			ID:      req.ID,
			Error:   &RPCError{Code: CodeInternalError, Message: err.Error()},
		})
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		s.reply(transport, Response{
			JSONRPC: jsonRPCVersion,
			ID:      req.ID,
			Error:   &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("encoding result: %v", err)},
		})
		return
	}

	s.reply(transport, Response{JSONRPC: jsonRPCVersion, ID: req.ID, Result: raw})
}

func (s *Server) reply(transport Transport, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("[session] encoding response: %v", err)
		return
	}
	if err := transport.Send(data); err != nil {
		log.Printf("[session] sending response: %v", err)
	}
}
