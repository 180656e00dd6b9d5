package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tandem-cli/tandem/pkg/models"
)

// defaultCallTimeout bounds a single request/response exchange when the
// session does not configure its own timeout.
const defaultCallTimeout = 30 * time.Second

// Client issues protocol requests over a transport and matches responses to
// their callers by request ID. A response that arrives after its caller has
// timed out is discarded.
type Client struct {
	transport Transport
	timeout   time.Duration

	reqMu       sync.Mutex
	pendingReqs map[int64]chan *Response
	requestID   int64

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient creates a client over an already constructed transport. A
// non-positive timeout selects the default.
func NewClient(transport Transport, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Client{
		transport:   transport,
		timeout:     timeout,
		pendingReqs: make(map[int64]chan *Response),
		done:        make(chan struct{}),
	}
}

// Connect establishes the transport and starts dispatching responses.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return err
	}
	go c.readLoop()
	return nil
}

// Close shuts down the transport and fails all in-flight requests.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.transport.Close()
	})
	return err
}

// Ping checks that the peer is responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, MethodPing, nil)
	return err
}

// CallTool invokes a named tool on the provider.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	raw, err := c.call(ctx, MethodCallTool, CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding tools/call result: %v", models.ErrProtocol, err)
	}
	return &result, nil
}

// ListTools returns the tools the provider exposes.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	raw, err := c.call(ctx, MethodListTools, nil)
	if err != nil {
		return nil, err
	}
	var result ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding tools/list result: %v", models.ErrProtocol, err)
	}
	return result.Tools, nil
}

// ListResources returns the resources the provider exposes.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	raw, err := c.call(ctx, MethodListResources, nil)
	if err != nil {
		return nil, err
	}
	var result ListResourcesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding resources/list result: %v", models.ErrProtocol, err)
	}
	return result.Resources, nil
}

// ReadResource reads one resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	raw, err := c.call(ctx, MethodReadResource, ReadResourceParams{URI: uri})
	if err != nil {
		return nil, err
	}
	var result ReadResourceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding resources/read result: %v", models.ErrProtocol, err)
	}
	return &result, nil
}

// ListPrompts returns the prompt templates the provider exposes.
func (c *Client) ListPrompts(ctx context.Context) ([]Prompt, error) {
	raw, err := c.call(ctx, MethodListPrompts, nil)
	if err != nil {
		return nil, err
	}
	var result ListPromptsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding prompts/list result: %v", models.ErrProtocol, err)
	}
	return result.Prompts, nil
}

// GetPrompt resolves one prompt template by name.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*GetPromptResult, error) {
	raw, err := c.call(ctx, MethodGetPrompt, GetPromptParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var result GetPromptResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding prompts/get result: %v", models.ErrProtocol, err)
	}
	return &result, nil
}

// SendMessage sends a free-form message to the provider.
func (c *Client) SendMessage(ctx context.Context, message string) (string, error) {
	raw, err := c.call(ctx, MethodSendMessage, SendMessageParams{Message: message})
	if err != nil {
		return "", err
	}
	var result SendMessageResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("%w: decoding messages/send result: %v", models.ErrProtocol, err)
	}
	return result.Reply, nil
}

// call sends one request and waits for its response, bounded by the session
// timeout. On timeout the pending slot is removed so a late response is
// dropped by the read loop.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.requestID, 1)

	req := Request{JSONRPC: jsonRPCVersion, ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding %s params: %v", models.ErrProtocol, method, err)
		}
		req.Params = raw
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s request: %v", models.ErrProtocol, method, err)
	}

	respCh := make(chan *Response, 1)
	c.reqMu.Lock()
	c.pendingReqs[id] = respCh
	c.reqMu.Unlock()
	defer func() {
		c.reqMu.Lock()
		delete(c.pendingReqs, id)
		c.reqMu.Unlock()
	}()

	if err := c.transport.Send(data); err != nil {
		return nil, fmt.Errorf("%w: sending %s: %v", models.ErrProtocol, method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, fmt.Errorf("%w: %s failed: %s (code %d)",
				models.ErrProtocol, method, resp.Error.Message, resp.Error.Code)
		}
		return resp.Result, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s after %s", models.ErrTimeout, method, c.timeout)
	case <-c.done:
		return nil, fmt.Errorf("%w: session closed", models.ErrProtocol)
	}
}

func (c *Client) readLoop() {
	for data := range c.transport.Messages() {
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			log.Printf("[session] discarding malformed response: %v", err)
			continue
		}

		c.reqMu.Lock()
		ch, ok := c.pendingReqs[resp.ID]
		if ok {
			delete(c.pendingReqs, resp.ID)
		}
		c.reqMu.Unlock()

		if !ok {
			// Either a late response whose caller timed out or an
			// unsolicited message. Both are dropped.
			continue
		}
		ch <- &resp
	}
}
