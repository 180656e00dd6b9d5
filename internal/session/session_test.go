package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tandem-cli/tandem/pkg/models"
)

// newTestServer builds a server exposing one echo tool, one resource, one
// prompt, and a message handler.
func newTestServer() *Server {
	s := NewServer()
	s.Handle(MethodListTools, func(ctx context.Context, params json.RawMessage) (any, error) {
		return ListToolsResult{Tools: []Tool{{Name: "echo", Description: "echoes input"}}}, nil
	})
	s.Handle(MethodCallTool, func(ctx context.Context, params json.RawMessage) (any, error) {
		var p CallToolParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		if p.Name != "echo" {
			return nil, fmt.Errorf("no such tool: %s", p.Name)
		}
		text, _ := p.Arguments["text"].(string)
		return CallToolResult{Content: []Content{{Type: "text", Text: text}}}, nil
	})
	s.Handle(MethodListResources, func(ctx context.Context, params json.RawMessage) (any, error) {
		return ListResourcesResult{Resources: []Resource{{URI: "mem://notes", Name: "notes"}}}, nil
	})
	s.Handle(MethodReadResource, func(ctx context.Context, params json.RawMessage) (any, error) {
		var p ReadResourceParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		if p.URI != "mem://notes" {
			return nil, fmt.Errorf("no such resource: %s", p.URI)
		}
		return ReadResourceResult{Contents: []Content{{Type: "text", Text: "note body"}}}, nil
	})
	s.Handle(MethodListPrompts, func(ctx context.Context, params json.RawMessage) (any, error) {
		return ListPromptsResult{Prompts: []Prompt{{Name: "summary"}}}, nil
	})
	s.Handle(MethodGetPrompt, func(ctx context.Context, params json.RawMessage) (any, error) {
		var p GetPromptParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		return GetPromptResult{Messages: []Content{{Type: "text", Text: "summarize " + p.Arguments["topic"]}}}, nil
	})
	s.Handle(MethodSendMessage, func(ctx context.Context, params json.RawMessage) (any, error) {
		var p SendMessageParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		return SendMessageResult{Reply: "ack: " + p.Message}, nil
	})
	return s
}

// startPair wires a client to a server over an inproc transport pair.
func startPair(t *testing.T, server *Server, timeout time.Duration) *Client {
	t.Helper()
	clientEnd, serverEnd := NewInprocPair()

	ctx, cancel := context.WithCancel(context.Background())
	go server.Serve(ctx, serverEnd)
	t.Cleanup(func() {
		cancel()
		serverEnd.Close()
	})

	client := NewClient(clientEnd, timeout)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientOperations(t *testing.T) {
	client := startPair(t, newTestServer(), time.Second)
	ctx := context.Background()

	if err := client.Ping(ctx); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools() error: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Errorf("ListTools() = %+v, want one echo tool", tools)
	}

	result, err := client.CallTool(ctx, "echo", map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "hello" {
		t.Errorf("CallTool() content = %+v, want echoed text", result.Content)
	}

	resources, err := client.ListResources(ctx)
	if err != nil {
		t.Fatalf("ListResources() error: %v", err)
	}
	if len(resources) != 1 || resources[0].URI != "mem://notes" {
		t.Errorf("ListResources() = %+v", resources)
	}

	read, err := client.ReadResource(ctx, "mem://notes")
	if err != nil {
		t.Fatalf("ReadResource() error: %v", err)
	}
	if len(read.Contents) != 1 || read.Contents[0].Text != "note body" {
		t.Errorf("ReadResource() contents = %+v", read.Contents)
	}

	prompts, err := client.ListPrompts(ctx)
	if err != nil {
		t.Fatalf("ListPrompts() error: %v", err)
	}
	if len(prompts) != 1 || prompts[0].Name != "summary" {
		t.Errorf("ListPrompts() = %+v", prompts)
	}

	prompt, err := client.GetPrompt(ctx, "summary", map[string]string{"topic": "logs"})
	if err != nil {
		t.Fatalf("GetPrompt() error: %v", err)
	}
	if len(prompt.Messages) != 1 || prompt.Messages[0].Text != "summarize logs" {
		t.Errorf("GetPrompt() messages = %+v", prompt.Messages)
	}

	reply, err := client.SendMessage(ctx, "status?")
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if reply != "ack: status?" {
		t.Errorf("SendMessage() reply = %q", reply)
	}
}

func TestRemoteErrorIsProtocolError(t *testing.T) {
	client := startPair(t, newTestServer(), time.Second)

	_, err := client.CallTool(context.Background(), "missing", nil)
	if err == nil {
		t.Fatal("CallTool() on unknown tool should fail")
	}
	if !errors.Is(err, models.ErrProtocol) {
		t.Errorf("error = %v, want ErrProtocol", err)
	}
	if !strings.Contains(err.Error(), "no such tool") {
		t.Errorf("error should carry the remote message, got %v", err)
	}
}

func TestMethodNotFound(t *testing.T) {
	// A bare server still answers ping but nothing else.
	client := startPair(t, NewServer(), time.Second)

	_, err := client.ListTools(context.Background())
	if err == nil {
		t.Fatal("ListTools() against a bare server should fail")
	}
	if !errors.Is(err, models.ErrProtocol) {
		t.Errorf("error = %v, want ErrProtocol", err)
	}
}

func TestCallTimeoutAbandonsSlowResponse(t *testing.T) {
	server := NewServer()
	server.Handle(MethodSendMessage, func(ctx context.Context, params json.RawMessage) (any, error) {
		time.Sleep(200 * time.Millisecond)
		return SendMessageResult{Reply: "slow"}, nil
	})
	client := startPair(t, server, 50*time.Millisecond)

	start := time.Now()
	_, err := client.SendMessage(context.Background(), "hi")
	elapsed := time.Since(start)

	if !errors.Is(err, models.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("call took %s, caller should not wait for the slow handler", elapsed)
	}

	// The late response must not leak into the next call.
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() after abandoned call: %v", err)
	}
}

func TestCallerContextCancellation(t *testing.T) {
	server := NewServer()
	server.Handle(MethodSendMessage, func(ctx context.Context, params json.RawMessage) (any, error) {
		time.Sleep(200 * time.Millisecond)
		return SendMessageResult{Reply: "slow"}, nil
	})
	client := startPair(t, server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := client.SendMessage(ctx, "hi")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestManagerConnectIdempotent(t *testing.T) {
	m := NewManager()
	if err := m.AddProvider(ProviderConfig{Name: "notes", Transport: "inproc"}); err != nil {
		t.Fatalf("AddProvider() error: %v", err)
	}
	m.RegisterInprocFactory("notes", func() Transport {
		clientEnd, serverEnd := NewInprocPair()
		ctx := context.Background()
		go newTestServer().Serve(ctx, serverEnd)
		return clientEnd
	})

	first, err := m.Connect(context.Background(), "notes")
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if !first.Connected {
		t.Error("session should be marked connected")
	}
	if len(first.Capabilities) != 1 || first.Capabilities[0] != "echo" {
		t.Errorf("Capabilities = %v, want [echo]", first.Capabilities)
	}

	second, err := m.Connect(context.Background(), "notes")
	if err != nil {
		t.Fatalf("second Connect() error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second Connect() created a new session: %s vs %s", second.ID, first.ID)
	}

	if err := m.StopAll(); err != nil {
		t.Errorf("StopAll() error: %v", err)
	}
}

func TestManagerDisconnectIdempotent(t *testing.T) {
	m := NewManager()
	if err := m.Disconnect("never-connected"); err != nil {
		t.Errorf("Disconnect() on unknown provider = %v, want nil", err)
	}
}

func TestManagerConnectUnknownProvider(t *testing.T) {
	m := NewManager()
	_, err := m.Connect(context.Background(), "ghost")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestManagerAddProviderValidation(t *testing.T) {
	m := NewManager()
	if err := m.AddProvider(ProviderConfig{Transport: "stdio"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("missing name: error = %v, want ErrValidation", err)
	}
	if err := m.AddProvider(ProviderConfig{Name: "x", Transport: "carrier-pigeon"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("bad transport: error = %v, want ErrValidation", err)
	}
}

func TestManagerHealthClassification(t *testing.T) {
	m := NewManager()

	// No sessions means nothing is failing.
	if report := m.Health(context.Background()); report.Status != Healthy {
		t.Errorf("empty pool status = %s, want healthy", report.Status)
	}

	addInproc := func(name string, server *Server) {
		if err := m.AddProvider(ProviderConfig{Name: name, Transport: "inproc", Timeout: 100 * time.Millisecond}); err != nil {
			t.Fatalf("AddProvider(%s) error: %v", name, err)
		}
		m.RegisterInprocFactory(name, func() Transport {
			clientEnd, serverEnd := NewInprocPair()
			go server.Serve(context.Background(), serverEnd)
			return clientEnd
		})
	}

	// A server whose ping never answers.
	deaf := NewServer()
	deaf.Handle(MethodPing, func(ctx context.Context, params json.RawMessage) (any, error) {
		time.Sleep(500 * time.Millisecond)
		return map[string]any{}, nil
	})

	addInproc("good", newTestServer())
	addInproc("bad", deaf)

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll() error: %v", err)
	}
	defer m.StopAll()

	report := m.Health(context.Background())
	if report.Status != Degraded {
		t.Errorf("status = %s, want degraded", report.Status)
	}
	if report.Checked != 2 || len(report.Failures) != 1 {
		t.Errorf("checked=%d failures=%d, want 2 checked with 1 failure", report.Checked, len(report.Failures))
	}
	if _, ok := report.Failures["bad"]; !ok {
		t.Errorf("failures = %v, want entry for bad", report.Failures)
	}
}

func TestStartAllReportsFailuresAfterSettling(t *testing.T) {
	m := NewManager()
	if err := m.AddProvider(ProviderConfig{Name: "working", Transport: "inproc"}); err != nil {
		t.Fatalf("AddProvider() error: %v", err)
	}
	m.RegisterInprocFactory("working", func() Transport {
		clientEnd, serverEnd := NewInprocPair()
		go newTestServer().Serve(context.Background(), serverEnd)
		return clientEnd
	})
	// No factory registered, so this one cannot connect.
	if err := m.AddProvider(ProviderConfig{Name: "broken", Transport: "inproc"}); err != nil {
		t.Fatalf("AddProvider() error: %v", err)
	}

	err := m.StartAll(context.Background())
	if err == nil {
		t.Fatal("StartAll() with a broken provider should fail")
	}
	defer m.StopAll()

	// The working provider must still have come up.
	if _, cerr := m.Client("working"); cerr != nil {
		t.Errorf("working provider should be connected: %v", cerr)
	}
	if sessions := m.Sessions(); len(sessions) != 1 {
		t.Errorf("Sessions() = %d entries, want 1", len(sessions))
	}
}
