package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"sync/atomic"
)

// StdioConfig describes the child process a StdioTransport launches.
type StdioConfig struct {
	Command string
	Args    []string
	Env     []string
	WorkDir string
}

// StdioTransport speaks the protocol over the stdin/stdout pipes of a child
// process. Messages are newline-delimited JSON.
type StdioTransport struct {
	config StdioConfig

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	messages chan []byte
	cancel   context.CancelFunc

	writeMu   sync.Mutex
	connected int32
	closeOnce sync.Once
}

// NewStdioTransport creates a transport for the given child process config.
// The process is not started until Connect.
func NewStdioTransport(config StdioConfig) *StdioTransport {
	return &StdioTransport{
		config:   config,
		messages: make(chan []byte, 100),
	}
}

// Connect starts the child process and begins reading its stdout.
func (t *StdioTransport) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&t.connected, 0, 1) {
		return nil
	}
	if t.config.Command == "" {
		atomic.StoreInt32(&t.connected, 0)
		return fmt.Errorf("stdio transport: no command configured")
	}

	procCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	t.cmd = exec.CommandContext(procCtx, t.config.Command, t.config.Args...)
	if len(t.config.Env) > 0 {
		t.cmd.Env = t.config.Env
	}
	if t.config.WorkDir != "" {
		t.cmd.Dir = t.config.WorkDir
	}

	stdin, err := t.cmd.StdinPipe()
	if err != nil {
		cancel()
		atomic.StoreInt32(&t.connected, 0)
		return fmt.Errorf("stdio transport: stdin pipe: %w", err)
	}
	t.stdin = stdin

	stdout, err := t.cmd.StdoutPipe()
	if err != nil {
		cancel()
		atomic.StoreInt32(&t.connected, 0)
		return fmt.Errorf("stdio transport: stdout pipe: %w", err)
	}
	t.stdout = stdout

	stderr, err := t.cmd.StderrPipe()
	if err != nil {
		cancel()
		atomic.StoreInt32(&t.connected, 0)
		return fmt.Errorf("stdio transport: stderr pipe: %w", err)
	}
	t.stderr = stderr

	if err := t.cmd.Start(); err != nil {
		cancel()
		atomic.StoreInt32(&t.connected, 0)
		return fmt.Errorf("stdio transport: start %s: %w", t.config.Command, err)
	}

	go t.readStdout()
	go t.drainStderr()

	return nil
}

// Send writes one message followed by a newline to the child's stdin.
func (t *StdioTransport) Send(data []byte) error {
	if atomic.LoadInt32(&t.connected) == 0 {
		return fmt.Errorf("stdio transport: not connected")
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("stdio transport: write: %w", err)
	}
	return nil
}

// Messages returns the inbound message channel.
func (t *StdioTransport) Messages() <-chan []byte {
	return t.messages
}

// Close terminates the child process and closes the message channel.
func (t *StdioTransport) Close() error {
	t.closeOnce.Do(func() {
		atomic.StoreInt32(&t.connected, 0)
		if t.stdin != nil {
			t.stdin.Close()
		}
		if t.cancel != nil {
			t.cancel()
		}
		if t.cmd != nil && t.cmd.Process != nil {
			// Wait reaps the process after CommandContext kills it.
			go t.cmd.Wait()
		}
	})
	return nil
}

func (t *StdioTransport) readStdout() {
	defer close(t.messages)

	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg := make([]byte, len(line))
		copy(msg, line)
		select {
		case t.messages <- msg:
		default:
			log.Printf("[session] stdio transport: dropping message, channel full")
		}
	}
}

func (t *StdioTransport) drainStderr() {
	scanner := bufio.NewScanner(t.stderr)
	for scanner.Scan() {
		log.Printf("[session] %s stderr: %s", t.config.Command, scanner.Text())
	}
}
