package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/tandem-cli/tandem/internal/ids"
	"github.com/tandem-cli/tandem/pkg/models"
)

// ProviderConfig describes one external provider a Manager can connect to.
type ProviderConfig struct {
	Name      string        `json:"name" yaml:"name"`
	Transport string        `json:"transport" yaml:"transport"`
	Command   string        `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string      `json:"args,omitempty" yaml:"args,omitempty"`
	Env       []string      `json:"env,omitempty" yaml:"env,omitempty"`
	WorkDir   string        `json:"workDir,omitempty" yaml:"workDir,omitempty"`
	URL       string        `json:"url,omitempty" yaml:"url,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Session is the observable state of one provider connection.
type Session struct {
	ID           string
	Provider     string
	Transport    string
	Connected    bool
	Capabilities []string
	ConnectedAt  time.Time
}

// HealthStatus classifies the manager's connection pool as a whole.
type HealthStatus string

const (
	// Healthy means every connected session answered a ping.
	Healthy HealthStatus = "healthy"
	// Degraded means some sessions answered and some did not.
	Degraded HealthStatus = "degraded"
	// Unhealthy means no session answered.
	Unhealthy HealthStatus = "unhealthy"
)

// HealthReport is the result of one health sweep.
type HealthReport struct {
	Status   HealthStatus
	Checked  int
	Failures map[string]error
}

type connection struct {
	session Session
	client  *Client
}

// Manager owns the set of provider sessions. Connect and Disconnect are
// idempotent per provider name; the bulk operations settle every provider
// before reporting.
type Manager struct {
	mu        sync.RWMutex
	configs   map[string]ProviderConfig
	conns     map[string]*connection
	factories map[string]func() Transport
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		configs:   make(map[string]ProviderConfig),
		conns:     make(map[string]*connection),
		factories: make(map[string]func() Transport),
	}
}

// AddProvider registers a provider config. It replaces a previous config of
// the same name but does not touch an existing connection.
func (m *Manager) AddProvider(config ProviderConfig) error {
	if config.Name == "" {
		return fmt.Errorf("%w: provider name is required", models.ErrValidation)
	}
	switch config.Transport {
	case "stdio", "websocket", "inproc":
	default:
		return fmt.Errorf("%w: unknown transport %q for provider %s",
			models.ErrValidation, config.Transport, config.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[config.Name] = config
	return nil
}

// RegisterInprocFactory supplies the transport constructor for an inproc
// provider. Each Connect for that provider calls the factory once.
func (m *Manager) RegisterInprocFactory(name string, factory func() Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[name] = factory
}

// Connect establishes the session for one provider. Connecting an already
// connected provider is a no-op returning the existing session.
func (m *Manager) Connect(ctx context.Context, name string) (*Session, error) {
	m.mu.Lock()
	if conn, ok := m.conns[name]; ok {
		s := conn.session
		m.mu.Unlock()
		return &s, nil
	}
	config, ok := m.configs[name]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: provider %s is not configured", models.ErrNotFound, name)
	}
	factory := m.factories[name]
	m.mu.Unlock()

	transport, err := m.buildTransport(config, factory)
	if err != nil {
		return nil, err
	}

	client := NewClient(transport, config.Timeout)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting provider %s: %w", name, err)
	}

	session := Session{
		ID:          ids.New("session"),
		Provider:    name,
		Transport:   config.Transport,
		Connected:   true,
		ConnectedAt: time.Now(),
	}

	// Capability discovery is best effort. A provider without tools/list
	// still gets a working session.
	if tools, err := client.ListTools(ctx); err == nil {
		caps := make([]string, 0, len(tools))
		for _, tool := range tools {
			caps = append(caps, tool.Name)
		}
		sort.Strings(caps)
		session.Capabilities = caps
	} else {
		log.Printf("[session] provider %s: capability discovery failed: %v", name, err)
	}

	m.mu.Lock()
	if existing, ok := m.conns[name]; ok {
		// Another Connect won the race. Keep its session.
		s := existing.session
		m.mu.Unlock()
		client.Close()
		return &s, nil
	}
	m.conns[name] = &connection{session: session, client: client}
	m.mu.Unlock()

	return &session, nil
}

// Disconnect tears down the session for one provider. Disconnecting an
// unknown or already disconnected provider is a no-op.
func (m *Manager) Disconnect(name string) error {
	m.mu.Lock()
	conn, ok := m.conns[name]
	if ok {
		delete(m.conns, name)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.client.Close()
}

// Client returns the live client for a connected provider.
func (m *Manager) Client(name string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[name]
	if !ok {
		return nil, fmt.Errorf("%w: provider %s is not connected", models.ErrNotFound, name)
	}
	return conn.client, nil
}

// Sessions returns a snapshot of all live sessions sorted by provider name.
func (m *Manager) Sessions() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.conns))
	for _, conn := range m.conns {
		out = append(out, conn.session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// StartAll connects every configured provider. Every provider is attempted;
// failures are collected and reported together.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)

	var failed []string
	for _, name := range names {
		if _, err := m.Connect(ctx, name); err != nil {
			log.Printf("[session] start %s: %v", name, err)
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d providers failed to start: %v",
			models.ErrProtocol, len(failed), len(names), failed)
	}
	return nil
}

// StopAll disconnects every live session. Every session is attempted; the
// first error is returned after all have been closed.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	conns := make(map[string]*connection, len(m.conns))
	for name, conn := range m.conns {
		conns[name] = conn
	}
	m.conns = make(map[string]*connection)
	m.mu.Unlock()

	var firstErr error
	for name, conn := range conns {
		if err := conn.client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stopping provider %s: %w", name, err)
		}
	}
	return firstErr
}

// Health pings every live session and classifies the pool. With no sessions
// the pool is healthy.
func (m *Manager) Health(ctx context.Context) HealthReport {
	m.mu.RLock()
	conns := make(map[string]*Client, len(m.conns))
	for name, conn := range m.conns {
		conns[name] = conn.client
	}
	m.mu.RUnlock()

	report := HealthReport{
		Status:   Healthy,
		Checked:  len(conns),
		Failures: make(map[string]error),
	}
	for name, client := range conns {
		if err := client.Ping(ctx); err != nil {
			report.Failures[name] = err
		}
	}
	switch {
	case len(report.Failures) == 0:
	case len(report.Failures) == len(conns):
		report.Status = Unhealthy
	default:
		report.Status = Degraded
	}
	return report
}

func (m *Manager) buildTransport(config ProviderConfig, factory func() Transport) (Transport, error) {
	switch config.Transport {
	case "stdio":
		return NewStdioTransport(StdioConfig{
			Command: config.Command,
			Args:    config.Args,
			Env:     config.Env,
			WorkDir: config.WorkDir,
		}), nil
	case "websocket":
		return NewWebSocketTransport(WebSocketConfig{URL: config.URL}), nil
	case "inproc":
		if factory == nil {
			return nil, fmt.Errorf("%w: provider %s has no inproc transport factory",
				models.ErrValidation, config.Name)
		}
		return factory(), nil
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", models.ErrValidation, config.Transport)
	}
}
