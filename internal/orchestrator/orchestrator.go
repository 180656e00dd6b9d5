// Package orchestrator coordinates task execution end to end: planning,
// advisory steering, sub-agent dispatch, tool execution, and result
// integration.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tandem-cli/tandem/internal/llm"
	"github.com/tandem-cli/tandem/internal/planner"
	"github.com/tandem-cli/tandem/internal/session"
	"github.com/tandem-cli/tandem/internal/state"
	"github.com/tandem-cli/tandem/internal/steering"
	"github.com/tandem-cli/tandem/internal/subagent"
	"github.com/tandem-cli/tandem/internal/toolexec"
	"github.com/tandem-cli/tandem/pkg/models"
)

// Config contains everything an Orchestrator needs. Conversation is
// required; nil components are constructed with defaults.
type Config struct {
	// Conversation is the LLM backend for llm steps and default agents.
	Conversation llm.Conversation
	// Planner generates execution plans. Defaults to planner.New().
	Planner *planner.Planner
	// Steering is the advisory steering controller. Defaults to a fresh one.
	Steering *steering.Controller
	// Registry holds sub-agents. Defaults to an empty registry.
	Registry *subagent.Registry
	// Scheduler runs tool steps. Defaults to a scheduler over an empty catalog.
	Scheduler *toolexec.Scheduler
	// Sessions manages external provider connections. Optional.
	Sessions *session.Manager
	// Journal records run history. Optional.
	Journal *state.Journal
	// MaxSubAgentTasks caps subagent steps per plan. Defaults to 5.
	MaxSubAgentTasks int
	// MaxToolCalls caps tool steps per plan. Defaults to 10.
	MaxToolCalls int
	// DisableSteering skips the advisory steering pass.
	DisableSteering bool
	// DelegationThreshold overrides the steering delegation threshold
	// when within (0, 1].
	DelegationThreshold float64
	// SkipDefaultAgents leaves the registry exactly as supplied.
	SkipDefaultAgents bool
	// DebugLogPath enables file-backed debug logging when non-empty.
	DebugLogPath string
}

// Orchestrator is the engine's root component. Construct with New, call
// Initialize once, then ExecuteTask any number of times, and Destroy when
// done.
type Orchestrator struct {
	conversation llm.Conversation
	planner      *planner.Planner
	steering     *steering.Controller
	registry     *subagent.Registry
	scheduler    *toolexec.Scheduler
	sessions     *session.Manager
	journal      *state.Journal

	// tunablesMu guards the three runtime-adjustable fields below.
	tunablesMu       sync.RWMutex
	maxSubAgentTasks int
	maxToolCalls     int
	steeringEnabled  bool

	skipDefaultAgents bool
	debugLogPath      string

	sessionID string
	events    chan Event
	logger    *DebugLogger

	initialized bool
	destroyed   bool
}

// New creates an orchestrator from an explicit config.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Conversation == nil {
		return nil, fmt.Errorf("%w: conversation is required", models.ErrValidation)
	}

	o := &Orchestrator{
		conversation:      cfg.Conversation,
		planner:           cfg.Planner,
		steering:          cfg.Steering,
		registry:          cfg.Registry,
		scheduler:         cfg.Scheduler,
		sessions:          cfg.Sessions,
		journal:           cfg.Journal,
		maxSubAgentTasks:  cfg.MaxSubAgentTasks,
		maxToolCalls:      cfg.MaxToolCalls,
		steeringEnabled:   !cfg.DisableSteering,
		skipDefaultAgents: cfg.SkipDefaultAgents,
		debugLogPath:      cfg.DebugLogPath,
		events:            make(chan Event, 100),
	}
	if o.planner == nil {
		o.planner = planner.New()
	}
	if o.steering == nil {
		o.steering = steering.NewController()
	}
	if cfg.DelegationThreshold > 0 {
		o.steering.SetDelegationThreshold(cfg.DelegationThreshold)
	}
	if o.registry == nil {
		o.registry = subagent.NewRegistry()
	}
	if o.scheduler == nil {
		o.scheduler = toolexec.NewScheduler(toolexec.NewCatalog(), toolexec.Config{})
	}
	if o.maxSubAgentTasks <= 0 {
		o.maxSubAgentTasks = 5
	}
	if o.maxToolCalls <= 0 {
		o.maxToolCalls = 10
	}
	return o, nil
}

// Initialize prepares the engine: registers default sub-agents, seeds the
// steering keyword map, connects session providers, and migrates the
// journal. Calling it again is a no-op.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	if o.destroyed {
		return fmt.Errorf("%w: orchestrator is destroyed", models.ErrValidation)
	}
	if o.initialized {
		return nil
	}

	logger, err := NewDebugLogger(o.debugLogPath)
	if err != nil {
		return fmt.Errorf("initializing debug logger: %w", err)
	}
	o.logger = logger
	setPackageLogger(logger)

	o.sessionID = uuid.NewString()
	debugLog("initializing engine, session %s", o.sessionID)

	if !o.skipDefaultAgents {
		for _, agent := range subagent.Defaults(o.conversation) {
			if err := o.registry.Register(ctx, agent); err != nil {
				return fmt.Errorf("registering default agent: %w", err)
			}
		}
	}
	for _, info := range o.registry.List() {
		o.steering.SetAgentKeywords(info.Definition.Name, info.Definition.Capabilities)
	}

	if o.sessions != nil {
		if err := o.sessions.StartAll(ctx); err != nil {
			// Provider trouble degrades sessions but not the engine.
			log.Printf("[orchestrator] session providers: %v", err)
		}
	}

	if o.journal != nil {
		if err := o.journal.Migrate(); err != nil {
			return fmt.Errorf("migrating journal: %w", err)
		}
	}

	o.initialized = true
	o.emitEvent(Event{
		Type:      EventInitialized,
		Message:   fmt.Sprintf("engine session %s ready", o.sessionID),
		Timestamp: time.Now(),
	})
	return nil
}

// Destroy tears the engine down: shuts down agents, disconnects providers,
// closes the journal and the events channel. Calling it again is a no-op.
func (o *Orchestrator) Destroy(ctx context.Context) error {
	if o.destroyed {
		return nil
	}
	o.destroyed = true
	o.initialized = false

	debugLog("destroying engine, session %s", o.sessionID)

	o.registry.Shutdown(ctx)

	if o.sessions != nil {
		if err := o.sessions.StopAll(); err != nil {
			log.Printf("[orchestrator] stopping session providers: %v", err)
		}
	}

	var firstErr error
	if o.journal != nil {
		if err := o.journal.Close(); err != nil {
			firstErr = fmt.Errorf("closing journal: %w", err)
		}
	}

	close(o.events)

	setPackageLogger(nil)
	if o.logger != nil {
		if err := o.logger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing debug log: %w", err)
		}
	}
	return firstErr
}

// Events returns the engine event channel. Events are dropped, never
// blocking, when the channel is full.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// SessionID returns the engine session identifier assigned at Initialize.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// Registry exposes the sub-agent registry for inspection and custom
// registration.
func (o *Orchestrator) Registry() *subagent.Registry {
	return o.registry
}

// Scheduler exposes the tool scheduler for inspection and registration.
func (o *Orchestrator) Scheduler() *toolexec.Scheduler {
	return o.scheduler
}

// Steering exposes the steering controller for outcome reporting and
// metrics inspection.
func (o *Orchestrator) Steering() *steering.Controller {
	return o.steering
}

// PlannerStats returns the planner's decision statistics.
func (o *Orchestrator) PlannerStats() planner.Stats {
	return o.planner.Stats()
}

// Tunables are the runtime-adjustable engine knobs, refreshable while tasks
// execute, for example from a config file watcher.
type Tunables struct {
	SteeringEnabled  bool
	MaxSubAgentTasks int
	MaxToolCalls     int
}

// ApplyTunables updates the runtime-adjustable knobs. Non-positive limits
// are ignored. New values apply to tasks planned after the call.
func (o *Orchestrator) ApplyTunables(t Tunables) {
	o.tunablesMu.Lock()
	defer o.tunablesMu.Unlock()
	o.steeringEnabled = t.SteeringEnabled
	if t.MaxSubAgentTasks > 0 {
		o.maxSubAgentTasks = t.MaxSubAgentTasks
	}
	if t.MaxToolCalls > 0 {
		o.maxToolCalls = t.MaxToolCalls
	}
	debugLog("tunables applied: steering=%t subagents=%d tools=%d",
		o.steeringEnabled, o.maxSubAgentTasks, o.maxToolCalls)
}

// Tunables returns the knob values currently in effect.
func (o *Orchestrator) Tunables() Tunables {
	o.tunablesMu.RLock()
	defer o.tunablesMu.RUnlock()
	return Tunables{
		SteeringEnabled:  o.steeringEnabled,
		MaxSubAgentTasks: o.maxSubAgentTasks,
		MaxToolCalls:     o.maxToolCalls,
	}
}

// emitEvent sends an event without blocking, dropping it when the channel
// is full.
func (o *Orchestrator) emitEvent(event Event) {
	select {
	case o.events <- event:
	default:
	}
}
