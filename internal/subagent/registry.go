package subagent

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/tandem-cli/tandem/pkg/models"
)

// loadFactorWeight scales the free-capacity fraction in agent scoring.
const loadFactorWeight = 10.0

// maxRecencyBonusMinutes caps the idle-time bonus in agent scoring.
const maxRecencyBonusMinutes = 5.0

// instance is the mutable runtime record for one registered agent.
type instance struct {
	def           models.SubAgentDefinition
	agent         SubAgent
	active        bool
	currentTasks  int
	totalExecuted int64
	lastUsedAt    time.Time
	// regIndex orders instances by registration for deterministic
	// tie-breaking in selection.
	regIndex int
}

// InstanceInfo is a read-only snapshot of a registered agent's state.
type InstanceInfo struct {
	Definition    models.SubAgentDefinition
	Active        bool
	CurrentTasks  int
	TotalExecuted int64
	LastUsedAt    time.Time
}

// Registry owns the pool of specialized agents and load-balances dispatch.
type Registry struct {
	mu        sync.Mutex
	instances map[string]*instance
	nextIndex int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]*instance)}
}

// Register instantiates agent state for the given implementation, invoking
// its Initialize hook. A name collision fails without registering and
// without initializing the agent.
func (r *Registry) Register(ctx context.Context, agent SubAgent) error {
	def := agent.Definition()
	if def.Name == "" {
		return fmt.Errorf("%w: agent name is required", models.ErrValidation)
	}
	if def.MaxConcurrentTasks <= 0 {
		return fmt.Errorf("%w: agent %q must allow at least one concurrent task", models.ErrValidation, def.Name)
	}

	r.mu.Lock()
	if _, exists := r.instances[def.Name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("agent %q is already registered", def.Name)
	}
	r.mu.Unlock()

	if err := agent.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize agent %q: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check under lock in case of a concurrent registration.
	if _, exists := r.instances[def.Name]; exists {
		return fmt.Errorf("agent %q is already registered", def.Name)
	}
	r.instances[def.Name] = &instance{
		def:      def,
		agent:    agent,
		active:   true,
		regIndex: r.nextIndex,
	}
	r.nextIndex++

	log.Printf("[subagent] registered agent %q (capabilities: %v)", def.Name, def.Capabilities)
	return nil
}

// Unregister destroys the named agent and removes it from the pool.
// Returns false, without error, if the name is unknown.
func (r *Registry) Unregister(ctx context.Context, name string) bool {
	r.mu.Lock()
	inst, ok := r.instances[name]
	if !ok {
		r.mu.Unlock()
		return false
	}
	inst.active = false
	delete(r.instances, name)
	r.mu.Unlock()

	if err := inst.agent.Destroy(ctx); err != nil {
		log.Printf("[subagent] warning: destroy agent %q: %v", name, err)
	}
	return true
}

// Execute dispatches the task to the named agent, or to the best available
// agent when name is empty. Across one call the agent's currentTasks counter
// nets to zero regardless of success or failure; totalTasksExecuted
// increments only on success. Errors from the agent are re-thrown to the
// caller.
func (r *Registry) Execute(ctx context.Context, name string, task *models.Task) (string, error) {
	result, _, err := r.Dispatch(ctx, name, task)
	return result, err
}

// Dispatch is Execute plus the name of the agent that actually ran the
// task, which matters when the agent was auto-selected.
func (r *Registry) Dispatch(ctx context.Context, name string, task *models.Task) (string, string, error) {
	var inst *instance

	r.mu.Lock()
	if name != "" {
		var ok bool
		inst, ok = r.instances[name]
		if !ok {
			r.mu.Unlock()
			return "", "", fmt.Errorf("%w: agent %q", models.ErrNotFound, name)
		}
	} else {
		inst = r.findBestAgentLocked(task)
		if inst == nil {
			r.mu.Unlock()
			return "", "", fmt.Errorf("%w: no agent available", models.ErrNotFound)
		}
	}

	inst.currentTasks++
	inst.lastUsedAt = time.Now()
	agent := inst.agent
	r.mu.Unlock()

	result, err := agent.Execute(ctx, task)

	r.mu.Lock()
	inst.currentTasks--
	if err == nil {
		inst.totalExecuted++
	}
	r.mu.Unlock()

	if err != nil {
		return "", inst.def.Name, fmt.Errorf("%w: agent %q: %v", models.ErrExecution, inst.def.Name, err)
	}
	return result, inst.def.Name, nil
}

// findBestAgentLocked filters to active agents that can handle the task and
// scores each as priority + freeCapacity*10 + min(minutesIdle, 5). The
// arg-max wins; exactly equal scores resolve to registration order.
// Caller must hold r.mu.
func (r *Registry) findBestAgentLocked(task *models.Task) *instance {
	var best *instance
	var bestScore float64

	now := time.Now()
	for _, inst := range r.instances {
		if !inst.active || !inst.agent.CanHandle(task) {
			continue
		}

		free := 1.0 - float64(inst.currentTasks)/float64(inst.def.MaxConcurrentTasks)
		recency := maxRecencyBonusMinutes
		if !inst.lastUsedAt.IsZero() {
			recency = now.Sub(inst.lastUsedAt).Minutes()
			if recency > maxRecencyBonusMinutes {
				recency = maxRecencyBonusMinutes
			}
		}
		score := float64(inst.def.Priority) + free*loadFactorWeight + recency

		switch {
		case best == nil, score > bestScore:
			best, bestScore = inst, score
		case score == bestScore && inst.regIndex < best.regIndex:
			best = inst
		}
	}
	return best
}

// Get returns a snapshot of the named agent's state.
func (r *Registry) Get(name string) (InstanceInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[name]
	if !ok {
		return InstanceInfo{}, false
	}
	return snapshot(inst), true
}

// List returns snapshots of all registered agents in registration order.
func (r *Registry) List() []InstanceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	insts := make([]*instance, 0, len(r.instances))
	for _, inst := range r.instances {
		insts = append(insts, inst)
	}
	// Map iteration order is unspecified; restore registration order.
	sort.Slice(insts, func(i, j int) bool { return insts[i].regIndex < insts[j].regIndex })

	out := make([]InstanceInfo, 0, len(insts))
	for _, inst := range insts {
		out = append(out, snapshot(inst))
	}
	return out
}

func snapshot(inst *instance) InstanceInfo {
	return InstanceInfo{
		Definition:    inst.def,
		Active:        inst.active,
		CurrentTasks:  inst.currentTasks,
		TotalExecuted: inst.totalExecuted,
		LastUsedAt:    inst.lastUsedAt,
	}
}

// Shutdown destroys every registered agent and empties the pool.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	agents := make(map[string]SubAgent, len(r.instances))
	for name, inst := range r.instances {
		agents[name] = inst.agent
	}
	r.instances = make(map[string]*instance)
	r.mu.Unlock()

	for name, agent := range agents {
		if err := agent.Destroy(ctx); err != nil {
			log.Printf("[subagent] warning: destroy agent %q: %v", name, err)
		}
	}
}
