// Package subagent defines the pluggable sub-agent interface and the
// registry that owns the pool of specialized agents.
package subagent

import (
	"context"

	"github.com/tandem-cli/tandem/pkg/models"
)

// SubAgent is the closed interface every specialized agent implements.
// Concrete agents are registered implementations behind this interface,
// not inheritance chains.
//
// Initialize and Destroy are lifecycle hooks invoked exactly once each
// across the instance's life: Initialize during registration, Destroy
// during unregistration (or registry shutdown).
type SubAgent interface {
	// Definition returns the static descriptor for this agent.
	Definition() models.SubAgentDefinition
	// CanHandle reports whether this agent can work on the given task.
	CanHandle(task *models.Task) bool
	// Execute performs the task and returns the agent's output.
	Execute(ctx context.Context, task *models.Task) (string, error)
	// Initialize prepares the agent for dispatch.
	Initialize(ctx context.Context) error
	// Destroy releases the agent's resources.
	Destroy(ctx context.Context) error
}
