package models

// SubAgentDefinition is the static descriptor a sub-agent registers under.
type SubAgentDefinition struct {
	// Name is the unique registry key for this agent.
	Name string `json:"name" yaml:"name"`
	// Capabilities lists the capability tags this agent advertises.
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	// Specialization is a human-readable description of the agent's focus.
	Specialization string `json:"specialization" yaml:"specialization"`
	// Priority biases selection toward this agent when several are eligible.
	Priority int `json:"priority" yaml:"priority"`
	// MaxConcurrentTasks caps simultaneous dispatches to this agent.
	MaxConcurrentTasks int `json:"max_concurrent_tasks" yaml:"max_concurrent_tasks"`
}
