package models

import "errors"

// Sentinel errors forming the runtime's error taxonomy. Callers classify
// failures with errors.Is rather than string matching.
var (
	// ErrValidation indicates a malformed task or tool parameters.
	ErrValidation = errors.New("validation error")
	// ErrNotFound indicates an unknown tool, agent, or session.
	ErrNotFound = errors.New("not found")
	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrExecution indicates a tool, agent, or LLM call raised.
	ErrExecution = errors.New("execution error")
	// ErrProtocol indicates a remote error envelope was received.
	ErrProtocol = errors.New("protocol error")
)
