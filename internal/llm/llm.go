// Package llm defines the conversation collaborator consumed by the
// orchestrator and provides the Anthropic-backed implementation.
//
// The orchestrator only depends on the Conversation interface; retry policy
// and transport details belong to the implementation.
package llm

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a message authored by the user or the orchestrator.
	RoleUser Role = "user"
	// RoleAssistant marks a message authored by the model.
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Params are per-call tuning values. Zero values fall back to the
// implementation's defaults.
type Params struct {
	// Model overrides the configured model for this call.
	Model string
	// Temperature sets sampling temperature when >= 0. Use -1 to keep
	// the provider default.
	Temperature float64
	// MaxTokens caps the response length.
	MaxTokens int
}

// Conversation turns a message history into a single text response.
type Conversation interface {
	ProcessConversation(ctx context.Context, messages []Message) (string, error)
}

// TunableConversation is implemented by clients that accept per-call
// parameter adjustments from the steering controller.
type TunableConversation interface {
	Conversation
	ProcessConversationWithParams(ctx context.Context, messages []Message, params Params) (string, error)
}
