// Package llm defines the Provider interface for chat-completion backends.
//
// A provider wraps a remote model API (OpenAI, Mistral, a local llama.cpp
// server, ...) and exposes a single blocking completion call. The order
// pipeline only ever needs the full assistant reply, so there is no streaming
// surface here.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry of a chat conversation.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation, usually a system instruction
	// followed by one user message.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero leaves the
	// provider default in place.
	Temperature float64

	// MaxTokens caps the number of generated tokens. Zero means provider default.
	MaxTokens int

	// JSONMode asks the backend to constrain its output to a JSON object when
	// the API supports it. Providers without such a switch ignore it.
	JSONMode bool
}

// CompletionResponse is the full reply of a Complete call.
type CompletionResponse struct {
	// Content is the text of the assistant's reply.
	Content string

	// Model is the model identifier that produced the reply, as reported by
	// the backend. May be empty.
	Model string

	Usage Usage
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// It returns promptly with an error when ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
