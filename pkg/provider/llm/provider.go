// Package llm defines the Provider interface for chat-completion backends.
//
// A provider wraps a hosted or local model API (OpenAI, Anthropic, Ollama, ...)
// and answers a single-turn question under a fixed system prompt. The chat
// service never talks to an SDK directly; it only sees this interface, which
// keeps the fallback path testable without network access.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Message is a single entry in the conversation sent to the model.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce an answer.
type CompletionRequest struct {
	// SystemPrompt is sent as the leading "system" message. Providers without a
	// dedicated system slot prepend it as a message.
	SystemPrompt string

	// Messages is the ordered conversation. For the chat proxy this is always
	// a single "user" message holding the visitor's question.
	Messages []Message

	// Temperature controls output randomness. Zero means provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	// Content is the assistant text. May be empty if the model produced nothing.
	Content string

	// Usage contains token accounting for the request.
	Usage Usage
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// It returns an error for transport, authentication and quota failures
	// and when ctx is cancelled before the answer arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// UserMessage is a shorthand for a single "user" role message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}
