// Package providers defines the collaborator interfaces the core
// delegates to: embedding generation and chat completion (§6). The
// core never generates embeddings in-process and never retries a
// failed provider call — that is the caller's responsibility.
package providers

import "context"

// ChatMessage is a single turn in a chat conversation.
type ChatMessage struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// ChatOptions tunes a chat completion call.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// ChatResult is the outcome of a chat completion call.
type ChatResult struct {
	Text  string
	Usage Usage
}

// Usage reports token accounting for a chat call, when the provider
// supplies it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// EmbeddingClient turns text into a dense vector. Implementations may
// fail (model not loaded, service down); the core treats that as a
// ProviderFailure and degrades gracefully at the points enumerated in
// spec §7, never retrying internally.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ChatClient performs chat/completion calls used by extraction,
// grey-zone classification, and synthesis.
type ChatClient interface {
	Chat(ctx context.Context, messages []ChatMessage, opts *ChatOptions) (*ChatResult, error)
}

// Logger is the optional structured logging collaborator. It is
// satisfied by *logging.Logger without an import cycle back into this
// package, and by a no-op for callers that don't want logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards everything. Useful as a safe default when no
// Logger collaborator is supplied.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
