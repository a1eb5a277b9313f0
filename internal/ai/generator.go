package ai

import (
	"context"
	"errors"
)

// Role tags a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of a prompt.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is the input shared by both completion contracts.
type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// Fragment is one element of a completion stream. A fragment with a non-nil
// Err is always the last value sent before the channel is closed.
type Fragment struct {
	Text string
	Err  error
}

// Generator is the text-generation collaborator.
type Generator interface {
	// Complete returns the full completion text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Stream returns incremental text in arrival order. The channel is closed
	// at end of stream or when ctx is cancelled.
	Stream(ctx context.Context, req CompletionRequest) <-chan Fragment
}

var (
	ErrCircuitOpen   = errors.New("text generation temporarily unavailable")
	ErrRateLimited   = errors.New("rate limit exceeded: wait before retry")
	ErrEmptyResponse = errors.New("empty response from model")
	ErrNoUserMessage = errors.New("prompt has no user message")
)

// SystemUserPrompt builds the two-message prompt used by every core call.
func SystemUserPrompt(system, user string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}
