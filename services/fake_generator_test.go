package services

import (
	"context"
	"errors"
	"sync"

	"docqa-platform/internal/ai"
)

// fakeGenerator is a scripted ai.Generator.
type fakeGenerator struct {
	mu       sync.Mutex
	reply    func(req ai.CompletionRequest) (string, error)
	stream   []ai.Fragment
	requests []ai.CompletionRequest
}

func replyWith(text string) *fakeGenerator {
	return &fakeGenerator{reply: func(ai.CompletionRequest) (string, error) { return text, nil }}
}

func failWith(err error) *fakeGenerator {
	return &fakeGenerator{reply: func(ai.CompletionRequest) (string, error) { return "", err }}
}

func (f *fakeGenerator) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply := f.reply
	f.mu.Unlock()

	if reply == nil {
		return "", errors.New("no scripted reply")
	}
	return reply(req)
}

func (f *fakeGenerator) Stream(ctx context.Context, req ai.CompletionRequest) <-chan ai.Fragment {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fragments := append([]ai.Fragment(nil), f.stream...)
	f.mu.Unlock()

	out := make(chan ai.Fragment, len(fragments))
	for _, fr := range fragments {
		out <- fr
	}
	close(out)
	return out
}

func (f *fakeGenerator) Requests() []ai.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.CompletionRequest(nil), f.requests...)
}

// systemPrompt returns the system message of a request.
func systemPrompt(req ai.CompletionRequest) string {
	for _, m := range req.Messages {
		if m.Role == ai.RoleSystem {
			return m.Content
		}
	}
	return ""
}

// userPrompt returns the last user message of a request.
func userPrompt(req ai.CompletionRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}
