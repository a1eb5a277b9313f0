package services

import (
	"context"
	"fmt"
	"strings"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/models"
)

const (
	noRelevantInfoAnswer = "I couldn't find relevant information in the document to answer your question. Please try rephrasing or selecting a specific section."
	noRelevantInfoStream = "I couldn't find relevant information in the document to answer your question."
)

// AnswerInput is everything a grounded answer is built from.
type AnswerInput struct {
	Query        string
	Chunks       []models.Chunk // ranked, best first
	SelectedText string
	History      string
}

// AnswerGenerator produces cited answers from ranked chunks.
type AnswerGenerator struct {
	generator ai.Generator
	cfg       config.AnswerConfig
}

func NewAnswerGenerator(generator ai.Generator, cfg config.AnswerConfig) *AnswerGenerator {
	return &AnswerGenerator{generator: generator, cfg: cfg}
}

// Answer returns the answer text and the chunks it cites. With no chunks the
// generator is not called. Upstream failures come back as answer text.
func (g *AnswerGenerator) Answer(ctx context.Context, in AnswerInput) (string, []models.Chunk) {
	if len(in.Chunks) == 0 {
		return noRelevantInfoAnswer, nil
	}

	answer, err := g.generator.Complete(ctx, ai.CompletionRequest{
		Messages:    buildAnswerPrompt(in),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		logger.Error("Answer generation failed", "error", err)
		return fmt.Sprintf("Error generating answer: %s", err.Error()), nil
	}

	return answer, CitedChunks(answer, in.Chunks)
}

// StreamAnswer forwards answer fragments in arrival order. The channel is
// closed at end of answer or when ctx is done. A failure is sent as one final
// text fragment.
func (g *AnswerGenerator) StreamAnswer(ctx context.Context, in AnswerInput) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		send := func(s string) bool {
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if len(in.Chunks) == 0 {
			send(noRelevantInfoStream)
			return
		}

		fragments := g.generator.Stream(ctx, ai.CompletionRequest{
			Messages:    buildStreamPrompt(in),
			MaxTokens:   g.cfg.MaxTokens,
			Temperature: g.cfg.Temperature,
		})
		for f := range fragments {
			if f.Err != nil {
				logger.Error("Streaming answer failed", "error", f.Err)
				send(fmt.Sprintf("Error: %s", f.Err.Error()))
				return
			}
			if f.Text == "" {
				continue
			}
			if !send(f.Text) {
				return
			}
		}
	}()

	return out
}

func buildAnswerPrompt(in AnswerInput) []ai.Message {
	var b strings.Builder
	b.WriteString("You are answering questions about a PDF document.\n")
	b.WriteString("Use ONLY the provided sources to answer. If the answer isn't in the sources, say so.\n\n")
	b.WriteString("CITATION FORMAT (MUST FOLLOW EXACTLY):\n")
	b.WriteString("- Cite as [1], [2], [3] etc.\n")
	b.WriteString("- Place citation immediately after the fact it supports\n")
	b.WriteString("- Example: \"The model uses 512 dimensions [1] and 8 attention heads [2].\"\n")
	b.WriteString("- DO NOT write [Source 1] or [Source 1, Page X] - ONLY use [1], [2], etc.\n\n")
	if in.SelectedText != "" {
		fmt.Fprintf(&b, "User selected text: \"%s\"\nAnswer specifically about this selection.\n\n", in.SelectedText)
	}
	if in.History != "" {
		fmt.Fprintf(&b, "Previous conversation:\n%s\n\n", in.History)
	}
	b.WriteString("Sources:\n")
	b.WriteString(formatSources(in.Chunks))

	return ai.SystemUserPrompt(b.String(), in.Query)
}

func buildStreamPrompt(in AnswerInput) []ai.Message {
	var b strings.Builder
	b.WriteString("You are answering questions about a PDF document.\n")
	b.WriteString("Use ONLY the provided sources. Cite as [1], [2], [3] - NOT [Source 1].\n\n")
	if in.SelectedText != "" {
		fmt.Fprintf(&b, "User selected: \"%s\"\nAnswer about this selection.\n\n", in.SelectedText)
	}
	if in.History != "" {
		fmt.Fprintf(&b, "Previous:\n%s\n\n", in.History)
	}
	b.WriteString("Sources:\n")
	b.WriteString(formatSources(in.Chunks))

	return ai.SystemUserPrompt(b.String(), in.Query)
}

// formatSources numbers chunks from 1 in ranked order.
func formatSources(chunks []models.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, c.Content)
	}
	return strings.Join(parts, "\n\n")
}
