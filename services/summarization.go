package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/telemetry"
	"docqa-platform/models"
	"docqa-platform/utils"

	"golang.org/x/sync/errgroup"
)

const (
	reduceFailedSummary = "Failed to generate summary"
	quickFailedSummary  = "Failed to generate summary. You can still ask questions about the document."

	mapSystemPrompt = "Extract the main point from this text in ONE clear sentence. Be specific and precise."

	reduceSystemPrompt = `Create a comprehensive summary of this document using the provided sources.

CITATION RULES (FOLLOW EXACTLY):
- Cite sources as [1], [2], [3] etc.
- Place citation immediately after the relevant fact
- Be specific: cite the exact source that supports each statement
- Example: "Attention mechanisms allow modeling dependencies [3]. The model uses 512 dimensions [7]."

FORMAT: Write clear paragraphs. Each key fact should have a citation.`

	quickSystemPrompt = `You are a document summarizer. Create a comprehensive summary of this document.
Include main topics, key points, and important details.
Use [Source X] citations to reference specific sections (where X is 1, 2, 3, etc.).
Structure your response with clear paragraphs.`
)

var firstSentence = regexp.MustCompile(`^[^.!?]*[.!?]`)

// Summarizer produces cited document summaries with a map-reduce pass over
// the chunks, or a single call over the opening text.
type Summarizer struct {
	generator ai.Generator
	cfg       config.SummarizationConfig
	metrics   *telemetry.Metrics
}

func NewSummarizer(generator ai.Generator, cfg config.SummarizationConfig, metrics *telemetry.Metrics) *Summarizer {
	return &Summarizer{
		generator: generator,
		cfg:       cfg,
		metrics:   metrics,
	}
}

// SummaryResult is the output of a map-reduce summarization.
type SummaryResult struct {
	Summary        string
	ChunkSummaries []models.ChunkSummary
	Sources        []models.SummarySource
}

// Summarize maps the first MaxChunksToSummarize chunks to one-sentence
// summaries and reduces them into a single cited summary. A failed map call
// falls back to the chunk's first sentence; a failed reduce keeps the sources.
func (s *Summarizer) Summarize(ctx context.Context, chunks []models.Chunk) SummaryResult {
	start := time.Now()

	if s.cfg.MaxChunksToSummarize > 0 && len(chunks) > s.cfg.MaxChunksToSummarize {
		chunks = chunks[:s.cfg.MaxChunksToSummarize]
	}

	summaries := s.mapChunks(ctx, chunks)
	summary := s.reduce(ctx, summaries)

	sources := make([]models.SummarySource, len(summaries))
	for i, cs := range summaries {
		sources[i] = models.SummarySource{
			PageNumber:   cs.PageNumber,
			ChunkID:      cs.ChunkID,
			ChunkIndex:   i,
			Text:         cs.SourceText,
			Preview:      cs.SourcePreview,
			Contribution: cs.Summary,
		}
	}

	elapsed := time.Since(start)
	s.metrics.RecordSummarization("map_reduce", elapsed.Seconds(), len(sources))
	logger.Info("Map-reduce summary complete",
		"sources", len(sources),
		"duration_ms", elapsed.Milliseconds(),
	)

	return SummaryResult{
		Summary:        summary,
		ChunkSummaries: summaries,
		Sources:        sources,
	}
}

// mapChunks summarizes chunks in batches. Calls within a batch run
// concurrently; batches run one after another.
func (s *Summarizer) mapChunks(ctx context.Context, chunks []models.Chunk) []models.ChunkSummary {
	batchSize := s.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	summaries := make([]models.ChunkSummary, len(chunks))
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		var g errgroup.Group
		for j := i; j < end; j++ {
			j := j
			g.Go(func() error {
				summaries[j] = s.mapChunk(ctx, j, chunks[j])
				return nil
			})
		}
		_ = g.Wait()
	}
	return summaries
}

func (s *Summarizer) mapChunk(ctx context.Context, index int, chunk models.Chunk) models.ChunkSummary {
	preview := extractFirstSentence(chunk.Content)
	cs := models.ChunkSummary{
		ChunkID:       chunk.ID,
		ChunkIndex:    index,
		PageNumber:    chunk.PageNumber,
		SourceText:    chunk.Content,
		SourcePreview: preview,
	}

	summary, err := s.generator.Complete(ctx, ai.CompletionRequest{
		Messages:    ai.SystemUserPrompt(mapSystemPrompt, chunk.Content),
		MaxTokens:   s.cfg.MapMaxTokens,
		Temperature: s.cfg.MapTemperature,
	})
	summary = strings.TrimSpace(summary)
	if err != nil || summary == "" {
		logger.Warn("Chunk summary failed, using first sentence",
			"chunk_id", chunk.ID,
			"error", err,
		)
		cs.Summary = preview
		cs.Fallback = true
		return cs
	}

	cs.Summary = summary
	return cs
}

func (s *Summarizer) reduce(ctx context.Context, summaries []models.ChunkSummary) string {
	if len(summaries) == 0 {
		return reduceFailedSummary
	}

	lines := make([]string, len(summaries))
	for i, cs := range summaries {
		lines[i] = fmt.Sprintf("[%d] Page %d: \"%s\"", cs.ChunkIndex+1, cs.PageNumber, cs.Summary)
	}
	user := fmt.Sprintf("Sources:\n%s\n\nCreate a detailed summary with precise citations:", strings.Join(lines, "\n"))

	summary, err := s.generator.Complete(ctx, ai.CompletionRequest{
		Messages:    ai.SystemUserPrompt(reduceSystemPrompt, user),
		MaxTokens:   s.cfg.ReduceMaxTokens,
		Temperature: s.cfg.ReduceTemperature,
	})
	if err != nil {
		logger.Error("Reduce step failed", "sources", len(summaries), "error", err)
		return reduceFailedSummary
	}
	return summary
}

// QuickSummarize summarizes the opening QuickSummaryMaxChars characters in
// one call. Sources are the chunks starting inside that span.
func (s *Summarizer) QuickSummarize(ctx context.Context, fullText string, chunks []models.Chunk) (string, []models.SummarySource) {
	start := time.Now()
	maxChars := s.cfg.QuickSummaryMaxChars

	text := utils.Prefix(fullText, maxChars)
	if len([]rune(fullText)) > maxChars {
		text += "\n\n[Document continues...]"
	}

	summary, err := s.generator.Complete(ctx, ai.CompletionRequest{
		Messages:    ai.SystemUserPrompt(quickSystemPrompt, "Summarize this document:\n\n"+text),
		MaxTokens:   s.cfg.ReduceMaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		logger.Error("Quick summarization failed", "error", err)
		return quickFailedSummary, []models.SummarySource{}
	}

	sources := make([]models.SummarySource, 0, s.cfg.QuickSummarySources)
	for _, c := range chunks {
		if len(sources) >= s.cfg.QuickSummarySources {
			break
		}
		if c.StartChar >= maxChars {
			continue
		}
		sources = append(sources, models.SummarySource{
			PageNumber:   c.PageNumber,
			ChunkID:      c.ID,
			ChunkIndex:   len(sources),
			Text:         c.Content,
			Preview:      utils.Truncate(c.Content, 150),
			Contribution: fmt.Sprintf("Content from page %d", c.PageNumber),
		})
	}

	elapsed := time.Since(start)
	s.metrics.RecordSummarization("quick", elapsed.Seconds(), len(sources))
	logger.Info("Quick summary complete", "duration_ms", elapsed.Milliseconds())

	return summary, sources
}

// extractFirstSentence returns the first sentence of text when it is longer
// than 20 characters, else the first 120 characters.
func extractFirstSentence(text string) string {
	cleaned := utils.CollapseWhitespace(text)
	if m := firstSentence.FindString(cleaned); len([]rune(m)) > 20 {
		return strings.TrimSpace(m)
	}
	return utils.Truncate(cleaned, 120)
}
