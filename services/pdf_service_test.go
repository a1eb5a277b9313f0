package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  map[int]bool
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()

	if e.fail[call] {
		return nil, errors.New("quota exhausted")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(call), float32(i)}
	}
	return vectors, nil
}

func newTestService(gen ai.Generator) *DocumentService {
	return NewDocumentService(config.DefaultEngineConfig(), DocumentServiceDeps{Generator: gen})
}

func seedDocument(t *testing.T, svc *DocumentService) *models.Document {
	t.Helper()
	doc := testDocument(exampleChunks()...)
	doc.FullText = "Revenue grew 12% in Q1. Costs declined slightly."
	svc.store.Put(doc)
	return doc
}

func intPtr(v int) *int { return &v }

func TestUpload(t *testing.T) {
	svc := newTestService(replyWith("unused"))
	text := "  " + strings.Repeat("Quarterly revenue report. ", 100) + "  "

	resp, err := svc.Upload(context.Background(), UploadInput{
		Filename:   "report.pdf",
		Text:       text,
		TotalPages: 4,
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "report.pdf", resp.Filename)
	assert.Equal(t, 4, resp.TotalPages)
	assert.Equal(t, 500, len([]rune(resp.Preview)))
	assert.True(t, strings.HasPrefix(resp.Preview, "Quarterly"))
	assert.Equal(t, "Successfully processed report.pdf", resp.Message)
	assert.Equal(t, config.DefaultEngineConfig().Chunking, resp.ChunkingConfig)
	assert.Contains(t, resp.Summary, "Document uploaded: report.pdf - 4 pages")

	require.Len(t, resp.SummarySources, 3)
	assert.Equal(t, models.ChunkID(resp.DocumentID, 0), resp.SummarySources[0].ChunkID)
	assert.True(t, strings.HasSuffix(resp.SummarySources[0].Preview, "..."))
	assert.Equal(t, "Page 1 content", resp.SummarySources[0].Contribution)

	doc, err := svc.GetDocument(resp.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, resp.TotalChunks, doc.TotalChunks())
	assert.Equal(t, strings.TrimSpace(text), doc.FullText)
	assert.Len(t, svc.ListDocuments(), 1)
}

func TestUpload_Overrides(t *testing.T) {
	svc := newTestService(nil)

	resp, err := svc.Upload(context.Background(), UploadInput{
		Filename:  "short.pdf",
		Text:      strings.Repeat("x", 250),
		Overrides: models.ChunkingOverrides{ChunkSize: intPtr(100), Overlap: intPtr(20), MinChunkSize: intPtr(50)},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.TotalChunks)
	assert.Equal(t, 1, resp.TotalPages)
	assert.Equal(t, models.ChunkingConfig{ChunkSize: 100, Overlap: 20, MinChunkSize: 50}, resp.ChunkingConfig)
}

func TestUpload_Rejects(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_, err := svc.Upload(ctx, UploadInput{Filename: "blank.pdf", Text: " \n\t "})
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = svc.Upload(ctx, UploadInput{
		Filename:  "a.pdf",
		Text:      "text",
		Overrides: models.ChunkingOverrides{ChunkSize: intPtr(0)},
	})
	assert.ErrorIs(t, err, ErrInvalidChunking)

	_, err = svc.Upload(ctx, UploadInput{
		Filename:  "a.pdf",
		Text:      "text",
		Overrides: models.ChunkingOverrides{Overlap: intPtr(-1)},
	})
	assert.ErrorIs(t, err, ErrInvalidChunking)

	assert.Empty(t, svc.ListDocuments())
}

func TestUpload_EmbeddingBatchFailureIsSkipped(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.Embeddings = config.EmbeddingsConfig{Enabled: true, BatchSize: 2}
	embedder := &fakeEmbedder{fail: map[int]bool{2: true}}
	svc := NewDocumentService(cfg, DocumentServiceDeps{Embedder: embedder})

	resp, err := svc.Upload(context.Background(), UploadInput{
		Filename:  "e.pdf",
		Text:      strings.Repeat("y", 500),
		Overrides: models.ChunkingOverrides{ChunkSize: intPtr(100), Overlap: intPtr(0), MinChunkSize: intPtr(0)},
	})
	require.NoError(t, err)
	require.Equal(t, 5, resp.TotalChunks)

	doc, _ := svc.GetDocument(resp.DocumentID)
	assert.Equal(t, 3, embedder.calls)
	assert.NotNil(t, doc.Chunks[0].Embedding)
	assert.NotNil(t, doc.Chunks[1].Embedding)
	assert.Nil(t, doc.Chunks[2].Embedding)
	assert.Nil(t, doc.Chunks[3].Embedding)
	assert.NotNil(t, doc.Chunks[4].Embedding)
}

func TestUploadPDF_Rejects(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_, err := svc.UploadPDF(ctx, "notes.txt", strings.NewReader("%PDF-1.4"), models.ChunkingOverrides{})
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = svc.UploadPDF(ctx, "../escape.pdf", strings.NewReader("%PDF-1.4"), models.ChunkingOverrides{})
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = svc.UploadPDF(ctx, "fake.pdf", strings.NewReader("plain text"), models.ChunkingOverrides{})
	assert.ErrorIs(t, err, ErrInvalidFile)
}

func TestQuery(t *testing.T) {
	gen := replyWith("Revenue grew 12% [1].")
	svc := newTestService(gen)
	doc := seedDocument(t, svc)

	resp, err := svc.Query(context.Background(), models.QueryRequest{
		DocumentID: doc.ID,
		Query:      "How did revenue change?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Revenue grew 12% [1].", resp.Answer)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "c0", resp.Citations[0].ChunkID)
	assert.Equal(t, 1, resp.Citations[0].PageNumber)
	assert.Equal(t, 0.9, resp.Confidence)
	assert.Equal(t, 2, resp.ConversationLength)
	assert.NotEmpty(t, resp.SessionID)

	session, err := svc.GetSession(resp.SessionID)
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, models.RoleUser, session.Messages[0].Role)
	assert.Equal(t, resp.Citations, session.Messages[1].Citations)
}

func TestQuery_HistoryExcludesCurrentQuestion(t *testing.T) {
	gen := replyWith("Revenue grew [1].")
	svc := newTestService(gen)
	doc := seedDocument(t, svc)
	ctx := context.Background()

	first, err := svc.Query(ctx, models.QueryRequest{DocumentID: doc.ID, Query: "What about revenue"})
	require.NoError(t, err)
	require.Len(t, gen.Requests(), 1)
	assert.NotContains(t, systemPrompt(gen.Requests()[0]), "Previous conversation")

	second, err := svc.Query(ctx, models.QueryRequest{DocumentID: doc.ID, Query: "And revenue again", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 4, second.ConversationLength)

	requests := gen.Requests()
	require.Len(t, requests, 2)
	prompt := systemPrompt(requests[1])
	assert.Contains(t, prompt, "Previous conversation:\nUser: What about revenue\nAssistant: Revenue grew [1].")
	assert.NotContains(t, prompt, "And revenue again")
	assert.Equal(t, "And revenue again", userPrompt(requests[1]))
}

func TestQuery_NoRelevantChunks(t *testing.T) {
	gen := replyWith("unused")
	svc := newTestService(gen)
	doc := seedDocument(t, svc)

	resp, err := svc.Query(context.Background(), models.QueryRequest{DocumentID: doc.ID, Query: "zebra"})
	require.NoError(t, err)

	assert.Equal(t, noRelevantInfoAnswer, resp.Answer)
	assert.Empty(t, resp.Citations)
	assert.Equal(t, 0.5, resp.Confidence)
	assert.Empty(t, gen.Requests())
}

func TestQuery_UnknownDocument(t *testing.T) {
	svc := newTestService(replyWith("unused"))
	_, err := svc.Query(context.Background(), models.QueryRequest{DocumentID: "missing", Query: "q"})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func drainEvents(ch <-chan models.StreamEvent) []models.StreamEvent {
	var out []models.StreamEvent
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func TestStreamQuery(t *testing.T) {
	gen := &fakeGenerator{stream: []ai.Fragment{{Text: "Revenue grew "}, {Text: "12% [1]."}}}
	svc := newTestService(gen)
	doc := seedDocument(t, svc)

	events := drainEvents(svc.StreamQuery(context.Background(), models.QueryRequest{
		DocumentID: doc.ID,
		Query:      "How did revenue change?",
	}))

	types := make([]models.StreamEventType, len(events))
	for i, e := range events {
		types[i] = e.Type
		assert.NotEmpty(t, e.Timestamp)
	}
	assert.Equal(t, []models.StreamEventType{
		models.StreamProcessing,
		models.StreamSources,
		models.StreamTextChunk,
		models.StreamTextChunk,
		models.StreamComplete,
	}, types)

	processing := events[0].Content.(models.StreamStatus)
	assert.Equal(t, 1, processing.ConversationLength)

	sources := events[1].Content.([]models.SummarySource)
	require.Len(t, sources, 1)
	assert.Equal(t, "c0", sources[0].ChunkID)
	assert.Equal(t, "Relevant section from page 1", sources[0].Contribution)

	complete := events[4].Content.(models.StreamStatus)
	assert.Equal(t, 2, complete.ConversationLength)

	session, err := svc.GetSession(complete.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew 12% [1].", session.Messages[1].Content)
}

func TestStreamQuery_UnknownDocument(t *testing.T) {
	svc := newTestService(&fakeGenerator{})

	events := drainEvents(svc.StreamQuery(context.Background(), models.QueryRequest{DocumentID: "missing", Query: "q"}))

	require.Len(t, events, 1)
	assert.Equal(t, models.StreamError, events[0].Type)
	assert.Equal(t, "Document not found: missing", events[0].Content)
}

func TestSummarize_CachesResult(t *testing.T) {
	gen := &fakeGenerator{reply: func(req ai.CompletionRequest) (string, error) {
		if strings.HasPrefix(userPrompt(req), "Sources:") {
			return "Revenue rose [1] while costs fell [2].", nil
		}
		return "A one sentence summary.", nil
	}}
	svc := newTestService(gen)
	doc := seedDocument(t, svc)

	resp, err := svc.Summarize(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Revenue rose [1] while costs fell [2].", resp.Summary)
	assert.Len(t, resp.ChunkSummaries, 2)

	summary, err := svc.GetDocumentSummary(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Summary, summary)

	stored, _ := svc.GetDocument(doc.ID)
	assert.Equal(t, "A one sentence summary.", stored.Chunks[0].Summary)

	_, err = svc.Summarize(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestQuickSummarize_FailureIsNotCached(t *testing.T) {
	svc := newTestService(failWith(errors.New("boom")))
	doc := seedDocument(t, svc)

	resp, err := svc.QuickSummarize(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, quickFailedSummary, resp.Summary)

	summary, _ := svc.GetDocumentSummary(doc.ID)
	assert.Empty(t, summary)
}

func TestGetDocumentText(t *testing.T) {
	svc := newTestService(nil)
	doc := seedDocument(t, svc)

	text, err := svc.GetDocumentText(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew 12% in Q1. Costs declined slightly.", text)

	_, err = svc.GetDocumentText("missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDeleteDocument_ClearsSessions(t *testing.T) {
	svc := newTestService(replyWith("Revenue [1]."))
	doc := seedDocument(t, svc)
	_, err := svc.Query(context.Background(), models.QueryRequest{DocumentID: doc.ID, Query: "revenue?"})
	require.NoError(t, err)
	require.Len(t, svc.ListSessions(), 1)

	cleared, err := svc.DeleteDocument(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
	assert.Empty(t, svc.ListSessions())

	_, err = svc.DeleteDocument(doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDeleteSession(t *testing.T) {
	svc := newTestService(replyWith("Revenue [1]."))
	doc := seedDocument(t, svc)
	resp, err := svc.Query(context.Background(), models.QueryRequest{DocumentID: doc.ID, Query: "revenue?"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(resp.SessionID))
	assert.ErrorIs(t, svc.DeleteSession(resp.SessionID), ErrSessionNotFound)
	_, err = svc.GetSession(resp.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
