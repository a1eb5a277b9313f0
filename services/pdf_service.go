package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/telemetry"
	"docqa-platform/models"
	"docqa-platform/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	uploadPreviewChars = 500
	uploadSourceCount  = 3
	querySourceCount   = 5
	streamTimeLayout   = "2006-01-02T15:04:05.000Z07:00"
)

// DocumentService runs document ingestion, question answering,
// summarization and session management over in-memory state.
type DocumentService struct {
	cfg        config.EngineConfig
	store      *DocumentStore
	sessions   *SessionManager
	retriever  *Retriever
	answers    *AnswerGenerator
	summarizer *Summarizer
	extractor  *PDFExtractor
	embedder   ai.Embedder
	metrics    *telemetry.Metrics
}

// DocumentServiceDeps are the collaborators of a DocumentService. Embedder
// may be nil when embeddings are disabled.
type DocumentServiceDeps struct {
	Store     *DocumentStore
	Sessions  *SessionManager
	Generator ai.Generator
	Embedder  ai.Embedder
	Extractor *PDFExtractor
	Metrics   *telemetry.Metrics
}

func NewDocumentService(cfg config.EngineConfig, deps DocumentServiceDeps) *DocumentService {
	store := deps.Store
	if store == nil {
		store = NewDocumentStore()
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = NewSessionManager(cfg.Memory)
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = NewPDFExtractor(0)
	}

	return &DocumentService{
		cfg:        cfg,
		store:      store,
		sessions:   sessions,
		retriever:  NewRetriever(cfg.Search.TopK),
		answers:    NewAnswerGenerator(deps.Generator, cfg.Answer),
		summarizer: NewSummarizer(deps.Generator, cfg.Summarization, deps.Metrics),
		extractor:  extractor,
		embedder:   deps.Embedder,
		metrics:    deps.Metrics,
	}
}

// UploadInput is already-extracted document text.
type UploadInput struct {
	Filename   string
	Text       string
	TotalPages int
	Overrides  models.ChunkingOverrides
}

// Upload chunks and stores a document.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*models.UploadResponse, error) {
	start := time.Now()

	chunking := s.cfg.Chunking.Merge(in.Overrides)
	if err := validateChunking(chunking); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrEmptyDocument
	}
	totalPages := in.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}

	documentID := uuid.NewString()
	logger.Info("Processing document",
		"document_id", documentID,
		"filename", in.Filename,
		"chunk_size", chunking.ChunkSize,
		"overlap", chunking.Overlap,
	)

	chunks := ChunkText(text, documentID, totalPages, chunking)
	s.metrics.RecordChunksCreated(len(chunks))

	if s.cfg.Embeddings.Enabled && s.embedder != nil {
		s.embedChunks(ctx, chunks)
	}

	summary := fmt.Sprintf("Document uploaded: %s - %d pages, %d sections. Ask questions to explore the content.",
		in.Filename, totalPages, len(chunks))
	sources := make([]models.SummarySource, 0, uploadSourceCount)
	for i, c := range chunks {
		if i >= uploadSourceCount {
			break
		}
		sources = append(sources, models.SummarySource{
			PageNumber:   c.PageNumber,
			ChunkID:      c.ID,
			ChunkIndex:   i,
			Text:         c.Content,
			Preview:      utils.Prefix(c.Content, 150) + "...",
			Contribution: fmt.Sprintf("Page %d content", c.PageNumber),
		})
	}

	doc := &models.Document{
		ID:             documentID,
		Filename:       documentID + strings.ToLower(filepath.Ext(in.Filename)),
		OriginalName:   in.Filename,
		UploadedAt:     time.Now().UTC(),
		TotalPages:     totalPages,
		Chunks:         chunks,
		FullText:       text,
		Summary:        summary,
		ChunkingConfig: chunking,
	}
	s.store.Put(doc)

	logger.Info("Document processed",
		"document_id", documentID,
		"chunks", len(chunks),
		"pages", totalPages,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &models.UploadResponse{
		Success:        true,
		DocumentID:     documentID,
		Filename:       in.Filename,
		TotalPages:     totalPages,
		TotalChunks:    len(chunks),
		Preview:        utils.Prefix(text, uploadPreviewChars),
		Message:        fmt.Sprintf("Successfully processed %s", in.Filename),
		Summary:        summary,
		SummarySources: sources,
		ChunkingConfig: chunking,
	}, nil
}

// UploadPDF extracts the text of a PDF and uploads it.
func (s *DocumentService) UploadPDF(ctx context.Context, filename string, r io.Reader, overrides models.ChunkingOverrides) (*models.UploadResponse, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}

	extracted, err := s.extractor.Extract(ctx, r)
	if err != nil {
		return nil, err
	}
	logger.Info("Text extracted", "filename", filename, "chars", len(extracted.Text), "pages", extracted.Pages)

	return s.Upload(ctx, UploadInput{
		Filename:   filename,
		Text:       extracted.Text,
		TotalPages: extracted.Pages,
		Overrides:  overrides,
	})
}

// embedChunks fills chunk embeddings batch by batch. A failed batch is
// skipped.
func (s *DocumentService) embedChunks(ctx context.Context, chunks []models.Chunk) {
	batchSize := s.cfg.Embeddings.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Content)
		}

		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			logger.Warn("Embedding batch failed, continuing without embeddings",
				"batch", i/batchSize+1,
				"error", err,
			)
			continue
		}
		for j, v := range vectors {
			chunks[i+j].Embedding = v
		}
	}
}

// Query answers a question about a document and records the exchange in
// the conversation session.
func (s *DocumentService) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	tracer := otel.Tracer("document-service")
	ctx, span := tracer.Start(ctx, "document.query")
	defer span.End()

	doc, err := s.store.Get(req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, req.DocumentID)
	}

	session := s.sessions.GetOrCreate(doc.ID, doc.OriginalName, req.SessionID)
	history := s.sessions.BuildContext(session.ID)
	if _, err := s.sessions.Append(session.ID, models.RoleUser, req.Query, nil); err != nil {
		return nil, err
	}
	logger.Info("Querying document", "document_id", doc.ID, "session_id", session.ID)

	ranked := s.retriever.FindRelevant(doc, req.Query, req.SelectedText, req.SelectedPage)
	answer, cited := s.answers.Answer(ctx, AnswerInput{
		Query:        req.Query,
		Chunks:       ranked,
		SelectedText: req.SelectedText,
		History:      history,
	})
	citations := BuildCitations(cited)

	length, err := s.sessions.Append(session.ID, models.RoleAssistant, answer, citations)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("document.id", doc.ID),
		attribute.Int("query.ranked_chunks", len(ranked)),
		attribute.Int("query.citations", len(citations)),
	)

	confidence := 0.5
	if len(citations) > 0 {
		confidence = 0.9
	}
	return &models.QueryResponse{
		Answer:             answer,
		Citations:          citations,
		DocumentID:         doc.ID,
		Confidence:         confidence,
		SessionID:          session.ID,
		ConversationLength: length,
	}, nil
}

// StreamQuery answers a question as a sequence of events: processing,
// sources, text chunks, then complete. An unknown document yields a single
// error event. The channel is closed when the answer ends or ctx is done.
func (s *DocumentService) StreamQuery(ctx context.Context, req models.QueryRequest) <-chan models.StreamEvent {
	events := make(chan models.StreamEvent)

	go func() {
		defer close(events)

		tracer := otel.Tracer("document-service")
		ctx, span := tracer.Start(ctx, "document.stream_query")
		defer span.End()

		send := func(t models.StreamEventType, content interface{}) bool {
			select {
			case events <- newStreamEvent(t, content):
				return true
			case <-ctx.Done():
				return false
			}
		}

		doc, err := s.store.Get(req.DocumentID)
		if err != nil {
			send(models.StreamError, fmt.Sprintf("Document not found: %s", req.DocumentID))
			return
		}

		session := s.sessions.GetOrCreate(doc.ID, doc.OriginalName, req.SessionID)
		history := s.sessions.BuildContext(session.ID)
		length, err := s.sessions.Append(session.ID, models.RoleUser, req.Query, nil)
		if err != nil {
			send(models.StreamError, err.Error())
			return
		}

		if !send(models.StreamProcessing, models.StreamStatus{
			Message:            "Finding relevant sections...",
			SessionID:          session.ID,
			ConversationLength: length,
		}) {
			return
		}

		ranked := s.retriever.FindRelevant(doc, req.Query, req.SelectedText, req.SelectedPage)
		if !send(models.StreamSources, querySources(ranked)) {
			return
		}

		var full strings.Builder
		fragments := s.answers.StreamAnswer(ctx, AnswerInput{
			Query:        req.Query,
			Chunks:       ranked,
			SelectedText: req.SelectedText,
			History:      history,
		})
		for fragment := range fragments {
			full.WriteString(fragment)
			if !send(models.StreamTextChunk, fragment) {
				break
			}
		}

		length, err = s.sessions.Append(session.ID, models.RoleAssistant, full.String(), nil)
		if err != nil {
			logger.Warn("Session ended before answer was recorded", "session_id", session.ID, "error", err)
		}
		if ctx.Err() != nil {
			return
		}

		send(models.StreamComplete, models.StreamStatus{
			Message:            "Query complete",
			SessionID:          session.ID,
			ConversationLength: length,
		})
	}()

	return events
}

func querySources(ranked []models.Chunk) []models.SummarySource {
	if len(ranked) > querySourceCount {
		ranked = ranked[:querySourceCount]
	}
	sources := make([]models.SummarySource, len(ranked))
	for i, c := range ranked {
		sources[i] = models.SummarySource{
			PageNumber:   c.PageNumber,
			ChunkID:      c.ID,
			ChunkIndex:   i,
			Text:         c.Content,
			Preview:      extractFirstSentence(c.Content),
			Contribution: fmt.Sprintf("Relevant section from page %d", c.PageNumber),
		}
	}
	return sources
}

func newStreamEvent(t models.StreamEventType, content interface{}) models.StreamEvent {
	return models.StreamEvent{
		Type:      t,
		Content:   content,
		Timestamp: time.Now().UTC().Format(streamTimeLayout),
	}
}

// Summarize runs map-reduce summarization and caches the result on the
// document, replacing any earlier summary.
func (s *DocumentService) Summarize(ctx context.Context, documentID string) (*models.SummarizeResponse, error) {
	tracer := otel.Tracer("document-service")
	ctx, span := tracer.Start(ctx, "document.summarize")
	defer span.End()

	doc, err := s.store.Get(documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, documentID)
	}

	start := time.Now()
	result := s.summarizer.Summarize(ctx, doc.Chunks)
	if err := s.store.RecordSummary(doc.ID, result.Summary, result.ChunkSummaries); err != nil {
		logger.Warn("Document removed before summary was cached", "document_id", doc.ID)
	}

	span.SetAttributes(attribute.Int("summary.sources", len(result.Sources)))
	return &models.SummarizeResponse{
		Summary:          result.Summary,
		DocumentID:       doc.ID,
		ChunkSummaries:   result.ChunkSummaries,
		Sources:          result.Sources,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// QuickSummarize summarizes the opening of a document in a single call.
func (s *DocumentService) QuickSummarize(ctx context.Context, documentID string) (*models.SummarizeResponse, error) {
	doc, err := s.store.Get(documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, documentID)
	}

	start := time.Now()
	summary, sources := s.summarizer.QuickSummarize(ctx, doc.FullText, doc.Chunks)
	if summary != quickFailedSummary {
		if err := s.store.RecordSummary(doc.ID, summary, nil); err != nil {
			logger.Warn("Document removed before summary was cached", "document_id", doc.ID)
		}
	}

	return &models.SummarizeResponse{
		Summary:          summary,
		DocumentID:       doc.ID,
		Sources:          sources,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (s *DocumentService) ListDocuments() []models.DocumentInfo {
	return s.store.List()
}

func (s *DocumentService) GetDocument(documentID string) (*models.Document, error) {
	doc, err := s.store.Get(documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, documentID)
	}
	return doc, nil
}

// GetDocumentText returns the chunk contents joined by single spaces.
func (s *DocumentService) GetDocumentText(documentID string) (string, error) {
	doc, err := s.GetDocument(documentID)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(doc.Chunks))
	for i, c := range doc.Chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, " "), nil
}

func (s *DocumentService) GetDocumentSummary(documentID string) (string, error) {
	doc, err := s.GetDocument(documentID)
	if err != nil {
		return "", err
	}
	return doc.Summary, nil
}

// DeleteDocument removes a document and its sessions. It returns the number
// of sessions cleared.
func (s *DocumentService) DeleteDocument(documentID string) (int, error) {
	if !s.store.Delete(documentID) {
		return 0, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	cleared := s.sessions.ClearDocument(documentID)
	logger.Info("Document deleted", "document_id", documentID, "sessions_cleared", cleared)
	return cleared, nil
}

func (s *DocumentService) ListSessions() []models.SessionInfo {
	return s.sessions.List()
}

func (s *DocumentService) GetSession(sessionID string) (models.ConversationSession, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return session, fmt.Errorf("%w: %s", err, sessionID)
	}
	return session, nil
}

func (s *DocumentService) DeleteSession(sessionID string) error {
	if !s.sessions.Delete(sessionID) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

func (s *DocumentService) ClearDocumentSessions(documentID string) int {
	return s.sessions.ClearDocument(documentID)
}

// Config returns the active engine configuration.
func (s *DocumentService) Config() config.EngineConfig {
	return s.cfg
}

// validateChunking rejects sizes the chunker cannot honour. An overlap at or
// above the chunk size is allowed.
func validateChunking(c models.ChunkingConfig) error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidChunking)
	case c.Overlap < 0:
		return fmt.Errorf("%w: overlap must not be negative", ErrInvalidChunking)
	case c.MinChunkSize < 0:
		return fmt.Errorf("%w: min chunk size must not be negative", ErrInvalidChunking)
	}
	return nil
}

// validateFilename ensures filename is safe
func validateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidFile)
	}

	if len(filename) > 255 {
		return fmt.Errorf("%w: filename too long (max 255 characters)", ErrInvalidFile)
	}

	dangerous := []string{"../", "..\\", "<", ">", ":", "\"", "|", "?", "*", "\x00"}
	for _, char := range dangerous {
		if strings.Contains(filename, char) {
			return fmt.Errorf("%w: filename contains invalid or dangerous characters", ErrInvalidFile)
		}
	}

	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return fmt.Errorf("%w: only PDF files (.pdf extension) are allowed", ErrInvalidFile)
	}

	return nil
}
