package models

// Citation links part of an answer back to the chunk that supports it.
type Citation struct {
	PageNumber     int     `json:"page_number"`
	ChunkID        string  `json:"chunk_id"`
	Text           string  `json:"text"`
	RelevanceScore float64 `json:"relevance_score"`
	StartChar      int     `json:"start_char"`
	EndChar        int     `json:"end_char"`
}

// SummarySource is a chunk referenced by a [N] marker in a summary.
type SummarySource struct {
	PageNumber   int    `json:"page_number"`
	ChunkID      string `json:"chunk_id"`
	ChunkIndex   int    `json:"chunk_index"`
	Text         string `json:"text"`
	Preview      string `json:"preview"`
	Contribution string `json:"contribution"`
}

// ChunkSummary is the map-step output for a single chunk.
type ChunkSummary struct {
	ChunkID       string `json:"chunk_id"`
	ChunkIndex    int    `json:"chunk_index"`
	Summary       string `json:"summary"`
	PageNumber    int    `json:"page_number"`
	SourceText    string `json:"source_text"`
	SourcePreview string `json:"source_preview"`
	Fallback      bool   `json:"fallback,omitempty"`
}

// SummarizeRequest asks for a map-reduce summary of a document.
type SummarizeRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
}

// SummarizeResponse is the result of a summarization call.
type SummarizeResponse struct {
	Summary          string          `json:"summary"`
	DocumentID       string          `json:"document_id"`
	ChunkSummaries   []ChunkSummary  `json:"chunk_summaries,omitempty"`
	Sources          []SummarySource `json:"sources"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
}
