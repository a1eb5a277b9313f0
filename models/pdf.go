package models

import (
	"fmt"
	"time"
)

// Document is a parsed upload held by the document store.
type Document struct {
	ID             string         `json:"id"`
	Filename       string         `json:"filename"`
	OriginalName   string         `json:"original_name"`
	UploadedAt     time.Time      `json:"uploaded_at"`
	TotalPages     int            `json:"total_pages"`
	Chunks         []Chunk        `json:"chunks"`
	FullText       string         `json:"-"`
	Summary        string         `json:"summary,omitempty"`
	ChunkingConfig ChunkingConfig `json:"chunking_config"`
}

// TotalChunks returns the number of chunks produced for the document.
func (d *Document) TotalChunks() int {
	return len(d.Chunks)
}

// Chunk is a page-tagged span of a document's cleaned text.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	PageNumber int       `json:"page_number"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	StartChar  int       `json:"start_char"`
	EndChar    int       `json:"end_char"`
	Embedding  []float32 `json:"-"`
	Summary    string    `json:"summary,omitempty"`
}

// ChunkID builds the stable identity of the index-th chunk of a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-chunk-%d", documentID, index)
}

// ChunkingConfig defines how text should be chunked
type ChunkingConfig struct {
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	Overlap      int `json:"overlap" yaml:"overlap"`
	MinChunkSize int `json:"min_chunk_size" yaml:"min_chunk_size"`
}

// ChunkingOverrides carries optional per-upload replacements for a ChunkingConfig.
type ChunkingOverrides struct {
	ChunkSize    *int `json:"chunk_size,omitempty" form:"chunkSize"`
	Overlap      *int `json:"overlap,omitempty" form:"overlap"`
	MinChunkSize *int `json:"min_chunk_size,omitempty" form:"minChunkSize"`
}

// Merge returns a copy of c with every non-nil override applied.
func (c ChunkingConfig) Merge(o ChunkingOverrides) ChunkingConfig {
	merged := c
	if o.ChunkSize != nil {
		merged.ChunkSize = *o.ChunkSize
	}
	if o.Overlap != nil {
		merged.Overlap = *o.Overlap
	}
	if o.MinChunkSize != nil {
		merged.MinChunkSize = *o.MinChunkSize
	}
	return merged
}

// DocumentInfo is the listing view of a document.
type DocumentInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	UploadedAt time.Time `json:"uploaded_at"`
	HasSummary bool      `json:"has_summary"`
}

// UploadResponse represents the response after successful upload
type UploadResponse struct {
	Success        bool            `json:"success"`
	DocumentID     string          `json:"document_id"`
	Filename       string          `json:"filename"`
	TotalPages     int             `json:"total_pages"`
	TotalChunks    int             `json:"total_chunks"`
	Preview        string          `json:"preview"`
	Message        string          `json:"message"`
	Summary        string          `json:"summary"`
	SummarySources []SummarySource `json:"summary_sources"`
	ChunkingConfig ChunkingConfig  `json:"chunking_config"`
}
